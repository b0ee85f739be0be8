// Package frameregistry assigns stable small-integer frame ordinals to
// frame ids within a single page's lifetime, the first half of the
// "<ordinal>-<backendNodeId>" encoded-id scheme: backend-node-ids are
// only unique within a frame, so each frame gets an ordinal that scopes
// its node ids.
package frameregistry

import (
	"fmt"
	"sync"
)

// topFrame is the registry key used for the top-level frame, whose id the
// driver doesn't assign until the document is created.
const topFrame = ""

// Registry maps frame ids to small integers, seeded with the top frame at
// ordinal 0. Ordinals are monotone within one page lifetime and never
// reused except by Reset.
type Registry struct {
	mu       sync.Mutex
	ordinals map[string]int
	order    []string // insertion order, for diagnostics
}

// New creates a Registry seeded with the top frame at ordinal 0.
func New() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.ordinals = map[string]int{topFrame: 0}
	r.order = []string{topFrame}
}

// Reset reinitializes the registry to contain only the top-frame entry.
// The page manager calls it after every navigation, history move and
// reload; it does not compare top-frame ids first, so a navigation that
// keeps the same top frame also clears the nested-frame ordinals.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// Ordinal returns the ordinal for frameID, assigning a fresh one (equal to
// the current map size) on first sighting. An empty frameID always maps
// to the top frame (ordinal 0).
func (r *Registry) Ordinal(frameID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameID == topFrame {
		return 0
	}
	if ord, ok := r.ordinals[frameID]; ok {
		return ord
	}
	ord := len(r.ordinals)
	r.ordinals[frameID] = ord
	r.order = append(r.order, frameID)
	return ord
}

// Encode builds the encoded id "<ordinal>-<backendNodeID>" for a node
// observed in frameID.
func (r *Registry) Encode(frameID string, backendNodeID int64) string {
	return fmt.Sprintf("%d-%d", r.Ordinal(frameID), backendNodeID)
}

// FrameIDs returns the frame ids known so far, in assignment order (index
// 0 is always the top frame, represented as the empty string).
func (r *Registry) FrameIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
