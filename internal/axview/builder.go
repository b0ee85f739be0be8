package axview

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"simplepage/internal/driver"
	"simplepage/internal/frameregistry"
)

// Builder assembles the accessibility view from a page's attached frames,
// fanning the per-frame AX tree fetch out in parallel,
// then stitching frames together by encoded id.
type Builder struct {
	Debug  driver.DebugChannel
	Frames *frameregistry.Registry
	Log    *slog.Logger
}

func NewBuilder(dc driver.DebugChannel, frames *frameregistry.Registry, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{Debug: dc, Frames: frames, Log: log}
}

// ScopeRoot optionally restricts the outline to the subtree rooted at one
// node, resolved by the caller (the page manager's Structure turns a
// selector into a frame id + backend node id via DebugChannel.ResolveSelector
// before calling Build).
type ScopeRoot struct {
	FrameID       string
	BackendNodeID int64
}

type frameFetch struct {
	frame driver.FrameInfo
	nodes []driver.AXNode
	err   error
}

// Build runs the full pipeline: parallel AX fetch, per-frame DOM
// description for xpath/url harvesting, frame stitching, prune/fold, and
// outline rendering.
func (b *Builder) Build(ctx context.Context, scope *ScopeRoot) (*Result, error) {
	frames, err := b.Debug.FrameTree(ctx)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		frames = []driver.FrameInfo{{IsTop: true}}
	}

	fetches := make([]frameFetch, len(frames))
	var wg sync.WaitGroup
	for i, f := range frames {
		wg.Add(1)
		go func(i int, f driver.FrameInfo) {
			defer wg.Done()
			nodes, err := b.Debug.FullAXTree(ctx, f.FrameID)
			fetches[i] = frameFetch{frame: f, nodes: nodes, err: err}
		}(i, f)
	}
	wg.Wait()

	// parentFrameOf and every bookkeeping map below are keyed by the
	// canonical frame key, not the raw CDP frame id: the top frame always
	// keys as "" (matching frameregistry's topFrame sentinel) regardless
	// of whatever real id the driver assigned it, since backend-node-ids
	// are only unique within one frame and the registry's ordinal-0 slot
	// is reserved for the top frame by convention.
	parentFrameOf := map[string]string{}
	for _, f := range frames {
		if !f.IsTop {
			parentFrameOf[frameKey(f)] = frameKey(parentOf(frames, f.ParentID))
		}
	}

	xpathMap := map[string]string{}
	idToURL := map[string]string{}
	flatByFrame := map[string]map[string]*Node{} // frameKey -> ax nodeID -> Node
	topsByFrame := map[string][]*Node{}
	rawFrameID := map[string]string{} // frameKey -> the real driver frame id

	for _, fr := range fetches {
		if fr.err != nil {
			b.Log.Warn("accessibility tree fetch failed", "frameId", fr.frame.FrameID, "error", fr.err)
			continue
		}
		key := frameKey(fr.frame)
		rawFrameID[key] = fr.frame.FrameID
		nodeObjs, childOf, backendIDs := b.materializeFrame(ctx, key, fr, xpathMap, idToURL)
		flatByFrame[key] = nodeObjs

		var tops []*Node
		for nodeID, n := range nodeObjs {
			if !childOf[nodeID] {
				tops = append(tops, n)
			}
		}
		topsByFrame[key] = tops
		_ = backendIDs
	}

	// Stitch: attach each non-top frame's top-level nodes under the node
	// that owns it in its parent frame, resolved by backend-node-id via
	// DOM.getFrameOwner rather than by anything carried on the AX node
	// itself (go-rod's AX tree does not expose the child frame id inline).
	for key, tops := range topsByFrame {
		if key == "" {
			continue
		}
		parentKey := parentFrameOf[key]
		parent := flatByFrame[parentKey]

		backendID, ok, err := b.Debug.FrameOwner(ctx, rawFrameID[key])
		if err != nil || !ok {
			b.Log.Warn("no owner node found for nested frame, attaching at top level", "frameId", key, "error", err)
			topsByFrame[""] = append(topsByFrame[""], tops...)
			continue
		}
		owner := findByBackend(parent, backendID)
		if owner == nil {
			b.Log.Warn("owner backend node not present in parent frame's tree, attaching at top level", "frameId", key)
			topsByFrame[""] = append(topsByFrame[""], tops...)
			continue
		}
		owner.ChildFrameID = key
		owner.Children = append(owner.Children, tops...)
	}

	roots := topsByFrame[""]

	if scope != nil {
		if restricted := findByBackend(flatByFrame[scope.FrameID], scope.BackendNodeID); restricted != nil {
			roots = []*Node{restricted}
		} else {
			b.Log.Warn("scope selector resolved to no node, falling back to full tree",
				"frameId", scope.FrameID, "backendNodeId", scope.BackendNodeID)
		}
	}

	roots = prune(roots)

	return &Result{
		Simplified: renderOutline(roots),
		XPathMap:   xpathMap,
		IDToURL:    idToURL,
		Tree:       roots,
	}, nil
}

// materializeFrame resolves one frame's raw AX nodes into Node objects,
// filling xpathMap/idToURL as a side effect, and returns the node table
// plus which node ids are referenced as someone's child (so top-level
// nodes of the frame can be found by exclusion).
func (b *Builder) materializeFrame(ctx context.Context, key string, fr frameFetch, xpathMap, idToURL map[string]string) (map[string]*Node, map[string]bool, []int64) {
	byBackend := map[int64]*driver.AXNode{}
	backendIDs := make([]int64, 0, len(fr.nodes))
	for i := range fr.nodes {
		n := &fr.nodes[i]
		byBackend[n.BackendNodeID] = n
		backendIDs = append(backendIDs, n.BackendNodeID)
	}

	info, err := b.Debug.DescribeNodes(ctx, fr.frame.FrameID, backendIDs)
	if err != nil {
		b.Log.Warn("describe nodes failed", "frameId", fr.frame.FrameID, "error", err)
		info = map[int64]driver.DOMNodeInfo{}
	}
	info = resolveAncestry(ctx, b.Debug, fr.frame.FrameID, info, backendIDs)

	nodeObjs := make(map[string]*Node, len(fr.nodes))
	for i := range fr.nodes {
		an := &fr.nodes[i]
		encID := b.Frames.Encode(key, an.BackendNodeID)
		content := normalizeText(firstNonEmpty(an.Name, an.Value, an.Description))

		nodeObjs[an.NodeID] = &Node{
			EncodedID:     encID,
			Role:          an.Role,
			Content:       content,
			FrameID:       key,
			BackendNodeID: an.BackendNodeID,
			ChildFrameID:  an.ChildFrameID,
			IsStructural:  isStructural(an.Role),
			HasValue:      an.Value != "",
			IsLandmark:    isLandmark(an.Role),
		}

		xpathMap[encID] = buildXPath(info, an.BackendNodeID)
		if dn, ok := info[an.BackendNodeID]; ok {
			if dn.Href != "" {
				idToURL[encID] = dn.Href
			} else if dn.Src != "" {
				idToURL[encID] = dn.Src
			}
		}
	}

	childOf := map[string]bool{}
	for i := range fr.nodes {
		an := &fr.nodes[i]
		node := nodeObjs[an.NodeID]
		for _, cid := range an.ChildIDs {
			if c, ok := nodeObjs[cid]; ok {
				node.Children = append(node.Children, c)
				childOf[cid] = true
			}
		}
	}

	return nodeObjs, childOf, backendIDs
}

// frameKey is the canonical bookkeeping key for a frame: "" for the top
// frame regardless of its real driver-assigned id, matching
// frameregistry's topFrame sentinel; the real id for every other frame.
func frameKey(f driver.FrameInfo) string {
	if f.IsTop {
		return ""
	}
	return f.FrameID
}

// parentOf looks up a frame by its raw id among the frames seen this
// build, defaulting to the (missing) zero value when id is unknown (e.g.
// the fetch for that frame failed and never made it into frames).
func parentOf(frames []driver.FrameInfo, id string) driver.FrameInfo {
	for _, f := range frames {
		if f.FrameID == id {
			return f
		}
	}
	return driver.FrameInfo{FrameID: id}
}

func findByBackend(nodes map[string]*Node, backendNodeID int64) *Node {
	for _, n := range nodes {
		if n.BackendNodeID == backendNodeID {
			return n
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeText strips control characters and collapses internal
// whitespace runs to a single space.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteByte(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
