// Package axview builds the accessibility view of a page:
// a deterministic outline, an encoded-id-to-xpath map, and an
// encoded-id-to-url map, derived from the driver's raw accessibility tree
// plus DOM metadata across frames (including shadow roots and
// out-of-process iframes).
package axview

// Node is one accessibility-tree node after frame-local ids have been
// resolved into encoded ids and names have been normalized.
type Node struct {
	EncodedID     string
	Role          string
	Content       string // normalized name, or the static-text content
	FrameID       string
	BackendNodeID int64
	ChildFrameID  string // non-empty when this node owns a nested frame
	IsStructural  bool   // true for generic/none/GenericContainer/empty roles, whatever the name
	HasValue      bool
	IsLandmark    bool
	Children      []*Node
}

// Result is everything one Build call produces.
type Result struct {
	Simplified string
	XPathMap   map[string]string
	IDToURL    map[string]string
	Tree       []*Node // the top frame's pruned roots; nested frames are stitched under their owner nodes
}

// landmarkRoles are accessibility roles that must never be pruned even
// when structurally empty.
var landmarkRoles = map[string]bool{
	"banner": true, "navigation": true, "main": true, "contentinfo": true,
	"complementary": true, "form": true, "search": true, "region": true,
	"article": true, "dialog": true, "alertdialog": true,
}

func isLandmark(role string) bool { return landmarkRoles[role] }

// structuralRoles are roles treated as "structural only" for the fold/prune
// rule — containers with no inherent semantics of their own.
var structuralRoles = map[string]bool{
	"generic": true, "none": true, "GenericContainer": true, "": true,
}

func isStructural(role string) bool { return structuralRoles[role] }
