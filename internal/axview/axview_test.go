package axview

import (
	"context"
	"testing"

	"simplepage/internal/driver"
	"simplepage/internal/frameregistry"
)

// fakeDebugChannel is a minimal driver.DebugChannel backed by canned
// per-frame fixtures, so the builder pipeline can be exercised without a
// live browser.
type fakeDebugChannel struct {
	frames map[string][]driver.FrameInfo
	ax     map[string][]driver.AXNode
	dom    map[string]map[int64]driver.DOMNodeInfo
	owners map[string]int64 // frameID -> owning element's backend id in the parent frame
}

func (f *fakeDebugChannel) FrameTree(ctx context.Context) ([]driver.FrameInfo, error) {
	return f.frames[""], nil
}

func (f *fakeDebugChannel) FullAXTree(ctx context.Context, frameID string) ([]driver.AXNode, error) {
	return f.ax[frameID], nil
}

func (f *fakeDebugChannel) DescribeNodes(ctx context.Context, frameID string, backendIDs []int64) (map[int64]driver.DOMNodeInfo, error) {
	table := f.dom[frameID]
	out := make(map[int64]driver.DOMNodeInfo, len(backendIDs))
	for _, id := range backendIDs {
		if n, ok := table[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeDebugChannel) FrameOwner(ctx context.Context, frameID string) (int64, bool, error) {
	if id, ok := f.owners[frameID]; ok {
		return id, true, nil
	}
	return 0, false, nil
}

func (f *fakeDebugChannel) Subscribe(ctx context.Context, handler driver.EventHandler) func() {
	return func() {}
}

func (f *fakeDebugChannel) ResolveSelector(ctx context.Context, isXPath bool, selector string) (int64, bool, error) {
	return 0, false, nil
}

func simplePageFixture() *fakeDebugChannel {
	return &fakeDebugChannel{
		frames: map[string][]driver.FrameInfo{
			"": {{FrameID: "", IsTop: true}},
		},
		ax: map[string][]driver.AXNode{
			"": {
				{NodeID: "1", BackendNodeID: 1, Role: "generic", ChildIDs: []string{"2", "4"}},
				{NodeID: "2", BackendNodeID: 2, Role: "button", Name: "Sign  in\n", ChildIDs: nil},
				{NodeID: "4", BackendNodeID: 4, Role: "generic", ChildIDs: nil}, // empty structural: should be dropped
			},
		},
		dom: map[string]map[int64]driver.DOMNodeInfo{
			"": {
				1: {BackendNodeID: 1, Tag: "div", SiblingIndex: 1, IsDocumentEl: false},
				2: {BackendNodeID: 2, Tag: "button", SiblingIndex: 1, ParentBackend: 1},
				4: {BackendNodeID: 4, Tag: "div", SiblingIndex: 2, ParentBackend: 1},
			},
		},
	}
}

func TestBuildFoldsEmptyStructuralContainer(t *testing.T) {
	fr := frameregistry.New()
	b := NewBuilder(simplePageFixture(), fr, nil)

	res, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.Tree) != 1 {
		t.Fatalf("expected the generic wrapper to fold away leaving one child, got %d roots", len(res.Tree))
	}
	if res.Tree[0].Role != "button" {
		t.Fatalf("expected surviving root to be the button, got role %q", res.Tree[0].Role)
	}
}

func TestBuildNormalizesWhitespace(t *testing.T) {
	fr := frameregistry.New()
	b := NewBuilder(simplePageFixture(), fr, nil)

	res, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Tree[0].Content != "Sign in" {
		t.Fatalf("expected collapsed whitespace, got %q", res.Tree[0].Content)
	}
}

func TestBuildXPathMapAndOutlineAreDeterministic(t *testing.T) {
	fr := frameregistry.New()
	b := NewBuilder(simplePageFixture(), fr, nil)

	res1, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fr2 := frameregistry.New()
	b2 := NewBuilder(simplePageFixture(), fr2, nil)
	res2, err := b2.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res1.Simplified != res2.Simplified {
		t.Fatalf("outline not deterministic:\n%s\n---\n%s", res1.Simplified, res2.Simplified)
	}
	encID := fr.Encode("", 2)
	if res1.XPathMap[encID] != "/div[1]/button[1]" {
		t.Fatalf("unexpected xpath %q", res1.XPathMap[encID])
	}
}

func TestPruneKeepsEmptyLandmark(t *testing.T) {
	nav := &Node{Role: "navigation", IsLandmark: true}
	out := prune([]*Node{nav})
	if len(out) != 1 {
		t.Fatalf("expected landmark to survive pruning even when empty, got %d nodes", len(out))
	}
}

func TestRenderOutlineOmitsEmptyContent(t *testing.T) {
	nodes := []*Node{{EncodedID: "0-9", Role: "button", Content: ""}}
	got := renderOutline(nodes)
	want := "[0-9] button"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildStitchesNestedFrameUnderItsOwnerNode(t *testing.T) {
	f := &fakeDebugChannel{
		frames: map[string][]driver.FrameInfo{
			"": {
				{FrameID: "top-frame", IsTop: true},
				{FrameID: "child-frame", ParentID: "top-frame"},
			},
		},
		ax: map[string][]driver.AXNode{
			"top-frame": {
				{NodeID: "1", BackendNodeID: 1, Role: "Iframe", Name: "embedded"},
			},
			"child-frame": {
				{NodeID: "1", BackendNodeID: 7, Role: "button", Name: "Inside"},
			},
		},
		dom: map[string]map[int64]driver.DOMNodeInfo{
			"top-frame": {
				1: {BackendNodeID: 1, Tag: "iframe", SiblingIndex: 1},
			},
			"child-frame": {
				7: {BackendNodeID: 7, Tag: "button", SiblingIndex: 1},
			},
		},
		owners: map[string]int64{"child-frame": 1},
	}

	fr := frameregistry.New()
	b := NewBuilder(f, fr, nil)
	res, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.Tree) != 1 {
		t.Fatalf("expected one top-level root, got %d", len(res.Tree))
	}
	owner := res.Tree[0]
	if len(owner.Children) != 1 || owner.Children[0].Role != "button" {
		t.Fatalf("expected the nested frame's button under the iframe owner, got %+v", owner.Children)
	}
	childEnc := owner.Children[0].EncodedID
	if childEnc != "1-7" {
		t.Fatalf("nested frame node should carry ordinal 1, got encoded id %q", childEnc)
	}
	if _, ok := res.XPathMap[childEnc]; !ok {
		t.Fatalf("nested frame node missing from xpath map")
	}
}

func TestBuildScopeRestrictsToSubtree(t *testing.T) {
	fr := frameregistry.New()
	b := NewBuilder(simplePageFixture(), fr, nil)

	res, err := b.Build(context.Background(), &ScopeRoot{FrameID: "", BackendNodeID: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Tree) != 1 || res.Tree[0].Role != "button" {
		t.Fatalf("expected scope to restrict the forest to the button, got %+v", res.Tree)
	}
}

func TestBuildScopeMissFallsBackToFullTree(t *testing.T) {
	fr := frameregistry.New()
	b := NewBuilder(simplePageFixture(), fr, nil)

	res, err := b.Build(context.Background(), &ScopeRoot{FrameID: "", BackendNodeID: 999})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Tree) != 1 || res.Tree[0].Role != "button" {
		t.Fatalf("expected the full (folded) tree on a scope miss, got %+v", res.Tree)
	}
}

func TestBuildHarvestsHrefIntoIDToURL(t *testing.T) {
	f := &fakeDebugChannel{
		frames: map[string][]driver.FrameInfo{
			"": {{FrameID: "", IsTop: true}},
		},
		ax: map[string][]driver.AXNode{
			"": {
				{NodeID: "1", BackendNodeID: 1, Role: "link", Name: "Docs"},
			},
		},
		dom: map[string]map[int64]driver.DOMNodeInfo{
			"": {
				1: {BackendNodeID: 1, Tag: "a", SiblingIndex: 1, Href: "https://example.com/docs"},
			},
		},
	}
	fr := frameregistry.New()
	b := NewBuilder(f, fr, nil)
	res, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	enc := fr.Encode("", 1)
	if res.IDToURL[enc] != "https://example.com/docs" {
		t.Fatalf("expected href harvested for %s, got %q", enc, res.IDToURL[enc])
	}
}

func TestBuildToleratesEmptyFrameFetch(t *testing.T) {
	f := &fakeDebugChannel{
		frames: map[string][]driver.FrameInfo{"": {{FrameID: "", IsTop: true}}},
		ax:     map[string][]driver.AXNode{},
		dom:    map[string]map[int64]driver.DOMNodeInfo{},
	}
	fr := frameregistry.New()
	b := NewBuilder(f, fr, nil)
	res, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build should tolerate an empty frame fetch, got error: %v", err)
	}
	if res.Simplified != "" {
		t.Fatalf("expected empty outline, got %q", res.Simplified)
	}
}
