package driver

import (
	"context"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"simplepage/internal/errs"
)

// RodDebugChannel adapts rod's CDP surface to DebugChannel: one
// page.EachEvent(handlers...) subscription over the Network/Page domains
// for the quiescence detector, plus the Accessibility/DOM queries the
// view builder needs.
type RodDebugChannel struct {
	page *rod.Page
}

func NewRodDebugChannel(page *rod.Page) *RodDebugChannel {
	return &RodDebugChannel{page: page}
}

func (d *RodDebugChannel) FrameTree(ctx context.Context) ([]FrameInfo, error) {
	tree, err := proto.PageGetFrameTree{}.Call(d.page.Context(ctx))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "get frame tree")
	}
	var out []FrameInfo
	var walk func(n *proto.PageFrameTree, parent string)
	walk = func(n *proto.PageFrameTree, parent string) {
		if n == nil || n.Frame == nil {
			return
		}
		out = append(out, FrameInfo{
			FrameID:  string(n.Frame.ID),
			ParentID: parent,
			URL:      n.Frame.URL,
			IsTop:    parent == "",
		})
		for _, child := range n.ChildFrames {
			walk(child, string(n.Frame.ID))
		}
	}
	walk(tree.FrameTree, "")
	return out, nil
}

// FullAXTree queries Accessibility.getFullAXTree for one frame. When
// frameID is empty, the call targets the top document.
func (d *RodDebugChannel) FullAXTree(ctx context.Context, frameID string) ([]AXNode, error) {
	req := proto.AccessibilityGetFullAXTree{}
	if frameID != "" {
		fid := proto.PageFrameID(frameID)
		req.FrameID = fid
	}
	res, err := req.Call(d.page.Context(ctx))
	if err != nil {
		return nil, errs.Wrap(errs.AxExtractionFailed, err, "get full ax tree for frame %q", frameID)
	}

	out := make([]AXNode, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		if n == nil {
			continue
		}
		node := AXNode{
			NodeID:        string(n.NodeID),
			FrameID:       frameID,
			BackendNodeID: int64(n.BackendDOMNodeID),
		}
		if n.Role != nil {
			node.Role = n.Role.Value.Str()
		}
		if n.Name != nil {
			node.Name = n.Name.Value.Str()
		}
		if n.Value != nil {
			node.Value = n.Value.Value.Str()
		}
		if n.Description != nil {
			node.Description = n.Description.Value.Str()
		}
		for _, c := range n.ChildIDs {
			node.ChildIDs = append(node.ChildIDs, string(c))
		}
		if strings.EqualFold(node.Role, "iframe") && len(n.ChildIDs) > 0 {
			// The nested document's own AX root is resolved by the
			// caller via the DOM frame-owner lookup (FrameOwner),
			// not encoded directly in the AX node.
			node.NodeType = "iframe"
		}
		out = append(out, node)
	}
	return out, nil
}

// DescribeNodes batches DOM.pushNodesByBackendIdsToFrontend followed by
// DOM.describeNode, computing each node's
// sibling index for absolute-indexed XPath construction.
func (d *RodDebugChannel) DescribeNodes(ctx context.Context, frameID string, backendIDs []int64) (map[int64]DOMNodeInfo, error) {
	out := make(map[int64]DOMNodeInfo, len(backendIDs))
	if len(backendIDs) == 0 {
		return out, nil
	}

	ids := make([]proto.DOMBackendNodeID, len(backendIDs))
	for i, b := range backendIDs {
		ids[i] = proto.DOMBackendNodeID(b)
	}

	pushed, err := proto.DOMPushNodesByBackendIDsToFrontend{BackendNodeIDs: ids}.Call(d.page.Context(ctx))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "push nodes by backend id")
	}

	// parent/siblings bookkeeping for the sibling-index computation below.
	tagOf := map[int64]string{}
	parentOf := map[int64]int64{}
	childrenOf := map[int64][]int64{}

	for i, nodeID := range pushed.NodeIDs {
		desc, err := proto.DOMDescribeNode{NodeID: nodeID, Depth: intPtr(1)}.Call(d.page.Context(ctx))
		if err != nil {
			continue
		}
		n := desc.Node
		backend := backendIDs[i]
		tagOf[backend] = strings.ToLower(n.NodeName)
		info := DOMNodeInfo{BackendNodeID: backend, Tag: tagOf[backend]}
		if strings.EqualFold(n.NodeName, "html") {
			info.IsDocumentEl = true
		}
		for _, attr := range pairUp(n.Attributes) {
			switch attr[0] {
			case "href":
				info.Href = attr[1]
			case "src":
				info.Src = attr[1]
			}
		}
		if n.ParentID != 0 {
			parentOf[backend] = int64(n.ParentID)
		}
		for _, c := range n.Children {
			childrenOf[backend] = append(childrenOf[backend], int64(c.BackendNodeID))
		}
		out[backend] = info
	}

	// Sibling index: count same-tag siblings preceding this node under its
	// parent, matching the tag[n] steps of xpath.go's buildXPath.
	for backend, info := range out {
		parent, ok := parentOf[backend]
		if !ok {
			continue
		}
		idx := 1
		for _, sib := range childrenOf[parent] {
			if sib == backend {
				break
			}
			if tagOf[sib] == info.Tag {
				idx++
			}
		}
		info.SiblingIndex = idx
		info.ParentBackend = parent
		out[backend] = info
	}

	return out, nil
}

// FrameOwner calls DOM.getFrameOwner to find which element in the parent
// document owns frameID, so nested frames can be stitched into the
// accessibility tree by backend-node-id rather than by AX-node role.
func (d *RodDebugChannel) FrameOwner(ctx context.Context, frameID string) (int64, bool, error) {
	res, err := proto.DOMGetFrameOwner{FrameID: proto.PageFrameID(frameID)}.Call(d.page.Context(ctx))
	if err != nil {
		return 0, false, nil // no owner resolvable (e.g. detached frame); non-fatal.
	}
	return int64(res.BackendNodeID), true, nil
}

// Subscribe wires the Network and Page domains into the normalized Event
// stream the quiescence detector consumes. One subscription per page is
// shared across concurrent waiters.
func (d *RodDebugChannel) Subscribe(ctx context.Context, handler EventHandler) func() {
	subCtx, cancel := context.WithCancel(ctx)

	_ = proto.NetworkEnable{}.Call(d.page)
	_ = proto.PageEnable{}.Call(d.page)

	go d.page.Context(subCtx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			handler(Event{
				Kind:      EventRequestWillBeSent,
				RequestID: string(e.RequestID),
				FrameID:   string(e.FrameID),
				URL:       e.Request.URL,
				Type:      ResourceType(e.Type),
			})
		},
		func(e *proto.NetworkLoadingFinished) {
			handler(Event{Kind: EventLoadingFinished, RequestID: string(e.RequestID)})
		},
		func(e *proto.NetworkLoadingFailed) {
			handler(Event{Kind: EventLoadingFailed, RequestID: string(e.RequestID)})
		},
		func(e *proto.NetworkRequestServedFromCache) {
			handler(Event{Kind: EventRequestServedFromCache, RequestID: string(e.RequestID)})
		},
		func(e *proto.NetworkResponseReceived) {
			handler(Event{
				Kind:      EventResponseReceived,
				RequestID: string(e.RequestID),
				URL:       e.Response.URL,
			})
		},
		func(e *proto.PageFrameStoppedLoading) {
			handler(Event{Kind: EventFrameStoppedLoading, FrameID: string(e.FrameID)})
		},
	)()

	return cancel
}

// ResolveSelector locates the first element matching a CSS selector or
// absolute XPath via rod's own Element/ElementX resolution, then asks
// DOM.describeNode for its backend-node-id by object id — the same
// describe-by-id CDP call DescribeNodes batches by backend id, here
// addressed by the live element's remote object instead.
func (d *RodDebugChannel) ResolveSelector(ctx context.Context, isXPath bool, selector string) (int64, bool, error) {
	var el *rod.Element
	var err error
	if isXPath {
		el, err = d.page.Context(ctx).ElementX(selector)
	} else {
		el, err = d.page.Context(ctx).Element(selector)
	}
	if err != nil {
		return 0, false, nil // no match is not an error, caller falls back to the full tree.
	}

	desc, err := proto.DOMDescribeNode{ObjectID: el.Object.ObjectID, Depth: intPtr(1)}.Call(d.page.Context(ctx))
	if err != nil {
		return 0, false, errs.Wrap(errs.Internal, err, "describe node for selector %q", selector)
	}
	return int64(desc.Node.BackendNodeID), true, nil
}

func intPtr(v int) *int { return &v }

func pairUp(attrs []string) [][2]string {
	out := make([][2]string, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		out = append(out, [2]string{attrs[i], attrs[i+1]})
	}
	return out
}
