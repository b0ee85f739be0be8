// Package driver is the thin, typed boundary between the control plane and
// the underlying browser automation engine (go-rod driving headless
// Chrome). Every other package talks to PageSurface / LocatorSurface /
// DebugChannel / SelectorEngine, never to *rod.Page directly, so the rest
// of the system stays driver-agnostic.
package driver

import "context"

// ScreenshotOpts controls a screenshot capture.
type ScreenshotOpts struct {
	FullPage bool
	Quality  int // 0-100, PNG ignores this
}

// DialogHandler decides how to resolve a one-shot JS dialog (alert,
// confirm, prompt, beforeunload).
type DialogHandler struct {
	Accept     bool
	PromptText string
}

// PageSurface is the page-level automation surface: navigation, content
// access, and JS evaluation. One PageSurface backs one PageState.
type PageSurface interface {
	Navigate(ctx context.Context, url string, timeout int64) (finalURL string, err error)
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context, timeout int64) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, opts ScreenshotOpts) ([]byte, error)
	WaitForLoadState(ctx context.Context, state string) error
	WaitForTimeout(ctx context.Context, ms int64)
	Evaluate(ctx context.Context, js string, args ...any) (any, error)
	SetInputFiles(ctx context.Context, xpath string, paths []string) error
	OnceDialog(handler func(DialogHandler) DialogHandler)
	OnConsole(handler func(level, text string, stack string))
	OnPageError(handler func(message, stack string))
	Close(ctx context.Context) error
}

// LocatorSurface is a one-shot handle resolved fresh for every action
// against a single xpath — no long-lived element handles.
type LocatorSurface interface {
	Click(ctx context.Context, force bool) error
	Fill(ctx context.Context, text string) error
	SelectOption(ctx context.Context, value string) error
	Check(ctx context.Context) error
	Uncheck(ctx context.Context) error
	Hover(ctx context.Context) error
	Press(ctx context.Context, key string) error
	Evaluate(ctx context.Context, js string, arg any) (any, error)
}

// FrameInfo describes one frame in the page's current frame tree.
type FrameInfo struct {
	FrameID  string
	ParentID string
	URL      string
	IsTop    bool
}

// AXNode is a raw accessibility-tree node as surfaced by the driver's
// Accessibility domain, keyed by backend-node-id within its frame.
type AXNode struct {
	NodeID          string
	BackendNodeID   int64
	FrameID         string
	Role            string
	Name            string
	Value           string
	Description     string
	ChildIDs        []string
	ChildFrameID    string // non-empty when Role == "iframe" / "Iframe"
	NodeType        string // element kind hint: "generic", "text", etc.
}

// DOMNodeInfo resolves enough DOM metadata to compute an absolute, indexed
// XPath and to harvest href/src attributes.
type DOMNodeInfo struct {
	BackendNodeID int64
	Tag           string
	SiblingIndex  int // 1-based position among same-tag siblings
	ParentBackend int64
	IsDocumentEl  bool
	Href          string
	Src           string
}

// DebugChannel is the CDP/DOM-debug surface: accessibility queries, DOM
// metadata resolution, and the network/page event stream consumed by the
// quiescence detector.
type DebugChannel interface {
	// FrameTree returns every frame currently attached to the page,
	// including out-of-process iframe targets.
	FrameTree(ctx context.Context) ([]FrameInfo, error)

	// FullAXTree returns the accessibility tree for one frame.
	FullAXTree(ctx context.Context, frameID string) ([]AXNode, error)

	// DescribeNodes batches DOM metadata resolution for a set of
	// backend-node-ids within one frame.
	DescribeNodes(ctx context.Context, frameID string, backendIDs []int64) (map[int64]DOMNodeInfo, error)

	// FrameOwner resolves the backend-node-id of the <iframe>/<frame>
	// element that owns frameID within its parent document, so the
	// accessibility-view builder can stitch a nested frame's tree under
	// the right node without relying on the AX tree encoding it directly.
	FrameOwner(ctx context.Context, frameID string) (backendNodeID int64, ok bool, err error)

	// Subscribe registers a listener for the quiescence detector's event
	// stream (Network.* and Page.frameStoppedLoading) across the top
	// frame and all attached targets. The returned function unsubscribes.
	Subscribe(ctx context.Context, handler EventHandler) (unsubscribe func())

	// ResolveSelector finds the first top-frame element matching selector
	// (already classified as CSS or XPath by the caller) and returns its
	// backend-node-id, so the accessibility-view builder can restrict its
	// output to that subtree. ok is false when nothing matches.
	ResolveSelector(ctx context.Context, isXPath bool, selector string) (backendNodeID int64, ok bool, err error)
}

// EventKind enumerates the debug-channel events the quiescence detector
// cares about.
type EventKind string

const (
	EventRequestWillBeSent      EventKind = "requestWillBeSent"
	EventLoadingFinished        EventKind = "loadingFinished"
	EventLoadingFailed          EventKind = "loadingFailed"
	EventRequestServedFromCache EventKind = "requestServedFromCache"
	EventResponseReceived       EventKind = "responseReceived"
	EventFrameStoppedLoading    EventKind = "frameStoppedLoading"
)

// ResourceType mirrors CDP's Network.ResourceType enum, restricted to the
// values the detector special-cases.
type ResourceType string

const (
	ResourceDocument    ResourceType = "Document"
	ResourceWebSocket   ResourceType = "WebSocket"
	ResourceEventSource ResourceType = "EventSource"
	ResourceOther       ResourceType = "Other"
)

// Event is the normalized payload for any debug-channel event of interest.
type Event struct {
	Kind      EventKind
	RequestID string
	FrameID   string
	URL       string
	Type      ResourceType
}

// EventHandler receives normalized debug-channel events.
type EventHandler func(Event)

// SelectorEngine walks the element tree — including open and closed
// shadow roots — for a named attribute selector. Registration is
// idempotent per engine instance.
type SelectorEngine interface {
	// Register installs the engine into the page it was built for. A
	// second call on the same instance is tolerated (treated as success).
	Register(ctx context.Context) error
}
