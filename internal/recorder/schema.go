package recorder

// Kind enumerates the action taxonomy persisted to actions.json.
type Kind string

const (
	KindCreate              Kind = "create"
	KindNavigate            Kind = "navigate"
	KindNavigateBack        Kind = "navigateBack"
	KindNavigateForward     Kind = "navigateForward"
	KindReload              Kind = "reload"
	KindWait                Kind = "wait"
	KindCondition           Kind = "condition"
	KindAct                 Kind = "act"
	KindGetListHTML         Kind = "getListHtml"
	KindGetListHTMLByParent Kind = "getListHtmlByParent"
	KindGetElementHTML      Kind = "getElementHtml"
	KindClose               Kind = "close"
)

// Action is one persisted entry in a recording's actions.json. Fields are
// grouped loosely by which kinds populate them; unused fields are omitted
// on marshal.
type Action struct {
	Kind        Kind   `json:"kind"`
	Timestamp   int64  `json:"timestamp"`
	Description string `json:"description,omitempty"`

	// create
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`

	// navigate / reload / wait
	Timeout int64 `json:"timeout,omitempty"`

	// act
	XPath     string   `json:"xpath,omitempty"`
	EncodedID string   `json:"encodedId,omitempty"`
	Method    string   `json:"method,omitempty"`
	Args      []string `json:"args,omitempty"`

	// condition
	Pattern string `json:"pattern,omitempty"`
	Flags   string `json:"flags,omitempty"`

	// getListHtml / getListHtmlByParent / getElementHtml
	Selector string `json:"selector,omitempty"`
	Count    int    `json:"count,omitempty"`

	// post-script data, opted into by the caller at recording time.
	PostScripts []string `json:"postScripts,omitempty"`

	// Snapshot artifacts, filenames only (never paths) relative to data/.
	Structure   string `json:"structure,omitempty"`
	XPathFile   string `json:"xpathMap,omitempty"`
	Screenshot  string `json:"screenshot,omitempty"`
	ListFile    string `json:"listFile,omitempty"`
	ElementFile string `json:"elementFile,omitempty"`

	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Recording is the whole actions.json document.
type Recording struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions"`
}

// Summary is the list-view shape returned by GET /api/recordings.
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ActionsCount   int    `json:"actionsCount"`
	LastActionKind Kind   `json:"lastActionKind,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}
