package model

// DocumentRef is one entry of the corpus listing. Title is never empty once
// the listing is normalized: it falls back to the filename derived from URL.
type DocumentRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ActionMode selects how a document is resolved.
type ActionMode string

const (
	ModeDirect  ActionMode = "direct"
	ModeConvert ActionMode = "convert"
)

// ModeFor maps the convert toggle to a mode.
func ModeFor(convert bool) ActionMode {
	if convert {
		return ModeConvert
	}
	return ModeDirect
}

// ActionResult describes a completed document action.
type ActionResult struct {
	ID       string     `json:"id"`
	Mode     ActionMode `json:"mode"`
	Filename string     `json:"filename"`
	Location string     `json:"location"`
	Size     int64      `json:"size"`
	Fallback bool       `json:"fallback,omitempty"`
}

// ActionEvent is published to the action journal after every action,
// successful or not.
type ActionEvent struct {
	ID         string     `json:"id"`
	Mode       ActionMode `json:"mode"`
	URL        string     `json:"url"`
	Filename   string     `json:"filename,omitempty"`
	Location   string     `json:"location,omitempty"`
	Outcome    string     `json:"outcome"` // saved | failed | rejected
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	At         LocalTime  `json:"at"`
}

// Listing is the document snapshot shown to the user. Placeholder is set
// when Documents is empty.
type Listing struct {
	Documents   []DocumentRef `json:"documents"`
	Placeholder string        `json:"placeholder,omitempty"`
	LoadedAt    LocalTime     `json:"loaded_at"`
}

// ActionState is the dispatcher's busy token as seen from outside.
type ActionState struct {
	Busy  bool       `json:"busy"`
	Mode  ActionMode `json:"mode,omitempty"`
	URL   string     `json:"url,omitempty"`
	Since *LocalTime `json:"since,omitempty"`
}
