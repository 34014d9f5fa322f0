// Package model holds the data types exchanged between the session manager,
// the action dispatcher and the collaborator services.
package model

import "encoding/json"

// TurnRequest is the body POSTed to the search proxy for one turn.
type TurnRequest struct {
	Text          string `json:"text"`
	Debug         bool   `json:"debug,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	SystemMessage string `json:"system_msg,omitempty"`
}

// Match is one document hit returned by the proxy when it ran the searches
// itself.
type Match struct {
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Snippet      string   `json:"snippet,omitempty"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	SourceQuery  string   `json:"source_query,omitempty"`
	DocType      string   `json:"doc_type,omitempty"`
}

// TurnResponse is a 2xx body from the proxy. Every field is optional.
type TurnResponse struct {
	Reply     *string         `json:"reply,omitempty"`
	Matches   []Match         `json:"matches,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	DebugInfo json.RawMessage `json:"debug_info,omitempty"`
}

// ReplyKind is the classification of a turn response.
type ReplyKind string

const (
	ReplyFallback      ReplyKind = "fallback"
	ReplyClarification ReplyKind = "clarification"
	ReplyResultSet     ReplyKind = "results"
)

// TurnResult is a classified turn. Exactly one payload is meaningful:
// Text for Fallback and Clarification, Terms or Matches for ResultSet.
type TurnResult struct {
	Kind      ReplyKind       `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Terms     []string        `json:"terms,omitempty"`
	Matches   []Match         `json:"matches,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	DebugInfo json.RawMessage `json:"debug_info,omitempty"`
	Seq       uint64          `json:"seq"`
}

// SessionView is the session state shown to the rendering layer.
type SessionView struct {
	SessionID   string `json:"session_id,omitempty"`
	Instruction string `json:"instruction"`
	IsDefault   bool   `json:"is_default"`
}
