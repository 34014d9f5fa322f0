// Package reply interprets the free-text reply of the search proxy.
package reply

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Fallback is the exact reply the proxy sends when it finds no search intent.
const Fallback = "I can only search AGRI committee documents; no matching documents found."

// ResultPrefix may precede the JSON array of search terms.
const ResultPrefix = "From the information you provided, I will conduct a search:"

// Kind tags a parsed reply.
type Kind int

const (
	KindClarification Kind = iota
	KindFallback
	KindResultSet
)

func (k Kind) String() string {
	switch k {
	case KindFallback:
		return "fallback"
	case KindResultSet:
		return "results"
	default:
		return "clarification"
	}
}

// Reply is the tagged result of Parse. Terms is set only for KindResultSet.
// Malformed marks a reply that carried ResultPrefix but no valid array after
// it; such replies are still shown as clarifications.
type Reply struct {
	Kind      Kind
	Text      string
	Terms     []string
	Malformed bool
}

// Parse classifies text. It never fails: anything that is neither the exact
// fallback nor a term list is a clarification carrying text unchanged.
func Parse(text string) Reply {
	if text == Fallback {
		return Reply{Kind: KindFallback, Text: text}
	}

	trimmed := strings.TrimSpace(text)
	if terms, ok := parseTerms(trimmed); ok {
		return Reply{Kind: KindResultSet, Terms: terms}
	}

	if rest, found := strings.CutPrefix(trimmed, ResultPrefix); found {
		if terms, ok := parseTerms(strings.TrimSpace(rest)); ok {
			return Reply{Kind: KindResultSet, Terms: terms}
		}
		return Reply{Kind: KindClarification, Text: text, Malformed: true}
	}

	return Reply{Kind: KindClarification, Text: text}
}

// parseTerms accepts a non-empty JSON array whose elements are all strings.
func parseTerms(s string) ([]string, bool) {
	if !strings.HasPrefix(s, "[") || !gjson.Valid(s) {
		return nil, false
	}
	res := gjson.Parse(s)
	if !res.IsArray() {
		return nil, false
	}
	items := res.Array()
	if len(items) == 0 {
		return nil, false
	}
	terms := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			return nil, false
		}
		terms = append(terms, item.String())
	}
	return terms, true
}
