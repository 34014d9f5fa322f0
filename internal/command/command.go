// Package command turns user gestures into calls on the session manager,
// the catalog and the dispatcher, and every outcome into a View.
package command

import (
	"context"
	"encoding/json"
	"strings"

	"agri-search-go/internal/model"
	"agri-search-go/internal/service"
	"agri-search-go/pkg/errs"
)

// Command is one user gesture.
type Command interface {
	Name() string
}

type SubmitQuery struct {
	Text          string `json:"text"`
	SystemMessage string `json:"system_msg,omitempty"`
	Debug         bool   `json:"debug,omitempty"`
}

type SaveInstruction struct {
	Text string `json:"text"`
}

type ResetInstruction struct{}

// ResolveDocument carries the convert toggle as it was when the user clicked.
type ResolveDocument struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Convert bool   `json:"convert"`
}

type ListDocuments struct {
	Reload bool `json:"reload,omitempty"`
}

func (SubmitQuery) Name() string      { return "submit_query" }
func (SaveInstruction) Name() string  { return "save_instruction" }
func (ResetInstruction) Name() string { return "reset_instruction" }
func (ResolveDocument) Name() string  { return "resolve_document" }
func (ListDocuments) Name() string    { return "list_documents" }

// ViewKind tells the rendering layer which template applies.
type ViewKind string

const (
	ViewFallback      ViewKind = "fallback"
	ViewClarification ViewKind = "clarification"
	ViewResults       ViewKind = "results"
	ViewSession       ViewKind = "session"
	ViewDocuments     ViewKind = "documents"
	ViewSaved         ViewKind = "saved"
	ViewError         ViewKind = "error"
)

// NoReplyMessage is shown for a clarification without text.
const NoReplyMessage = "No reply received."

// View is everything the rendering layer needs for one outcome.
type View struct {
	Kind      ViewKind            `json:"kind"`
	Message   string              `json:"message,omitempty"`
	Terms     []string            `json:"terms,omitempty"`
	Matches   []model.Match       `json:"matches,omitempty"`
	Documents []model.DocumentRef `json:"documents,omitempty"`
	Session   *model.SessionView  `json:"session,omitempty"`
	Action    *model.ActionResult `json:"action,omitempty"`
	ErrorKind errs.Kind           `json:"error_kind,omitempty"`
	Seq       uint64              `json:"seq,omitempty"`
	DebugInfo json.RawMessage     `json:"debug_info,omitempty"`
}

// Bus executes commands. Execute never returns an error: failures become
// ViewError.
type Bus struct {
	session    service.SessionService
	catalog    service.CatalogService
	dispatcher service.Dispatcher
}

func NewBus(session service.SessionService, catalog service.CatalogService, dispatcher service.Dispatcher) *Bus {
	return &Bus{session: session, catalog: catalog, dispatcher: dispatcher}
}

func (b *Bus) Execute(ctx context.Context, cmd Command) View {
	switch c := cmd.(type) {
	case SubmitQuery:
		return b.submitQuery(ctx, c)
	case SaveInstruction:
		v, err := b.session.SaveInstruction(ctx, c.Text)
		return sessionView(v, err)
	case ResetInstruction:
		v, err := b.session.ResetInstruction(ctx)
		return sessionView(v, err)
	case ResolveDocument:
		return b.resolve(ctx, c)
	case ListDocuments:
		listing := b.catalog.List()
		if c.Reload {
			listing = b.catalog.Reload(ctx)
		}
		return View{Kind: ViewDocuments, Documents: listing.Documents, Message: listing.Placeholder}
	default:
		return ErrorView(errs.New(errs.KindInternal, "unknown command", nil))
	}
}

func (b *Bus) submitQuery(ctx context.Context, c SubmitQuery) View {
	req, err := b.session.ComposeTurn(c.Text, c.SystemMessage, c.Debug)
	if err != nil {
		return ErrorView(err)
	}
	res, err := b.session.SubmitTurn(ctx, req)
	if err != nil {
		return ErrorView(err)
	}
	return TurnView(res)
}

func (b *Bus) resolve(ctx context.Context, c ResolveDocument) View {
	doc := model.DocumentRef{URL: strings.TrimSpace(c.URL), Title: strings.TrimSpace(c.Title)}
	if doc.Title == "" {
		if listed, ok := b.catalog.Lookup(doc.URL); ok {
			doc.Title = listed.Title
		}
	}
	res, err := b.dispatcher.Resolve(ctx, doc, c.Convert)
	if err != nil {
		return ErrorView(err)
	}
	return View{Kind: ViewSaved, Message: "Saved " + res.Filename, Action: res}
}

// TurnView renders a classified turn.
func TurnView(res *model.TurnResult) View {
	v := View{Seq: res.Seq, DebugInfo: res.DebugInfo}
	switch res.Kind {
	case model.ReplyFallback:
		v.Kind = ViewFallback
		v.Message = res.Text
	case model.ReplyResultSet:
		v.Kind = ViewResults
		v.Terms = res.Terms
		v.Matches = res.Matches
	default:
		v.Kind = ViewClarification
		v.Message = res.Text
		if strings.TrimSpace(res.Text) == "" {
			v.Message = NoReplyMessage
		}
	}
	return v
}

// ErrorView renders any error with its user-facing message.
func ErrorView(err error) View {
	return View{Kind: ViewError, Message: errs.UserMessage(err), ErrorKind: errs.KindOf(err)}
}

func sessionView(s model.SessionView, err error) View {
	if err != nil {
		return ErrorView(err)
	}
	return View{Kind: ViewSession, Session: &s}
}
