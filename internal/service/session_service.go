// Package service holds the session manager, the document catalog and the
// action dispatcher.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"agri-search-go/internal/model"
	"agri-search-go/internal/repository"
	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/log"
	"agri-search-go/pkg/proxy"
	"agri-search-go/pkg/reply"
)

// DefaultInstruction steers the proxy when the user has not saved their own.
const DefaultInstruction = "You are an AGRI documents search assistant for European Parliament AGRI committee documents. " +
	"If the request is clearly a search for AGRI committee documents, answer with " +
	"\"From the information you provided, I will conduct a search:\" followed by a JSON array of short search-term strings on the same line. " +
	"If the request could be a document search but is missing details such as the year, the document type or the topic, ask one short clarifying question. " +
	"Otherwise answer exactly: I can only search AGRI committee documents; no matching documents found."

// SessionService owns the conversation identity and the system instruction.
type SessionService interface {
	// ComposeTurn builds the request for input. override, when non-empty,
	// replaces the stored instruction for this turn only.
	ComposeTurn(input, override string, debug bool) (model.TurnRequest, error)
	// SubmitTurn sends req and classifies the reply.
	SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResult, error)
	SaveInstruction(ctx context.Context, text string) (model.SessionView, error)
	ResetInstruction(ctx context.Context) (model.SessionView, error)
	Current() model.SessionView
}

type sessionService struct {
	repo   repository.SessionRepository
	client proxy.Client
	// debug asks the proxy for debug_info on every turn.
	debug bool

	mu          sync.Mutex
	sessionID   string
	instruction string // empty means DefaultInstruction
	// epoch counts instruction changes. A response to a turn sent under an
	// older epoch must not restore the cleared session id.
	epoch uint64

	seq atomic.Uint64
}

// NewSessionService loads the persisted session state from repo.
func NewSessionService(ctx context.Context, repo repository.SessionRepository, client proxy.Client, debug bool) (SessionService, error) {
	s := &sessionService{repo: repo, client: client, debug: debug}

	id, _, err := repo.Get(ctx, repository.KeySessionID)
	if err != nil {
		return nil, fmt.Errorf("load session id: %w", err)
	}
	instr, _, err := repo.Get(ctx, repository.KeySystemInstruction)
	if err != nil {
		return nil, fmt.Errorf("load system instruction: %w", err)
	}
	s.sessionID = id
	if strings.TrimSpace(instr) != DefaultInstruction {
		s.instruction = strings.TrimSpace(instr)
	}
	log.Infof("Session state loaded: has_session=%t custom_instruction=%t", s.sessionID != "", s.instruction != "")
	return s, nil
}

func (s *sessionService) ComposeTurn(input, override string, debug bool) (model.TurnRequest, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return model.TurnRequest{}, errs.Validation(errs.EmptyQueryMessage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req := model.TurnRequest{Text: text, Debug: debug || s.debug, SessionID: s.sessionID}
	if o := strings.TrimSpace(override); o != "" {
		req.SystemMessage = o
	} else if s.instruction != "" {
		req.SystemMessage = s.instruction
	}
	return req, nil
}

func (s *sessionService) SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errs.Validation(errs.EmptyQueryMessage)
	}
	seq := s.seq.Add(1)
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	log.Infow("Submitting turn", "seq", seq, "has_session", req.SessionID != "", "custom_instruction", req.SystemMessage != "")

	resp, err := s.client.Send(ctx, req)
	if err != nil {
		log.Warnw("Turn failed", "seq", seq, "kind", errs.KindOf(err), "error", err)
		return nil, err
	}

	result := ClassifyResponse(resp)
	result.Seq = seq
	if !req.Debug {
		result.DebugInfo = nil
	}
	if resp.SessionID != "" {
		s.storeSessionID(ctx, resp.SessionID, seq, epoch)
	}
	log.Infow("Turn classified", "seq", seq, "kind", result.Kind, "terms", len(result.Terms), "matches", len(result.Matches))
	return &result, nil
}

// storeSessionID applies the last-write-wins rule: whichever response
// finishes last sets the identity, regardless of seq.
func (s *sessionService) storeSessionID(ctx context.Context, id string, seq, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		log.Infow("Ignoring session id from a turn sent before the instruction changed", "seq", seq)
		return
	}
	if s.sessionID == id {
		return
	}
	s.sessionID = id
	if err := s.repo.Set(ctx, repository.KeySessionID, id); err != nil {
		log.Errorf("Failed to persist session id (seq %d): %v", seq, err)
	}
}

// ClassifyResponse maps a 2xx proxy body to exactly one reply kind.
func ClassifyResponse(resp *model.TurnResponse) model.TurnResult {
	out := model.TurnResult{SessionID: resp.SessionID, DebugInfo: resp.DebugInfo}

	if len(resp.Matches) > 0 {
		out.Kind = model.ReplyResultSet
		out.Matches = resp.Matches
		return out
	}

	text := ""
	if resp.Reply != nil {
		text = *resp.Reply
	}
	parsed := reply.Parse(text)
	switch parsed.Kind {
	case reply.KindFallback:
		out.Kind = model.ReplyFallback
		out.Text = parsed.Text
	case reply.KindResultSet:
		out.Kind = model.ReplyResultSet
		out.Terms = parsed.Terms
	default:
		if parsed.Malformed {
			log.Warnf("Reply has the result prefix but no valid term list, showing it verbatim")
		}
		out.Kind = model.ReplyClarification
		out.Text = parsed.Text
	}
	return out
}

func (s *sessionService) SaveInstruction(ctx context.Context, text string) (model.SessionView, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == DefaultInstruction {
		return s.ResetInstruction(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// a restart must never see the old session with the new instruction
	if err := s.clearSessionLocked(ctx); err != nil {
		return model.SessionView{}, err
	}
	if err := s.repo.Set(ctx, repository.KeySystemInstruction, text); err != nil {
		return model.SessionView{}, errs.Storage(err)
	}
	s.instruction = text
	log.Info("System instruction saved, session cleared")
	return s.viewLocked(), nil
}

func (s *sessionService) ResetInstruction(ctx context.Context) (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clearSessionLocked(ctx); err != nil {
		return model.SessionView{}, err
	}
	if err := s.repo.Clear(ctx, repository.KeySystemInstruction); err != nil {
		return model.SessionView{}, errs.Storage(err)
	}
	s.instruction = ""
	log.Info("System instruction reset to default, session cleared")
	return s.viewLocked(), nil
}

// clearSessionLocked drops the session id from the store first and only then
// from memory, so a failed clear leaves both unchanged.
func (s *sessionService) clearSessionLocked(ctx context.Context) error {
	if err := s.repo.Clear(ctx, repository.KeySessionID); err != nil {
		return errs.Storage(err)
	}
	s.epoch++
	s.sessionID = ""
	return nil
}

func (s *sessionService) Current() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *sessionService) viewLocked() model.SessionView {
	v := model.SessionView{SessionID: s.sessionID, Instruction: s.instruction, IsDefault: s.instruction == ""}
	if v.IsDefault {
		v.Instruction = DefaultInstruction
	}
	return v
}
