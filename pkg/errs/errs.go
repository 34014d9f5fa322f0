// Package errs defines the error taxonomy shared by the session manager,
// the action dispatcher and the collaborator clients.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Kind classifies an error for the rendering boundary.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindProtocol   Kind = "protocol"
	KindServer     Kind = "server"
	KindConversion Kind = "conversion"
	KindBusy       Kind = "busy"
	KindStorage    Kind = "storage"
	KindInternal   Kind = "internal"
)

// User-facing fallbacks.
const (
	NonJSONMessage     = "non-JSON response"
	EmptyQueryMessage  = "Please enter a query."
	BusyMessage        = "Another document action is still in progress."
	ConversionMessage  = "Conversion failed"
	maxBodyInMessage   = 2000
	internalErrMessage = "internal error"
)

// Error carries a kind, a message safe to show the user, the HTTP status of
// the collaborator response (0 when there was none) and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, errs.Busy())
// style checks work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports bad user input; nothing was sent.
func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

// Network wraps a transport failure, keeping its message.
func Network(err error) *Error {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return New(KindNetwork, msg, err)
}

// Protocol reports a body that could not be interpreted.
func Protocol(message string, err error) *Error {
	return New(KindProtocol, message, err)
}

// Busy is returned when an action is attempted while a conversion runs.
func Busy() *Error {
	return New(KindBusy, BusyMessage, nil)
}

func Storage(err error) *Error {
	return New(KindStorage, "could not save file", err)
}

// Server builds an error for a non-2xx JSON response: the conventional
// "error" field when present, the raw body otherwise.
func Server(status int, body []byte) *Error {
	return &Error{
		Kind:    KindServer,
		Message: MessageFromBody(body, fmt.Sprintf("server returned %d %s", status, http.StatusText(status))),
		Status:  status,
	}
}

// Conversion builds a ConversionFailure from a non-success response.
// error and detail from a JSON body are both kept.
func Conversion(status int, body []byte) *Error {
	msg := ConversionMessage
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if e := res.Get("error"); e.Exists() && e.String() != "" {
			msg = msg + ": " + e.String()
			if d := res.Get("detail"); d.Exists() && d.String() != "" {
				msg = msg + " (" + d.String() + ")"
			}
		}
	} else if status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, status)
	}
	return &Error{Kind: KindConversion, Message: msg, Status: status}
}

// MessageFromBody extracts a user-facing message from an arbitrary error
// body: the "error" field, else the trimmed raw body, else fallback.
func MessageFromBody(body []byte, fallback string) string {
	if gjson.ValidBytes(body) {
		if e := gjson.GetBytes(body, "error"); e.Exists() && e.Type == gjson.String && e.String() != "" {
			return e.String()
		}
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return fallback
	}
	if len(raw) > maxBodyInMessage {
		cut := maxBodyInMessage
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "…"
	}
	return raw
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage is what the rendering layer shows for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return internalErrMessage
}
