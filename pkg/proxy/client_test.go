package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agri-search-go/internal/config"
	"agri-search-go/internal/model"
	"agri-search-go/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.ProxyConfig{BaseURL: srv.URL, SearchPath: "/api/proxy"}, srv.Client())
}

func TestSend_EncodesTurnAndDecodesReply(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/proxy", r.URL.Path)
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"Which year?","session_id":"s-1"}`))
	})

	resp, err := c.Send(context.Background(), model.TurnRequest{Text: "pesticides", SessionID: "s-0"})
	require.NoError(t, err)
	require.NotNil(t, resp.Reply)
	assert.Equal(t, "Which year?", *resp.Reply)
	assert.Equal(t, "s-1", resp.SessionID)

	assert.Equal(t, "pesticides", got["text"])
	assert.Equal(t, "s-0", got["session_id"])
	_, hasSystem := got["system_msg"]
	assert.False(t, hasSystem)
}

func TestSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    errs.Kind
		message string
	}{
		{"server error field", 502, `{"error":"upstream timeout"}`, errs.KindServer, "upstream timeout"},
		{"server arbitrary json", 500, `{"oops":true}`, errs.KindServer, `{"oops":true}`},
		{"non json error page", 500, `<html>Internal Server Error</html>`, errs.KindProtocol, errs.NonJSONMessage},
		{"non json success", 200, `hello`, errs.KindProtocol, errs.NonJSONMessage},
		{"array success", 200, `["a"]`, errs.KindProtocol, "unexpected response shape"},
		{"reply not a string", 200, `{"reply":42}`, errs.KindProtocol, "unexpected response shape"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Send(context.Background(), model.TurnRequest{Text: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.Equal(t, tt.message, errs.UserMessage(err))
		})
	}
}

func TestSend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.ProxyConfig{BaseURL: url, SearchPath: "/api/proxy"}, nil)
	_, err := c.Send(context.Background(), model.TurnRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))
}
