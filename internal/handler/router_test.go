package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"agri-search-go/internal/command"
	"agri-search-go/internal/config"
	"agri-search-go/internal/model"
	"agri-search-go/internal/repository"
	"agri-search-go/internal/service"
	"agri-search-go/pkg/converter"
	"agri-search-go/pkg/download"
	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/kafka"
	"agri-search-go/pkg/reply"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProxy struct {
	mu      sync.Mutex
	replies []string
	sent    []model.TurnRequest
}

func (p *scriptedProxy) Send(_ context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, req)
	if len(p.replies) == 0 {
		return nil, errs.Server(500, []byte(`{"error":"no more replies"}`))
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return &model.TurnResponse{Reply: &r, SessionID: "sess-1"}, nil
}

type staticCatalog struct{ docs []model.DocumentRef }

func (s staticCatalog) Titles(context.Context) ([]model.DocumentRef, error) { return s.docs, nil }

type noStream struct{}

func (noStream) Stream(context.Context, string) (io.ReadCloser, int64, error) {
	return nil, 0, download.ErrHostNotAllowed
}
func (noStream) Fetch(context.Context, string) ([]byte, error) { return []byte("docx"), nil }

type okConverter struct{}

func (okConverter) Convert(context.Context, string) (*converter.Report, error) {
	return &converter.Report{Data: []byte("xlsx")}, nil
}

type discardSink struct{}

func (discardSink) Save(_ context.Context, name string, r io.Reader, _ int64) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "/tmp/" + name, err
}

type env struct {
	router *gin.Engine
	proxy  *scriptedProxy
}

func newEnv(t *testing.T, replies ...string) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := &scriptedProxy{replies: replies}
	session, err := service.NewSessionService(context.Background(), repository.NewMemorySessionRepository(), p, false)
	require.NoError(t, err)
	catalog := service.NewCatalogService(staticCatalog{docs: []model.DocumentRef{
		{URL: "https://www.europarl.europa.eu/doc/AGRI-AM-1.docx", Title: "Amendments 1-40"},
	}})
	catalog.Reload(context.Background())
	dispatcher := service.NewDispatcher(noStream{}, okConverter{}, discardSink{}, kafka.NewJournal(config.KafkaConfig{}), "")
	bus := command.NewBus(session, catalog, dispatcher)

	return &env{router: NewRouter(bus, session, dispatcher), proxy: p}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func decodeView(t *testing.T, raw json.RawMessage) command.View {
	var v command.View
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestTurns_ConversationFlow(t *testing.T) {
	e := newEnv(t, "Which year are you interested in?", reply.ResultPrefix+` ["pesticides 2023"]`)

	code, out := e.do(t, http.MethodPost, "/api/v1/turns", `{"text":"pesticide reports"}`)
	assert.Equal(t, http.StatusOK, code)
	v := decodeView(t, out.Data)
	assert.Equal(t, command.ViewClarification, v.Kind)
	assert.Equal(t, "Which year are you interested in?", v.Message)

	code, out = e.do(t, http.MethodPost, "/api/v1/turns", `{"text":"2023"}`)
	assert.Equal(t, http.StatusOK, code)
	v = decodeView(t, out.Data)
	assert.Equal(t, command.ViewResults, v.Kind)
	assert.Equal(t, []string{"pesticides 2023"}, v.Terms)

	require.Len(t, e.proxy.sent, 2)
	assert.Empty(t, e.proxy.sent[0].SessionID)
	assert.Equal(t, "sess-1", e.proxy.sent[1].SessionID)
}

func TestTurns_EmptyTextIsRejectedWithoutSending(t *testing.T) {
	e := newEnv(t)
	code, out := e.do(t, http.MethodPost, "/api/v1/turns", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errs.EmptyQueryMessage, out.Message)
	assert.Empty(t, e.proxy.sent)
}

func TestTurns_ServerErrorMapsToBadGateway(t *testing.T) {
	e := newEnv(t)
	code, out := e.do(t, http.MethodPost, "/api/v1/turns", `{"text":"q"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "no more replies", out.Message)
	assert.Equal(t, errs.KindServer, decodeView(t, out.Data).ErrorKind)
}

func TestTurns_MalformedBody(t *testing.T) {
	e := newEnv(t)
	code, _ := e.do(t, http.MethodPost, "/api/v1/turns", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInstruction_SaveClearsSessionAndReset(t *testing.T) {
	e := newEnv(t, "hello")
	e.do(t, http.MethodPost, "/api/v1/turns", `{"text":"q"}`)

	_, out := e.do(t, http.MethodGet, "/api/v1/session", "")
	var sv model.SessionView
	require.NoError(t, json.Unmarshal(out.Data, &sv))
	assert.Equal(t, "sess-1", sv.SessionID)
	assert.True(t, sv.IsDefault)

	code, out := e.do(t, http.MethodPut, "/api/v1/instruction", `{"text":"Only list opinions."}`)
	assert.Equal(t, http.StatusOK, code)
	v := decodeView(t, out.Data)
	require.NotNil(t, v.Session)
	assert.Empty(t, v.Session.SessionID)
	assert.Equal(t, "Only list opinions.", v.Session.Instruction)

	code, out = e.do(t, http.MethodDelete, "/api/v1/instruction", "")
	assert.Equal(t, http.StatusOK, code)
	v = decodeView(t, out.Data)
	assert.True(t, v.Session.IsDefault)
	assert.Equal(t, service.DefaultInstruction, v.Session.Instruction)
}

func TestDocuments_ListAndResolve(t *testing.T) {
	e := newEnv(t)

	code, out := e.do(t, http.MethodGet, "/api/v1/documents", "")
	assert.Equal(t, http.StatusOK, code)
	v := decodeView(t, out.Data)
	require.Len(t, v.Documents, 1)

	code, out = e.do(t, http.MethodPost, "/api/v1/documents/resolve",
		`{"url":"https://www.europarl.europa.eu/doc/AGRI-AM-1.docx","convert":true}`)
	assert.Equal(t, http.StatusOK, code)
	v = decodeView(t, out.Data)
	assert.Equal(t, command.ViewSaved, v.Kind)
	require.NotNil(t, v.Action)
	assert.Equal(t, "Amendments 1-40_report.xlsx", v.Action.Filename)

	code, out = e.do(t, http.MethodPost, "/api/v1/documents/resolve",
		`{"url":"https://www.europarl.europa.eu/doc/AGRI-AM-1.docx","convert":false}`)
	assert.Equal(t, http.StatusOK, code)
	v = decodeView(t, out.Data)
	assert.Equal(t, "AGRI-AM-1.docx", v.Action.Filename)
	assert.True(t, v.Action.Fallback)

	code, out = e.do(t, http.MethodGet, "/api/v1/actions/state", "")
	assert.Equal(t, http.StatusOK, code)
	var st model.ActionState
	require.NoError(t, json.Unmarshal(out.Data, &st))
	assert.False(t, st.Busy)
}

func TestDocuments_ResolveInvalidURL(t *testing.T) {
	e := newEnv(t)
	code, out := e.do(t, http.MethodPost, "/api/v1/documents/resolve", `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errs.KindValidation, decodeView(t, out.Data).ErrorKind)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(errs.KindBusy))
	assert.Equal(t, http.StatusBadGateway, statusFor(errs.KindConversion))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errs.KindStorage))
}

func TestWebSocket_QueryProducesViewAndCompletion(t *testing.T) {
	e := newEnv(t, reply.Fallback)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/turns"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"query","id":"q1","text":"capital of Belgium"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got []wsReply
	for len(got) < 2 {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var r wsReply
		require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(&r))
		got = append(got, r)
	}

	assert.Equal(t, "view", got[0].Type)
	assert.Equal(t, "q1", got[0].ID)
	require.NotNil(t, got[0].View)
	assert.Equal(t, command.ViewFallback, got[0].View.Kind)
	assert.Equal(t, reply.Fallback, got[0].View.Message)
	assert.Equal(t, "completion", got[1].Type)
}

func TestWebSocket_UnknownType(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/turns", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r wsReply
	require.NoError(t, conn.ReadJSON(&r))
	require.NotNil(t, r.View)
	assert.Equal(t, command.ViewError, r.View.Kind)
}
