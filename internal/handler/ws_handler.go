package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"agri-search-go/internal/command"
	"agri-search-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is one inbound frame. Type selects the command; the remaining
// fields are read by that command.
type wsMessage struct {
	Type          string `json:"type"` // query | resolve | save_instruction | reset_instruction | list
	ID            string `json:"id,omitempty"`
	Text          string `json:"text,omitempty"`
	SystemMessage string `json:"system_msg,omitempty"`
	Debug         bool   `json:"debug,omitempty"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	Convert       bool   `json:"convert,omitempty"`
	Reload        bool   `json:"reload,omitempty"`
}

type wsReply struct {
	Type string        `json:"type"`
	ID   string        `json:"id,omitempty"`
	View *command.View `json:"view,omitempty"`
	// completion fields
	Status    string `json:"status,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// WSHandler runs commands sent over a WebSocket. Frames are handled
// concurrently, so a second query may be sent while the first is in flight.
type WSHandler struct {
	bus *command.Bus
}

func NewWSHandler(bus *command.Bus) *WSHandler {
	return &WSHandler{bus: bus}
}

// Handle serves GET /ws/turns.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket connection established from %s", c.ClientIP())

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	write := func(r wsReply) {
		b, err := json.Marshal(r)
		if err != nil {
			log.Errorf("Failed to encode websocket reply: %v", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Warnf("Failed to write websocket reply: %v", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("Failed to read from websocket: %v", err)
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			v := command.View{Kind: command.ViewError, Message: "invalid message"}
			write(wsReply{Type: "view", View: &v})
			continue
		}
		cmd, ok := toCommand(msg)
		if !ok {
			v := command.View{Kind: command.ViewError, Message: "unknown message type " + msg.Type}
			write(wsReply{Type: "view", ID: msg.ID, View: &v})
			continue
		}

		wg.Add(1)
		go func(id string, cmd command.Command) {
			defer wg.Done()
			v := h.bus.Execute(ctx, cmd)
			write(wsReply{Type: "view", ID: id, View: &v})
			write(wsReply{Type: "completion", ID: id, Status: "finished", Timestamp: time.Now().UnixMilli()})
		}(msg.ID, cmd)
	}

	cancel()
	wg.Wait()
}

func toCommand(m wsMessage) (command.Command, bool) {
	switch m.Type {
	case "query":
		return command.SubmitQuery{Text: m.Text, SystemMessage: m.SystemMessage, Debug: m.Debug}, true
	case "resolve":
		return command.ResolveDocument{URL: m.URL, Title: m.Title, Convert: m.Convert}, true
	case "save_instruction":
		return command.SaveInstruction{Text: m.Text}, true
	case "reset_instruction":
		return command.ResetInstruction{}, true
	case "list":
		return command.ListDocuments{Reload: m.Reload}, true
	default:
		return nil, false
	}
}
