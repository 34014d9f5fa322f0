package handler

import (
	"net/http"
	"strconv"

	"agri-search-go/internal/command"
	"agri-search-go/internal/service"

	"github.com/gin-gonic/gin"
)

// DocumentHandler serves the listing and document actions.
type DocumentHandler struct {
	bus        *command.Bus
	dispatcher service.Dispatcher
}

func NewDocumentHandler(bus *command.Bus, dispatcher service.Dispatcher) *DocumentHandler {
	return &DocumentHandler{bus: bus, dispatcher: dispatcher}
}

// List handles GET /api/v1/documents[?reload=true].
func (h *DocumentHandler) List(c *gin.Context) {
	reload, _ := strconv.ParseBool(c.DefaultQuery("reload", "false"))
	respondView(c, h.bus.Execute(c.Request.Context(), command.ListDocuments{Reload: reload}))
}

// Resolve handles POST /api/v1/documents/resolve.
func (h *DocumentHandler) Resolve(c *gin.Context) {
	var req command.ResolveDocument
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respondView(c, h.bus.Execute(c.Request.Context(), req))
}

// State handles GET /api/v1/actions/state.
func (h *DocumentHandler) State(c *gin.Context) {
	respond(c, http.StatusOK, "success", h.dispatcher.State())
}
