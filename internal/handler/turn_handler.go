package handler

import (
	"net/http"

	"agri-search-go/internal/command"
	"agri-search-go/internal/service"

	"github.com/gin-gonic/gin"
)

// TurnHandler serves search turns and the session and instruction state.
type TurnHandler struct {
	bus     *command.Bus
	session service.SessionService
}

func NewTurnHandler(bus *command.Bus, session service.SessionService) *TurnHandler {
	return &TurnHandler{bus: bus, session: session}
}

// Submit handles POST /api/v1/turns.
func (h *TurnHandler) Submit(c *gin.Context) {
	var req command.SubmitQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respondView(c, h.bus.Execute(c.Request.Context(), req))
}

// Session handles GET /api/v1/session and GET /api/v1/instruction.
func (h *TurnHandler) Session(c *gin.Context) {
	respond(c, http.StatusOK, "success", h.session.Current())
}

// SaveInstruction handles PUT /api/v1/instruction.
func (h *TurnHandler) SaveInstruction(c *gin.Context) {
	var req command.SaveInstruction
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respondView(c, h.bus.Execute(c.Request.Context(), req))
}

// ResetInstruction handles DELETE /api/v1/instruction.
func (h *TurnHandler) ResetInstruction(c *gin.Context) {
	respondView(c, h.bus.Execute(c.Request.Context(), command.ResetInstruction{}))
}
