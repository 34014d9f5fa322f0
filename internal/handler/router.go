package handler

import (
	"agri-search-go/internal/command"
	"agri-search-go/internal/middleware"
	"agri-search-go/internal/service"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the command surface.
func NewRouter(bus *command.Bus, session service.SessionService, dispatcher service.Dispatcher) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	turns := NewTurnHandler(bus, session)
	docs := NewDocumentHandler(bus, dispatcher)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/turns", turns.Submit)
		apiV1.GET("/session", turns.Session)

		instruction := apiV1.Group("/instruction")
		{
			instruction.GET("", turns.Session)
			instruction.PUT("", turns.SaveInstruction)
			instruction.DELETE("", turns.ResetInstruction)
		}

		documents := apiV1.Group("/documents")
		{
			documents.GET("", docs.List)
			documents.POST("/resolve", docs.Resolve)
		}
		apiV1.GET("/actions/state", docs.State)
	}
	r.GET("/ws/turns", NewWSHandler(bus).Handle)

	return r
}
