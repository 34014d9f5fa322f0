// Package handler exposes the command bus over HTTP and WebSocket.
package handler

import (
	"net/http"

	"agri-search-go/internal/command"
	"agri-search-go/pkg/errs"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

// respondView writes v with a status derived from its error kind.
func respondView(c *gin.Context, v command.View) {
	if v.Kind != command.ViewError {
		respond(c, http.StatusOK, "success", v)
		return
	}
	status := statusFor(v.ErrorKind)
	respond(c, status, v.Message, v)
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindBusy:
		return http.StatusConflict
	case errs.KindNetwork, errs.KindProtocol, errs.KindServer, errs.KindConversion:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	respond(c, http.StatusBadRequest, "invalid request body", gin.H{"error": err.Error()})
}
