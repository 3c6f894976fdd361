package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/web3-forum-api/internal/service"
)

// Response is the uniform envelope returned by every endpoint
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Fields  interface{} `json:"fields,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// fail maps a service error kind to its HTTP status. Replay and chain
// verification failures share 409 with duplicates: all three mean "this
// submission will never succeed as-is, do not retry it".
func fail(c *gin.Context, err error) {
	svcErr := service.AsServiceError(err)

	status := http.StatusInternalServerError
	switch svcErr.Kind {
	case service.KindInvalidInput:
		status = http.StatusBadRequest
	case service.KindPermissionDenied:
		status = http.StatusForbidden
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindDuplicate, service.KindReplayDetected, service.KindChainVerification:
		status = http.StatusConflict
	case service.KindBackendUnavailable:
		status = http.StatusServiceUnavailable
	}

	resp := Response{
		Success: false,
		Error:   svcErr.Message,
		Kind:    string(svcErr.Kind),
	}
	if len(svcErr.Fields) > 0 {
		resp.Fields = svcErr.Fields
	}
	c.JSON(status, resp)
}

func failBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   message,
		Kind:    string(service.KindInvalidInput),
	})
}
