package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
)

type APIResponse[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func respondJSON[T any](c *gin.Context, code int, data T) {
	c.JSON(code, APIResponse[T]{
		Success: code >= 200 && code < 300,
		Data:    data,
	})
}

func respondErrorMsg(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse[any]{
		Success: false,
		Error:   message,
	})
}

func respondError(c *gin.Context, err error, requestID string) {
	c.JSON(StatusFor(err), APIResponse[any]{
		Success:   false,
		Error:     err.Error(),
		Kind:      string(apierror.KindOf(err)),
		RequestID: requestID,
	})
}

// StatusFor maps a client error to the HTTP status the gateway answers with.
func StatusFor(err error) int {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apierror.KindRequestRejected && apiErr.StatusCode != 0 {
		return apiErr.StatusCode
	}

	switch apierror.KindOf(err) {
	case apierror.KindNetworkTimeout:
		return http.StatusGatewayTimeout
	case apierror.KindBackendStatus:
		return http.StatusBadGateway
	case apierror.KindNetworkUnreachable, apierror.KindCircuitOpen, apierror.KindAllBackendsExhausted:
		return http.StatusServiceUnavailable
	case apierror.KindConfigurationInvalid:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
