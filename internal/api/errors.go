package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/errs"
)

// StatusFor maps an error to its HTTP status: invalid input is 400, empty or
// insufficient data 422, upstream failures 502 and anything else 500.
func StatusFor(err error) int {
	switch errs.Kind(err) {
	case errs.ErrConfiguration:
		return http.StatusBadRequest
	case errs.ErrData:
		return http.StatusUnprocessableEntity
	case errs.ErrProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindName(err error) string {
	switch errs.Kind(err) {
	case errs.ErrConfiguration:
		return "configuration"
	case errs.ErrData:
		return "data"
	case errs.ErrProvider:
		return "provider"
	default:
		return "internal"
	}
}

// respondError writes the error body and records it on the gin context
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		metrics.RecordError(kindName(err), "api")
	}

	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) && e.Msg != "" {
		msg = e.Msg
	}

	c.JSON(status, gin.H{
		"error":  msg,
		"kind":   kindName(err),
		"detail": err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": msg,
		"kind":  "configuration",
	})
}
