package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/responder/pkg/services"
	"github.com/codeready-toolchain/responder/pkg/store"
)

// HTTPError is an error with a response status.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

func newHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return newHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, store.ErrNotFound) {
		return newHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, services.ErrNoPullRequest) {
		return newHTTPError(http.StatusConflict, "incident has no pull request")
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		return newHTTPError(http.StatusConflict, "resource already exists")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return newHTTPError(http.StatusInternalServerError, "internal server error")
}

func abortWithError(c *gin.Context, he *HTTPError) {
	c.AbortWithStatusJSON(he.Code, ErrorResponse{Error: he.Message})
}
