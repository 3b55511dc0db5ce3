package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/storage"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

var errRunInProgress = errors.New("a discovery run is already in progress")

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// classify maps domain errors onto HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrAlreadyValidated):
		return http.StatusConflict, "already_validated"
	case errors.Is(err, errRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, common.ErrNoTransactions):
		return http.StatusUnprocessableEntity, "no_transactions"
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, storage.ErrInvalidStatus),
		errors.Is(err, storage.ErrEmptyString):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// userMessage prefers the friendly text of a UserError.
func userMessage(err error) error {
	var ue *common.UserError
	if errors.As(err, &ue) {
		return errors.New(ue.UserMessage)
	}
	return err
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	respondError(c, status, code, userMessage(err))
}
