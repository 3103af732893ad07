package api

import (
	"errors"
	"net/http"

	"github.com/contexthub-project/contexthub/internal/result"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// StatusForCode maps an operation error code to the HTTP status used when a
// result envelope is written as a response body.
func StatusForCode(code result.Code) int {
	switch code {
	case result.CodeNotAvailable:
		return http.StatusServiceUnavailable
	case result.CodePermissionDenied:
		return http.StatusForbidden
	case result.CodeNoData:
		return http.StatusNotFound
	case result.CodeInvalidOptions:
		return http.StatusBadRequest
	case result.CodeProviderError, result.CodeNetworkError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
