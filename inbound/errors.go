package inbound

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-donations/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.ErrorBadInput,
		metadata,
	)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.ErrorInternal,
		metadata,
	)
}

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Data    ErrorResponseData `json:"data"`
}

type ErrorResponseData struct {
	Status int `json:"status"`
}

// NewErrorResponse maps err into the response envelope and its HTTP status.
func NewErrorResponse(err error) (int, ErrorResponse) {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	status := core.HTTPStatus(mapped)
	message := mapped.Message
	if status >= http.StatusInternalServerError && mapped.TextCode == core.ErrorInternal {
		message = "An unexpected error occurred"
	}
	return status, ErrorResponse{
		Code:    mapped.TextCode,
		Message: message,
		Data:    ErrorResponseData{Status: status},
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := NewErrorResponse(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
