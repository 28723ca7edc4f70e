package inbound

import (
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-donations/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestNewErrorResponse_UsesTextCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"signature", core.NewSignatureInvalidError("", nil), http.StatusBadRequest, core.ErrorInvalidSignature},
		{"json", core.NewMalformedPayloadError("", nil), http.StatusBadRequest, core.ErrorInvalidJSON},
		{"unhandled", core.NewUnhandledEventError("X"), http.StatusBadRequest, core.ErrorUnhandledEvent},
		{"persistence", core.NewPersistenceError("", errors.New("db")), http.StatusInternalServerError, core.ErrorPersistenceFailure},
		{"lock", core.NewLockTimeoutError("O-1", nil), http.StatusServiceUnavailable, core.ErrorLockTimeout},
		{"plain", errors.New("boom"), http.StatusInternalServerError, core.ErrorInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := NewErrorResponse(tc.err)
			if status != tc.status || body.Data.Status != tc.status {
				t.Fatalf("expected status %d, got %d / %d", tc.status, status, body.Data.Status)
			}
			if body.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, body.Code)
			}
			if body.Message == "" {
				t.Fatalf("expected message")
			}
		})
	}
}

func TestNewErrorResponse_HidesInternalDetails(t *testing.T) {
	_, body := NewErrorResponse(errors.New("read tcp 10.0.0.1:5432: connection reset by peer"))
	if body.Message != "An unexpected error occurred" {
		t.Fatalf("expected generic message, got %q", body.Message)
	}
}

func TestInboundBadInput_ReturnsRichError(t *testing.T) {
	err := inboundBadInput("bad", map[string]any{"field": "amount"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryBadInput || rich.Code != http.StatusBadRequest {
		t.Fatalf("unexpected envelope %#v", rich)
	}
	if rich.Metadata["field"] != "amount" {
		t.Fatalf("expected metadata, got %#v", rich.Metadata)
	}
}
