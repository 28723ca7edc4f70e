package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidSignature   = "invalid_signature"
	ErrorInvalidJSON        = "invalid_json"
	ErrorUnhandledEvent     = "unhandled_event"
	ErrorPersistenceFailure = "persistence_failure"
	ErrorBadInput           = "bad_input"
	ErrorNotFound           = "not_found"
	ErrorLockTimeout        = "lock_timeout"
	ErrorExternalFailure    = "external_failure"
	ErrorInternal           = "internal_error"
)

// NewSignatureInvalidError rejects a delivery before any state mutation.
func NewSignatureInvalidError(message string, source error) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "Invalid webhook signature"
	}
	return newDonationError(source, message, goerrors.CategoryAuth, http.StatusBadRequest, ErrorInvalidSignature)
}

func NewMalformedPayloadError(message string, source error) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "Invalid JSON body"
	}
	return newDonationError(source, message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorInvalidJSON)
}

func NewUnhandledEventError(eventType string) *goerrors.Error {
	return goerrors.New("Unhandled event type", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorUnhandledEvent).
		WithMetadata(map[string]any{"event_type": eventType})
}

func NewPersistenceError(message string, source error) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "donation persistence failed"
	}
	return newDonationError(source, message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorPersistenceFailure)
}

// NewLockTimeoutError reports that the per order lock could not be taken in
// time. The delivery is safe to retry.
func NewLockTimeoutError(orderID string, source error) *goerrors.Error {
	return newDonationError(source, "order lock unavailable", goerrors.CategoryInternal, http.StatusServiceUnavailable, ErrorLockTimeout).
		WithMetadata(map[string]any{"order_id": orderID})
}

func newDonationError(
	source error,
	message string,
	category goerrors.Category,
	code int,
	textCode string,
) *goerrors.Error {
	if source == nil {
		return goerrors.New(message, category).
			WithCode(code).
			WithTextCode(textCode)
	}
	wrapped := goerrors.Wrap(source, category, message)
	wrapped.Category = category
	return wrapped.WithCode(code).WithTextCode(textCode)
}

func IsUnhandledEvent(err error) bool {
	return hasTextCode(err, ErrorUnhandledEvent)
}

func IsSignatureInvalid(err error) bool {
	return hasTextCode(err, ErrorInvalidSignature)
}

func IsMalformedPayload(err error) bool {
	return hasTextCode(err, ErrorInvalidJSON)
}

func IsPersistenceFailure(err error) bool {
	return hasTextCode(err, ErrorPersistenceFailure)
}

func hasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// MapError normalizes any error into the donation error envelope.
func MapError(err error) *goerrors.Error {
	return donationErrorMapper(err)
}

func donationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDonationErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return newDonationError(err, err.Error(), goerrors.CategoryAuth, http.StatusBadRequest, ErrorInvalidSignature)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "order lock"):
		return newDonationError(err, err.Error(), goerrors.CategoryInternal, http.StatusServiceUnavailable, ErrorLockTimeout)
	case strings.Contains(msg, "not configured"), strings.Contains(msg, "store is required"):
		return newDonationError(err, err.Error(), goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal)
	case strings.Contains(msg, "not found"):
		return newDonationError(err, err.Error(), goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newDonationError(err, err.Error(), goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped != nil && mapped.TextCode == "INTERNAL_ERROR" {
		mapped.TextCode = ErrorInternal
	}
	return ensureDonationErrorEnvelope(mapped)
}

func ensureDonationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = donationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDonationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultDonationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorInvalidSignature
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

// HTTPStatus resolves the response status for an error envelope.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code > 0 {
			return rich.Code
		}
		return donationHTTPStatus(rich.Category)
	}
	return http.StatusInternalServerError
}

func donationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusBadRequest
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
