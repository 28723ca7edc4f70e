package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-donations/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

func TestGetDonationMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetDonationMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}

func TestQuoteFeesQuery_RejectsNegativeAmount(t *testing.T) {
	svc, err := core.NewService(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = NewQuoteFeesQuery(svc).Query(context.Background(), QuoteFeesMessage{Amount: decimal.NewFromInt(-1)})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected bad input envelope, got %v", err)
	}
}

func TestListDonationsQuery_NilReaderReturnsRichError(t *testing.T) {
	var qry *ListDonationsQuery
	_, err := qry.Query(context.Background(), ListDonationsMessage{})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
