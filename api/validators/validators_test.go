package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
)

type addRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"nope","quantity":0}`))
	var body addRequest
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["addRequest.product_id"] != "must be a valid uuid" {
		t.Fatalf("unexpected product_id detail %q", details["addRequest.product_id"])
	}
	if details["addRequest.quantity"] != "must be at least 1" {
		t.Fatalf("unexpected quantity detail %q", details["addRequest.quantity"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"x","extra":1}`))
	var body addRequest
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/?reset=true", nil)
	got, err := ParseQueryBool(req, "reset", false)
	if err != nil || !got {
		t.Fatalf("expected reset=true, got %v %v", got, err)
	}
	req = httptest.NewRequest(http.MethodDelete, "/?reset=maybe", nil)
	if _, err := ParseQueryBool(req, "reset", false); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeCode(t *testing.T) {
	if got := SanitizeCode("  SAVE10 ", 32); got != "SAVE10" {
		t.Fatalf("unexpected code %q", got)
	}
	if got := SanitizeCode("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
