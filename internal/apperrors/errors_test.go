package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{DuplicateContent("already there"), http.StatusConflict},
		{NotFound("gone"), http.StatusNotFound},
		{PayloadTooLarge("too big"), http.StatusRequestEntityTooLarge},
		{Configuration("no route"), http.StatusBadRequest},
		{ExternalService("index down", errors.New("boom"), true), http.StatusBadGateway},
		{Database("query failed", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("some random error"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStatusUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("missing"))
	if got := Status(wrapped); got != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", got, http.StatusNotFound)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ExternalService("transient", errors.New("timeout"), true)) {
		t.Error("retryable external error should report retryable")
	}
	if IsRetryable(ExternalService("permanent", errors.New("bad request"), false)) {
		t.Error("non-retryable external error should not report retryable")
	}
	if IsRetryable(Validation("bad input")) {
		t.Error("validation errors are never retryable")
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	internal := Database("insert file", errors.New("connection refused to 10.0.0.5"))
	if msg := PublicMessage(internal); msg == internal.Error() {
		t.Error("database error details must not leak to clients")
	}

	visible := Validation("name is required")
	if msg := PublicMessage(visible); msg != "name is required" {
		t.Errorf("validation message = %q, want it verbatim", msg)
	}
}
