package ojerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsUnwrapsTypedError(t *testing.T) {
	base := New(NotFound, "contest not found")
	wrapped := fmt.Errorf("resolving contest: %w", base)

	code, msg := As(wrapped)
	if code != NotFound {
		t.Fatalf("expected NotFound, got %v", code)
	}
	if msg != "contest not found" {
		t.Fatalf("expected original message preserved, got %q", msg)
	}
}

func TestAsDefaultsToInternalForPlainErrors(t *testing.T) {
	code, msg := As(errors.New("boom"))
	if code != Internal {
		t.Fatalf("expected Internal for an unwrapped plain error, got %v", code)
	}
	if msg != "boom" {
		t.Fatalf("expected the plain error's message, got %q", msg)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("pool exhausted")
	err := Wrap(Internal, "inserting job", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("Wrap must preserve the cause for errors.Is")
	}
	if err.Error() != "inserting job: pool exhausted" {
		t.Fatalf("unexpected Error() text: %q", err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		InvalidArgument: http.StatusBadRequest,
		InvalidState:    http.StatusBadRequest,
		RateLimit:       http.StatusBadRequest,
		NotFound:        http.StatusNotFound,
		Forbidden:       http.StatusForbidden,
		External:        http.StatusInternalServerError,
		Internal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%v.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}
