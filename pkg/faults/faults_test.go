package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not found", err: NotFound("resource %s not found", "r1"), want: KindNotFound},
		{name: "wrapped conflict", err: fmt.Errorf("acquire: %w", Conflict("locked")), want: KindConflict},
		{name: "upstream", err: Upstream("create protection", cause), want: KindUpstreamFailure},
		{name: "plain error", err: cause, want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidRequest("parent id is required"))
	if !Is(err, KindInvalidRequest) {
		t.Fatalf("Is(err, KindInvalidRequest) = false, want true")
	}
	if Is(err, KindConflict) {
		t.Fatalf("Is(err, KindConflict) = true, want false")
	}
	if Is(nil, KindInternal) {
		t.Fatalf("Is(nil) = true, want false")
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Upstream("delete protection", cause)

	if got, want := err.Error(), "delete protection: timeout"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}
