package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"upstream", Upstream(503, "service unavailable"), KindUpstream},
		{"wrapped not found", fmt.Errorf("get match: %w", NotFound("match %s", "NA1_1")), KindNotFound},
		{"malformed", Malformed("player missing"), KindMalformedPayload},
		{"validation", Validation("limit must be positive"), KindValidation},
		{"insufficient", InsufficientData("need 2 matches"), KindInsufficientData},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpstreamErrorString(t *testing.T) {
	err := Upstream(429, "rate limited")
	if err.Error() != "upstream: status 429: rate limited" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
	if Message(err) != "rate limited" {
		t.Errorf("unexpected message: %q", Message(err))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := UpstreamWrap(cause, "request failed")
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if !Is(err, KindUpstream) {
		t.Error("expected upstream kind")
	}
}
