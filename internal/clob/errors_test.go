package clob

import (
	"fmt"
	"testing"
)

func TestAPIError_Rejection(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{400, true},
		{401, true},
		{404, true},
		{408, false},
		{429, false},
		{500, false},
		{503, false},
	}
	for _, c := range cases {
		e := &APIError{Status: c.status, Method: "POST", Path: "/order"}
		if got := e.Rejection(); got != c.want {
			t.Fatalf("status %d: Rejection() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestIsRejection_Unwraps(t *testing.T) {
	inner := &APIError{Status: 400, Method: "POST", Path: "/order", Body: "invalid order"}
	wrapped := fmt.Errorf("place order: %w", inner)
	if !IsRejection(wrapped) {
		t.Fatalf("wrapped 400 should classify as rejection")
	}
	if IsRejection(fmt.Errorf("dial tcp: connection refused")) {
		t.Fatalf("plain network error misclassified as rejection")
	}
	if IsRejection(fmt.Errorf("rate limited: %w", &APIError{Status: 429})) {
		t.Fatalf("429 should stay transient")
	}
}
