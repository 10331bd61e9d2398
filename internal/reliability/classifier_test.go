package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]Class{
		401: ClassMisconfigured,
		403: ClassMisconfigured,
		429: ClassRateLimited,
		500: ClassTransient,
		503: ClassTransient,
		400: ClassUnknown,
	}
	for code, want := range cases {
		if got := ClassifyHTTPStatus(code); got != want {
			t.Fatalf("ClassifyHTTPStatus(%d) = %q, want %q", code, got, want)
		}
	}
}

type classifiedErr struct{ class Class }

func (e classifiedErr) Error() string       { return "classified" }
func (e classifiedErr) FailureClass() Class { return e.class }

func TestClassifyPrefersTypedClass(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", classifiedErr{class: ClassContentFiltered})
	if got := Classify(err); got != ClassContentFiltered {
		t.Fatalf("Classify() = %q, want %q", got, ClassContentFiltered)
	}
}

func TestClassifyContextErrorsAreTransient(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != ClassTransient {
		t.Fatalf("Classify(DeadlineExceeded) = %q", got)
	}
	if got := Classify(fmt.Errorf("call: %w", context.Canceled)); got != ClassTransient {
		t.Fatalf("Classify(Canceled) = %q", got)
	}
}

func TestClassifyMessage(t *testing.T) {
	cases := map[string]Class{
		"API key not valid. Please pass a valid API key.": ClassMisconfigured,
		"You exceeded your current quota":                 ClassRateLimited,
		"response blocked due to SAFETY":                  ClassContentFiltered,
		"upstream returned 503":                           ClassTransient,
		"something odd happened":                          ClassUnknown,
	}
	for msg, want := range cases {
		if got := Classify(errors.New(msg)); got != want {
			t.Fatalf("Classify(%q) = %q, want %q", msg, got, want)
		}
	}
	if got := Classify(nil); got != "" {
		t.Fatalf("Classify(nil) = %q, want empty", got)
	}
}

func TestClassRetryable(t *testing.T) {
	for _, c := range []Class{ClassTransient, ClassRateLimited, ClassUnknown} {
		if !c.Retryable() {
			t.Fatalf("%q should be retryable", c)
		}
	}
	for _, c := range []Class{ClassMisconfigured, ClassContentFiltered, ClassInvalidInput} {
		if c.Retryable() {
			t.Fatalf("%q should not be retryable", c)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}

func TestScheduleDoublesFromBase(t *testing.T) {
	s := NewSchedule(time.Second, 30*time.Second)
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := s.NextBackOff(); got != w {
			t.Fatalf("NextBackOff() #%d = %v, want %v", i+1, got, w)
		}
	}
	s.Reset()
	if got := s.NextBackOff(); got != 2*time.Second {
		t.Fatalf("after Reset NextBackOff() = %v, want 2s", got)
	}
}
