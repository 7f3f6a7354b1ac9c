package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(3, 1, time.Hour)
	fail := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(fail); err == nil {
			t.Fatalf("call %d unexpectedly succeeded", i)
		}
	}
	if cb.State() != Open {
		t.Fatalf("state = %v, want Open after 3 failures", cb.State())
	}
	if _, err := cb.Execute(fail); err != ErrCircuitOpen {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := New(1, 1, time.Millisecond)
	if _, err := cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") }); err == nil {
		t.Fatal("failing call succeeded")
	}
	if cb.State() != Open {
		t.Fatalf("state = %v, want Open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if cb.State() != Closed {
		t.Errorf("state = %v, want Closed after successful trial", cb.State())
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := New(2, 1, time.Hour)
	for i := 0; i < 5; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return i, nil }); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if cb.State() != Closed {
		t.Errorf("state = %v, want Closed", cb.State())
	}
}
