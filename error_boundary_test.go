package flagcore

import (
	"errors"
	"testing"
)

func newTestErrorBoundary() *errorBoundary {
	return newErrorBoundary("secret-test-key", &Options{LocalMode: true}, nil)
}

func TestErrorBoundaryCaptureRecoversPanic(t *testing.T) {
	eb := newTestErrorBoundary()
	var recovered interface{}
	eb.capture("testMethod", func() {
		panic("boom")
	}, func(r interface{}) { recovered = r })
	if recovered != "boom" {
		t.Fatalf("expected onPanic to receive the recovered value, got %v", recovered)
	}
}

func TestErrorBoundaryCaptureRunsTaskWhenNoPanic(t *testing.T) {
	eb := newTestErrorBoundary()
	var ran bool
	eb.capture("testMethod", func() { ran = true }, func(interface{}) {
		t.Fatalf("onPanic should not run when task doesn't panic")
	})
	if !ran {
		t.Fatalf("expected the task to run")
	}
}

func TestErrorBoundaryLogExceptionDedupesByMessage(t *testing.T) {
	eb := newTestErrorBoundary()
	first := eb.logException(errors.New("repeated failure"))
	second := eb.logException(errors.New("repeated failure"))
	if first == nil {
		t.Fatalf("expected the first occurrence to attempt a report (local-mode network error)")
	}
	if second != nil {
		t.Fatalf("expected the second identical message to be suppressed without attempting a report")
	}
}

func TestErrorBoundaryLogExceptionNilIsNoop(t *testing.T) {
	eb := newTestErrorBoundary()
	if err := eb.logException(nil); err != nil {
		t.Fatalf("expected a nil exception to be a no-op, got %v", err)
	}
}
