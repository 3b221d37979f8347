package flagcore

import (
	"errors"
	"testing"
)

func TestOutputLoggerLogCallbackReceivesSanitizedMessage(t *testing.T) {
	var got string
	var gotErr error
	o := &OutputLogger{options: OutputLoggerOptions{LogCallback: func(message string, err error) {
		got = message
		gotErr = err
	}}}
	o.Log("key is secret-abc123XYZ, do not leak it", nil)
	if got == "" {
		t.Fatalf("expected the callback to be invoked")
	}
	if gotErr != nil {
		t.Fatalf("expected a nil error")
	}
	if got == "key is secret-abc123XYZ, do not leak it" {
		t.Fatalf("expected the secret key to be redacted, got %q", got)
	}
}

func TestOutputLoggerIncrementRoutesThroughObservabilityClient(t *testing.T) {
	obs := NewObservabilityClientExample()
	o := &OutputLogger{options: OutputLoggerOptions{ObservabilityClient: obs}}
	o.Increment("my_metric", 1, nil)
	metrics := obs.GetMetrics("increment")
	if len(metrics) != 1 {
		t.Fatalf("expected 1 increment metric, got %d", len(metrics))
	}
	if metrics[0].Name != metricPrefix+".my_metric" {
		t.Fatalf("expected the metric name to be prefixed, got %q", metrics[0].Name)
	}
}

func TestOutputLoggerLogPostInitLocalModeSuccess(t *testing.T) {
	var logged string
	o := &OutputLogger{options: OutputLoggerOptions{LogCallback: func(message string, err error) { logged = message }}}
	o.LogPostInit(&Options{LocalMode: true}, InitDetails{Success: true})
	if logged == "" {
		t.Fatalf("expected a log line for local mode success")
	}
}

func TestOutputLoggerLogPostInitFailureLogsError(t *testing.T) {
	var loggedErr error
	o := &OutputLogger{options: OutputLoggerOptions{LogCallback: func(message string, err error) { loggedErr = err }}}
	o.LogPostInit(&Options{}, InitDetails{Success: false, Error: errors.New("boom")})
	if loggedErr == nil || loggedErr.Error() != "boom" {
		t.Fatalf("expected the underlying error to be logged, got %v", loggedErr)
	}
}

func TestOutputLoggerFilterHighCardinalityTags(t *testing.T) {
	obs := NewObservabilityClientExample()
	o := &OutputLogger{options: OutputLoggerOptions{ObservabilityClient: obs}}
	out := o.filterHighCardinality(obs, map[string]interface{}{"lcut": 1, "other": "x"})
	if _, ok := out["other"]; !ok {
		t.Fatalf("expected a non-high-cardinality tag to survive filtering")
	}
}

func TestOutputLoggerNilReceiverIsInert(t *testing.T) {
	var o *OutputLogger
	o.Log("should not panic", nil)
	o.Increment("metric", 1, nil)
}
