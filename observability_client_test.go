package flagcore

import "testing"

func TestObservabilityClientExampleRecordsMetricsByType(t *testing.T) {
	o := NewObservabilityClientExample()
	_ = o.Increment("checks", 1, map[string]interface{}{"gate": "my_gate"})
	_ = o.Gauge("store_size", 42, nil)
	_ = o.Distribution("init_duration", 0.5, nil)

	if len(o.GetMetrics("increment")) != 1 {
		t.Fatalf("expected 1 increment metric")
	}
	if len(o.GetMetrics("gauge")) != 1 {
		t.Fatalf("expected 1 gauge metric")
	}
	if len(o.GetMetrics("distribution")) != 1 {
		t.Fatalf("expected 1 distribution metric")
	}
	if len(o.GetMetrics("")) != 3 {
		t.Fatalf("expected all 3 metrics with an empty type filter")
	}
	if len(o.GetMetrics("unknown")) != 0 {
		t.Fatalf("expected an empty slice for an unrecognized type")
	}
}

func TestObservabilityClientExampleClearMetrics(t *testing.T) {
	o := NewObservabilityClientExample()
	_ = o.Increment("checks", 1, nil)
	o.ClearMetrics()
	if len(o.GetMetrics("")) != 0 {
		t.Fatalf("expected metrics to be empty after ClearMetrics")
	}
}

func TestObservabilityClientExampleShouldEnableHighCardinality(t *testing.T) {
	o := NewObservabilityClientExample()
	if !o.ShouldEnableHighCardinalityForThisTag("any_tag") {
		t.Fatalf("expected the example client to always allow high-cardinality tags")
	}
}
