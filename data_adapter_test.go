package flagcore

import "testing"

func TestDataAdapterExampleGetSetRoundTrip(t *testing.T) {
	d := NewDataAdapterExample()
	if d.Get("missing") != "" {
		t.Fatalf("expected an empty string for a missing key")
	}
	d.Set("gates", `{"feature_gates":[]}`)
	if d.Get("gates") != `{"feature_gates":[]}` {
		t.Fatalf("expected the stored value to round-trip")
	}
}

func TestDataAdapterExampleNeverTakesOverPolling(t *testing.T) {
	d := NewDataAdapterExample()
	if d.ShouldBeUsedForQueryingUpdates("gates") {
		t.Fatalf("expected the example adapter to always defer to network sync")
	}
}
