package flagcore

import "testing"

func TestSDKConfigsOnReportsExistence(t *testing.T) {
	s := newSDKConfigs()
	if _, exists := s.on("kill_switch"); exists {
		t.Fatalf("expected an unset flag to report not-exists")
	}
	s.setFlags(map[string]bool{"kill_switch": true})
	val, exists := s.on("kill_switch")
	if !exists || !val {
		t.Fatalf("expected kill_switch=true, exists=true, got %v %v", val, exists)
	}
}

func TestSDKConfigsConfigIntValue(t *testing.T) {
	s := newSDKConfigs()
	s.setConfigs(map[string]interface{}{"exposure_dedupe_window_seconds": float64(120)})
	v, ok := s.configIntValue("exposure_dedupe_window_seconds")
	if !ok || v != 120 {
		t.Fatalf("expected 120, got %v (ok=%v)", v, ok)
	}
	if _, ok := s.configIntValue("missing"); ok {
		t.Fatalf("expected a missing key to report not-ok")
	}
}

func TestSDKConfigsConfigStrValue(t *testing.T) {
	s := newSDKConfigs()
	s.setConfigs(map[string]interface{}{
		"str_key":   "hello",
		"float_key": float64(3.5),
		"int_key":   42,
	})
	if v, ok := s.configStrValue("str_key"); !ok || v != "hello" {
		t.Fatalf("expected hello, got %q (ok=%v)", v, ok)
	}
	if v, ok := s.configStrValue("float_key"); !ok || v != "3.5" {
		t.Fatalf("expected 3.5, got %q (ok=%v)", v, ok)
	}
	if v, ok := s.configStrValue("int_key"); !ok || v != "42" {
		t.Fatalf("expected 42, got %q (ok=%v)", v, ok)
	}
}

func TestSDKConfigsSetConfigsReplacesWholesale(t *testing.T) {
	s := newSDKConfigs()
	s.setConfigs(map[string]interface{}{"a": float64(1)})
	s.setConfigs(map[string]interface{}{"b": float64(2)})
	if _, ok := s.configIntValue("a"); ok {
		t.Fatalf("expected the old config set to be fully replaced")
	}
	if v, ok := s.configIntValue("b"); !ok || v != 2 {
		t.Fatalf("expected b=2, got %v (ok=%v)", v, ok)
	}
}
