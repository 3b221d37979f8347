package flagcore

import "testing"

func newTestEvaluator(t *testing.T) *evaluator {
	t.Helper()
	options := &Options{LocalMode: true}
	diag := newDiagnostics(options)
	eb := newErrorBoundary("secret-test-key", options, diag)
	f := newFetcher("secret-test-key", options)
	return newEvaluator(f, eb, options, diag, "secret-test-key")
}

func TestCheckGateUnrecognizedReturnsFalse(t *testing.T) {
	e := newTestEvaluator(t)
	result := e.checkGate(User{UserID: "u1"}, "does_not_exist")
	if result.Pass {
		t.Fatalf("expected an unrecognized gate to not pass")
	}
	if result.EvaluationDetails.Reason != reasonUnrecognized {
		t.Fatalf("expected reasonUnrecognized, got %v", result.EvaluationDetails.Reason)
	}
}

func TestCheckGateOverrideBypassesRuleset(t *testing.T) {
	e := newTestEvaluator(t)
	e.store.featureGates["my_gate"] = ConfigSpec{Name: "my_gate", Enabled: false}
	e.OverrideGate("my_gate", true, "")

	result := e.checkGate(User{UserID: "u1"}, "my_gate")
	if !result.Pass {
		t.Fatalf("expected override to force the gate to pass")
	}
	if result.RuleID != "override" {
		t.Fatalf("expected rule id override, got %q", result.RuleID)
	}
}

func TestGetConfigOverrideBypassesRuleset(t *testing.T) {
	e := newTestEvaluator(t)
	e.OverrideConfig("my_config", map[string]interface{}{"a": "b"}, "")

	result := e.getConfig(User{UserID: "u1"}, "my_config")
	if !result.Pass {
		t.Fatalf("expected override config to pass")
	}
	if result.ConfigValue.GetString("a", "") != "b" {
		t.Fatalf("expected overridden value a=b, got %v", result.ConfigValue.Value)
	}
}

func TestGetLayerOverrideBypassesRuleset(t *testing.T) {
	e := newTestEvaluator(t)
	e.OverrideLayer("my_layer", map[string]interface{}{"x": "y"}, "")

	result := e.getLayer(User{UserID: "u1"}, "my_layer")
	if !result.Pass {
		t.Fatalf("expected override layer to pass")
	}
	if result.ConfigValue.GetString("x", "") != "y" {
		t.Fatalf("expected overridden value x=y, got %v", result.ConfigValue.Value)
	}
}

func TestCheckGateOverridePrefersUserSpecificOverGlobal(t *testing.T) {
	e := newTestEvaluator(t)
	e.store.featureGates["my_gate"] = ConfigSpec{Name: "my_gate", Enabled: false}
	e.OverrideGate("my_gate", true, "")
	e.OverrideGate("my_gate", false, "u1")

	if result := e.checkGate(User{UserID: "u1"}, "my_gate"); result.Pass {
		t.Fatalf("expected the user-specific override to win over the global override")
	}
	if result := e.checkGate(User{UserID: "u2"}, "my_gate"); !result.Pass {
		t.Fatalf("expected a user with no specific override to fall back to the global override")
	}
}

func TestClearAllGateOverridesRemovesGlobalAndPerUser(t *testing.T) {
	e := newTestEvaluator(t)
	e.store.featureGates["my_gate"] = ConfigSpec{Name: "my_gate", Enabled: false}
	e.OverrideGate("my_gate", true, "")
	e.OverrideGate("my_gate", true, "u1")
	e.ClearAllGateOverrides()

	if result := e.checkGate(User{UserID: "u1"}, "my_gate"); result.Pass {
		t.Fatalf("expected ClearAllGateOverrides to remove the per-user override")
	}
	if result := e.checkGate(User{UserID: "u2"}, "my_gate"); result.Pass {
		t.Fatalf("expected ClearAllGateOverrides to remove the global override")
	}
}

func TestClearAllConfigAndLayerOverrides(t *testing.T) {
	e := newTestEvaluator(t)
	e.OverrideConfig("my_config", map[string]interface{}{"a": "b"}, "")
	e.OverrideLayer("my_layer", map[string]interface{}{"x": "y"}, "")
	e.ClearAllConfigOverrides()
	e.ClearAllLayerOverrides()

	if result := e.getConfig(User{UserID: "u1"}, "my_config"); result.Pass {
		t.Fatalf("expected ClearAllConfigOverrides to remove the override")
	}
	if result := e.getLayer(User{UserID: "u1"}, "my_layer"); result.Pass {
		t.Fatalf("expected ClearAllLayerOverrides to remove the override")
	}
}

func TestEvalPublicConditionPasses(t *testing.T) {
	e := newTestEvaluator(t)
	spec := ConfigSpec{
		Name:    "public_gate",
		Type:    "feature_gate",
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:             "rule_1",
				PassPercentage: 100,
				Conditions:     []ConfigCondition{{Type: "public"}},
			},
		},
	}
	e.store.featureGates["public_gate"] = spec
	result := e.checkGate(User{UserID: "u1"}, "public_gate")
	if !result.Pass {
		t.Fatalf("expected the public condition to always pass")
	}
	if result.RuleID != "rule_1" {
		t.Fatalf("expected rule_1, got %q", result.RuleID)
	}
}

func TestEvalDisabledGateFallsThroughToDefault(t *testing.T) {
	e := newTestEvaluator(t)
	e.store.featureGates["disabled_gate"] = ConfigSpec{
		Name:    "disabled_gate",
		Type:    "feature_gate",
		Enabled: false,
		Rules: []ConfigRule{
			{ID: "rule_1", PassPercentage: 100, Conditions: []ConfigCondition{{Type: "public"}}},
		},
	}
	result := e.checkGate(User{UserID: "u1"}, "disabled_gate")
	if result.Pass {
		t.Fatalf("expected a disabled gate to never pass")
	}
	if result.RuleID != "disabled" {
		t.Fatalf("expected rule id disabled, got %q", result.RuleID)
	}
}

func TestEvalUserFieldEquals(t *testing.T) {
	e := newTestEvaluator(t)
	e.store.featureGates["country_gate"] = ConfigSpec{
		Name:    "country_gate",
		Type:    "feature_gate",
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:             "rule_1",
				PassPercentage: 100,
				Conditions: []ConfigCondition{
					{Type: "user_field", Operator: "eq", Field: "country", TargetValue: "US"},
				},
			},
		},
	}
	if !e.checkGate(User{UserID: "u1", Country: "US"}, "country_gate").Pass {
		t.Fatalf("expected a US user to pass")
	}
	if e.checkGate(User{UserID: "u2", Country: "CA"}, "country_gate").Pass {
		t.Fatalf("expected a CA user to fail")
	}
}

func TestEvalDelegateGroupNamePrecedence(t *testing.T) {
	e := newTestEvaluator(t)
	e.store.dynamicConfigs["delegate_experiment"] = ConfigSpec{
		Name:    "delegate_experiment",
		Type:    dynamicConfigType,
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:              "delegate_rule",
				GroupName:       "delegate_group",
				PassPercentage:  100,
				Conditions:      []ConfigCondition{{Type: "public"}},
				ReturnValueJSON: map[string]interface{}{"delegated": true},
			},
		},
	}
	e.store.dynamicConfigs["my_layer_config"] = ConfigSpec{
		Name:    "my_layer_config",
		Type:    dynamicConfigType,
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:             "host_rule",
				GroupName:      "host_group",
				PassPercentage: 100,
				Conditions:     []ConfigCondition{{Type: "public"}},
				ConfigDelegate: "delegate_experiment",
			},
		},
	}
	result := e.getConfig(User{UserID: "u1"}, "my_layer_config")
	if result.GroupName != "delegate_group" {
		t.Fatalf("expected the delegate's non-empty groupName to win, got %q", result.GroupName)
	}
	if result.ConfigDelegate != "delegate_experiment" {
		t.Fatalf("expected ConfigDelegate to be set, got %q", result.ConfigDelegate)
	}
}

func TestEvalUserBucketUsesPrecomputedSet(t *testing.T) {
	e := newTestEvaluator(t)
	spec := ConfigSpec{
		Name:    "bucket_gate",
		Type:    "feature_gate",
		Salt:    "salt",
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:             "rule_1",
				PassPercentage: 100,
				Conditions: []ConfigCondition{
					{
						Type:             "user_bucket",
						Operator:         "none",
						AdditionalValues: map[string]interface{}{"salt": "bucket_salt"},
						TargetValue:      []interface{}{},
						UserBucket:       map[int64]bool{},
					},
				},
			},
		},
	}
	e.store.featureGates["bucket_gate"] = spec
	result := e.checkGate(User{UserID: "u1"}, "bucket_gate")
	if !result.Pass {
		t.Fatalf("expected a none-operator with an empty precomputed bucket set to always pass")
	}
}

func TestEvalUserBucketMissingSaltFailsClosed(t *testing.T) {
	e := newTestEvaluator(t)
	anySpec := ConfigSpec{
		Name:    "bucket_gate_any",
		Type:    "feature_gate",
		Salt:    "salt",
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:             "rule_1",
				PassPercentage: 100,
				Conditions: []ConfigCondition{
					{
						Type:        "user_bucket",
						Operator:    "any",
						TargetValue: []interface{}{float64(0)},
						UserBucket:  map[int64]bool{0: true},
					},
				},
			},
		},
	}
	e.store.featureGates["bucket_gate_any"] = anySpec
	if result := e.checkGate(User{UserID: "u1"}, "bucket_gate_any"); result.Pass {
		t.Fatalf("expected a missing salt to fail closed for 'any' even though bucket 0 is in the target set")
	}

	noneSpec := ConfigSpec{
		Name:    "bucket_gate_none",
		Type:    "feature_gate",
		Salt:    "salt",
		Enabled: true,
		Rules: []ConfigRule{
			{
				ID:             "rule_1",
				PassPercentage: 100,
				Conditions: []ConfigCondition{
					{
						Type:        "user_bucket",
						Operator:    "none",
						TargetValue: []interface{}{float64(0)},
						UserBucket:  map[int64]bool{0: true},
					},
				},
			},
		},
	}
	e.store.featureGates["bucket_gate_none"] = noneSpec
	if result := e.checkGate(User{UserID: "u1"}, "bucket_gate_none"); !result.Pass {
		t.Fatalf("expected a missing salt to always pass for 'none'")
	}
}

func TestCheckSegmentMembershipCachesLookup(t *testing.T) {
	e := newTestEvaluator(t)
	if e.checkSegmentMembership("no_such_list", "u1") {
		t.Fatalf("expected a missing id list to report no membership")
	}
	cacheKey := "no_such_list|" + segmentHash("u1")
	if _, ok := e.segmentLookups.get(cacheKey); !ok {
		t.Fatalf("expected the lookup result to be cached")
	}
}
