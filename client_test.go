package flagcore

import "testing"

func newLocalTestClient() *Client {
	return NewClientWithOptions("secret-test-key", &Options{LocalMode: true})
}

func TestNewClientWithOptionsLocalMode(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()
	if c == nil {
		t.Fatalf("expected a non-nil client")
	}
}

func TestNewClientWithOptionsRejectsNonSecretKeyOutsideLocalMode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a non-secret key outside local mode")
		}
	}()
	NewClientWithOptions("client-bad-key", &Options{})
}

func TestClientCheckGateWithOverride(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	user := User{UserID: "u1"}
	if c.CheckGate(user, "my_gate") {
		t.Fatalf("expected an unrecognized gate to be off by default")
	}
	c.OverrideGate("my_gate", true)
	if !c.CheckGate(user, "my_gate") {
		t.Fatalf("expected the override to turn my_gate on")
	}
}

func TestClientGetConfigWithOverride(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	user := User{UserID: "u1"}
	c.OverrideConfig("my_config", map[string]interface{}{"key": "value"})
	cfg := c.GetConfig(user, "my_config")
	if cfg.GetString("key", "") != "value" {
		t.Fatalf("expected overridden config value, got %v", cfg.Value)
	}
}

func TestClientGetLayerWithOverride(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	user := User{UserID: "u1"}
	c.OverrideLayer("my_layer", map[string]interface{}{"key": "value"})
	layer := c.GetLayer(user, "my_layer")
	if layer.GetString("key", "") != "value" {
		t.Fatalf("expected overridden layer value, got %v", layer.Value)
	}
}

func TestClientOverrideGateByUserIDDoesNotLeakToOtherUsers(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	c.OverrideGate("my_gate", true, "u1")
	if !c.CheckGate(User{UserID: "u1"}, "my_gate") {
		t.Fatalf("expected the per-user override to apply to u1")
	}
	if c.CheckGate(User{UserID: "u2"}, "my_gate") {
		t.Fatalf("expected the per-user override to not apply to a different user")
	}
}

func TestClientClearAllGateOverrides(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	c.OverrideGate("my_gate", true)
	c.ClearAllGateOverrides()
	if c.CheckGate(User{UserID: "u1"}, "my_gate") {
		t.Fatalf("expected ClearAllGateOverrides to remove the global override")
	}
}

func TestClientVerifyUserRejectsEmptyUser(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	c.OverrideGate("my_gate", true)
	if c.CheckGate(User{}, "my_gate") {
		t.Fatalf("expected an empty user (no UserID, no CustomIDs) to fail verification and not pass")
	}
}

func TestClientVerifyUserAcceptsCustomIDsOnly(t *testing.T) {
	c := newLocalTestClient()
	defer c.Shutdown()

	c.OverrideGate("my_gate", true)
	user := User{CustomIDs: map[string]string{"companyID": "acme"}}
	if !c.CheckGate(user, "my_gate") {
		t.Fatalf("expected a user identified only by CustomIDs to be valid")
	}
}

func TestClientNormalizeUserMergesEnvironment(t *testing.T) {
	c := NewClientWithOptions("secret-test-key", &Options{
		LocalMode:   true,
		Environment: Environment{Tier: "staging"},
	})
	defer c.Shutdown()

	user := c.normalizeUser(User{UserID: "u1"})
	if user.StatsigEnvironment["tier"] != "staging" {
		t.Fatalf("expected tier=staging to be merged in, got %v", user.StatsigEnvironment)
	}
}

func TestClientShutdownIsSafeToCallOnce(t *testing.T) {
	c := newLocalTestClient()
	c.Shutdown()
}
