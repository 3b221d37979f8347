package flagcore

import "testing"

func TestNewClientMetadataFieldsPopulated(t *testing.T) {
	m := newClientMetadata()
	if m.SDKType != sdkType {
		t.Fatalf("expected sdkType %q, got %q", sdkType, m.SDKType)
	}
	if m.SDKVersion != sdkVersion {
		t.Fatalf("expected sdkVersion %q, got %q", sdkVersion, m.SDKVersion)
	}
	if m.LanguageVersion == "" {
		t.Fatalf("expected a non-empty language version")
	}
	if m.SessionID == "" {
		t.Fatalf("expected a non-empty session id")
	}
}

func TestNewClientMetadataSessionIDsAreUnique(t *testing.T) {
	a := newClientMetadata()
	b := newClientMetadata()
	if a.SessionID == b.SessionID {
		t.Fatalf("expected distinct session ids across calls")
	}
}
