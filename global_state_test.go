package flagcore

import "testing"

func TestLoggerReturnsInertStandInBeforeInitialization(t *testing.T) {
	global = globalState{}
	l := Logger()
	if l == nil {
		t.Fatalf("expected a non-nil stand-in logger")
	}
	l.Log("should not panic", nil)
}

func TestInitializeGlobalOutputLoggerInstallsLogger(t *testing.T) {
	global = globalState{}
	var called bool
	InitializeGlobalOutputLogger(OutputLoggerOptions{LogCallback: func(message string, err error) { called = true }})
	Logger().Log("hello", nil)
	if !called {
		t.Fatalf("expected the installed logger's callback to fire")
	}
	global = globalState{}
}
