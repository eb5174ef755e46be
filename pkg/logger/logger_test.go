package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func swapGlobal(t *testing.T, l *zap.Logger) {
	t.Cleanup(func() {
		mu.Lock()
		global = zap.NewNop()
		mu.Unlock()
	})
	mu.Lock()
	global = l
	mu.Unlock()
}

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		global = zap.NewNop()
		mu.Unlock()
	})

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	if !Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		global = zap.NewNop()
		mu.Unlock()
	})

	if err := Init("loud"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	if Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("unknown level must fall back to info, not debug")
	}
	if !Logger().Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info level to be enabled")
	}
}

func TestLoggingHelpersEmitEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	swapGlobal(t, zap.New(core))

	Info("info message", zap.String("k", "v"))
	Error("error message")
	Warn("warn message")
	Debug("debug message")

	if recorded.Len() != 4 {
		t.Fatalf("expected 4 log entries, got %d", recorded.Len())
	}

	messages := recorded.All()
	want := []string{"info message", "error message", "warn message", "debug message"}
	for i, entry := range messages {
		if entry.Message != want[i] {
			t.Fatalf("entry %d message = %q, want %q", i, entry.Message, want[i])
		}
	}
	if field := messages[0].ContextMap()["k"]; field != "v" {
		t.Fatalf("expected field \"k\" to equal \"v\", got %v", field)
	}
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	swapGlobal(t, zap.New(core))

	WithModule("authz").Info("module test")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if module := entries[0].ContextMap()["module"]; module != "authz" {
		t.Fatalf("expected module field to be \"authz\", got %v", module)
	}
}

func TestStandardFieldHelpers(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	swapGlobal(t, zap.New(core))

	Info("decision", Tenant("org_1"), Subject("alice"))

	fields := recorded.All()[0].ContextMap()
	if fields["tenant_id"] != "org_1" {
		t.Fatalf("expected tenant_id field, got %v", fields["tenant_id"])
	}
	if fields["user_id"] != "alice" {
		t.Fatalf("expected user_id field, got %v", fields["user_id"])
	}
}
