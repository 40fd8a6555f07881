package app

import (
	"log/slog"
	"testing"
)

func TestCloseOnPartialApp(t *testing.T) {
	t.Parallel()

	// Close must tolerate a partially constructed App (setup failure path).
	a := &App{Logger: slog.New(slog.DiscardHandler)}
	if err := a.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestCloseRunsCleanups(t *testing.T) {
	t.Parallel()

	var dbClosed, otelClosed bool
	a := &App{
		Logger:      slog.New(slog.DiscardHandler),
		dbCleanup:   func() { dbClosed = true },
		otelCleanup: func() { otelClosed = true },
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() = %v, want nil", err)
	}
	if !dbClosed {
		t.Error("database cleanup not invoked")
	}
	if !otelClosed {
		t.Error("otel cleanup not invoked")
	}
}
