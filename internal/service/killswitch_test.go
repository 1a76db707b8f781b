package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
)

func newTestKillSwitch() KillSwitchService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	// No repository: these tests only exercise paths that never reach the
	// audit trail (initial state and no-op transitions).
	return NewKillSwitchService(nil, logger)
}

func TestKillSwitch_StartsEnabled(t *testing.T) {
	ks := newTestKillSwitch()

	if !ks.Enabled() {
		t.Error("submissions must start enabled")
	}

	status := ks.Status()
	if !status.SubmissionsEnabled {
		t.Error("status must report submissions enabled")
	}
	if status.ChangedAt != nil {
		t.Error("fresh switch must have no change timestamp")
	}
}

func TestKillSwitch_EnableWhenEnabledIsNoOp(t *testing.T) {
	ks := newTestKillSwitch()

	// Re-enabling an enabled switch must not record a state change.
	if err := ks.Enable(context.Background(), uuid.New(), "routine check"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ks.Enabled() {
		t.Error("switch must remain enabled")
	}
	if ks.Status().ChangedAt != nil {
		t.Error("no-op transition must not update the change timestamp")
	}
}
