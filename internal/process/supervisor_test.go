package process

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNewSupervisor_Defaults(t *testing.T) {
	s := NewSupervisor(Config{Name: "sup", Binary: "/bin/true"})

	if s.cfg.RestartDelay != 2*time.Second {
		t.Errorf("RestartDelay = %v, want 2s", s.cfg.RestartDelay)
	}
	if s.cfg.MaxRestartDelay != time.Minute {
		t.Errorf("MaxRestartDelay = %v, want 1m", s.cfg.MaxRestartDelay)
	}
	if s.cfg.GracefulTimeout != 5*time.Second {
		t.Errorf("GracefulTimeout = %v, want 5s", s.cfg.GracefulTimeout)
	}
	if s.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", s.Status(), StatusStopped)
	}
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		in, limit, want time.Duration
	}{
		{time.Second, time.Minute, 2 * time.Second},
		{40 * time.Second, time.Minute, time.Minute},
		{time.Minute, time.Minute, time.Minute},
	}
	for _, tt := range tests {
		if got := nextDelay(tt.in, tt.limit); got != tt.want {
			t.Errorf("nextDelay(%v, %v) = %v, want %v", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestSupervisor_StopWhenNeverStarted(t *testing.T) {
	s := NewSupervisor(Config{Name: "idle", Binary: "/bin/true"})
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestSupervisor_StartInvalidBinary(t *testing.T) {
	s := NewSupervisor(Config{Name: "missing", Binary: "/nonexistent/supplicant"})

	err := s.Start(context.Background())
	if err == nil {
		t.Fatal("Start() expected error for missing binary")
	}
	if s.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", s.Status(), StatusFailed)
	}
	if s.Stats().LastError == "" {
		t.Error("Stats().LastError should be set")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() after failed start error = %v", err)
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	sleep := requireBinary(t, "sleep")
	s := NewSupervisor(Config{Name: "sleeper", Binary: sleep, Args: []string{"30"}})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Status() != StatusRunning {
		t.Fatalf("Status() = %q, want %q", s.Status(), StatusRunning)
	}
	if s.Stats().PID == 0 {
		t.Error("Stats().PID should be set while running")
	}

	err := s.Start(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.Status() != StatusStopped {
		t.Errorf("Status() after Stop = %q, want %q", s.Status(), StatusStopped)
	}
}

func TestSupervisor_RestartsOnFailure(t *testing.T) {
	falseBin := requireBinary(t, "false")
	s := NewSupervisor(Config{
		Name:             "flaky",
		Binary:           falseBin,
		RestartOnFailure: true,
		RestartDelay:     10 * time.Millisecond,
		MaxRestartDelay:  20 * time.Millisecond,
		MaxRestarts:      2,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		st := s.Stats()
		return st.Restarts > 2 && st.Status == StatusFailed
	})

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestSupervisor_NoRestartWhenDisabled(t *testing.T) {
	falseBin := requireBinary(t, "false")
	s := NewSupervisor(Config{Name: "once", Binary: falseBin})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return s.Status() == StatusFailed })

	if got := s.Stats().Restarts; got != 0 {
		t.Errorf("Restarts = %d, want 0", got)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
