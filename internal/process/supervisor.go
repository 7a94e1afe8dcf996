package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a supervised process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// ErrAlreadyRunning is returned by Start while the process is running.
var ErrAlreadyRunning = errors.New("process: already running")

// Config describes a supervised daemon.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value). Nil inherits the parent's.
	Env []string

	// RestartOnFailure restarts the process when it exits without Stop being called.
	RestartOnFailure bool

	// RestartDelay is the first backoff delay; it doubles up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestarts limits restarts. 0 means unlimited.
	MaxRestarts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor runs one daemon and keeps it alive.
//
// Thread Safety: All methods are safe for concurrent use.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	restarts  int
	lastErr   error
	startedAt time.Time
	stopping  bool
	quit      chan struct{}
	done      chan struct{}
}

// NewSupervisor creates a supervisor. Zero durations get defaults.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = time.Minute
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	return &Supervisor{
		cfg:    cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start launches the process and a goroutine watching it.
// It returns an error if the first launch fails.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusStarting {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.cfg.Name)
	}
	s.status = StatusStarting
	s.stopping = false
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	cmd, err := s.launch(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()
		close(done)
		return err
	}

	go s.watch(ctx, cmd, done)
	return nil
}

func (s *Supervisor) launch(ctx context.Context) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.Args...) //nolint:gosec // binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if s.cfg.Env != nil {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.relay("stdout", stdout)
	go s.relay("stderr", stderr)

	s.logger.Info("process started", "name", s.cfg.Name, "pid", cmd.Process.Pid)
	return cmd, nil
}

// relay logs the daemon's output line by line.
func (s *Supervisor) relay(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("process output", "name", s.cfg.Name, "stream", stream, "line", scanner.Text())
	}
}

func (s *Supervisor) watch(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	delay := s.cfg.RestartDelay
	for {
		err := cmd.Wait()

		s.mu.Lock()
		stopping := s.stopping
		if stopping {
			s.status = StatusStopped
		} else {
			s.status = StatusFailed
			s.lastErr = err
		}
		s.mu.Unlock()

		if stopping {
			s.logger.Info("process stopped", "name", s.cfg.Name)
			return
		}

		s.logger.Warn("process exited unexpectedly", "name", s.cfg.Name, "error", err)
		if !s.cfg.RestartOnFailure {
			return
		}

		s.mu.Lock()
		s.restarts++
		attempt := s.restarts
		s.mu.Unlock()

		if s.cfg.MaxRestarts > 0 && attempt > s.cfg.MaxRestarts {
			s.logger.Error("restart limit reached", "name", s.cfg.Name, "restarts", attempt-1)
			return
		}

		s.logger.Info("restarting process", "name", s.cfg.Name, "attempt", attempt, "delay", delay)
		s.mu.RLock()
		quit := s.quit
		s.mu.RUnlock()
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-time.After(delay):
		}
		delay = nextDelay(delay, s.cfg.MaxRestartDelay)

		s.mu.RLock()
		stopping = s.stopping
		s.mu.RUnlock()
		if stopping {
			return
		}

		next, err := s.launch(ctx)
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.logger.Error("failed to restart process", "name", s.cfg.Name, "error", err)
			return
		}
		cmd = next
	}
}

// nextDelay doubles d, capped at limit.
func nextDelay(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

// Stop terminates the process group, escalating to SIGKILL after GracefulTimeout.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.stopping && s.quit != nil {
		close(s.quit)
	}
	s.stopping = true
	cmd := s.cmd
	done := s.done
	running := s.status == StatusRunning
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	if !running || cmd == nil || cmd.Process == nil {
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	s.logger.Info("stopping process", "name", s.cfg.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("sending SIGTERM failed", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
		s.logger.Warn("graceful stop timed out, sending SIGKILL", "name", s.cfg.Name)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", s.cfg.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status of the supervised process.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Stats is a snapshot of supervisor state.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Name:     s.cfg.Name,
		Status:   s.status,
		Restarts: s.restarts,
	}
	if s.status == StatusRunning {
		if s.cmd != nil && s.cmd.Process != nil {
			st.PID = s.cmd.Process.Pid
		}
		st.Uptime = time.Since(s.startedAt)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
