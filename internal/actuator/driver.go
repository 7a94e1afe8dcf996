// Package actuator drives the horn's physical output.
//
// A Driver exposes a single boolean effect. Three drivers are available:
//
//   - gpio: a Linux GPIO character-device line (go-gpiocdev)
//   - console: a terminal indicator printing "!" while on and "-" while off
//   - memory: an in-memory recorder for tests and dry runs
package actuator

import (
	"fmt"
	"os"
	"time"

	"github.com/nerrad567/horn-node/internal/infrastructure/config"
)

// Driver sets a binary physical output.
type Driver interface {
	// Set drives the output on or off.
	Set(on bool) error
	// Close releases the output. Set must not be called afterwards.
	Close() error
}

// Logger is the logging interface used by drivers.
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

// Open creates the driver selected by cfg.Driver. The output starts off.
func Open(cfg config.ActuatorConfig, logger Logger) (Driver, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch cfg.Driver {
	case "gpio":
		d, err := openGPIO(cfg.Chip, cfg.Line, cfg.ActiveLow)
		if err != nil {
			return nil, err
		}
		logger.Info("gpio actuator ready", "chip", cfg.Chip, "line", cfg.Line, "active_low", cfg.ActiveLow)
		return d, nil
	case "console":
		interval := time.Duration(cfg.Interval) * time.Millisecond
		logger.Info("console actuator ready", "interval", interval)
		return NewConsole(os.Stdout, interval), nil
	case "memory":
		logger.Info("memory actuator ready")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
