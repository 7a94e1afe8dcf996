//go:build linux

package actuator

import (
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "horn-node"

// gpioDriver drives one output line on a GPIO character device.
type gpioDriver struct {
	mu     sync.Mutex
	chip   *gpiod.Chip
	line   *gpiod.Line
	closed bool
}

func openGPIO(chipName string, offset int, activeLow bool) (*gpioDriver, error) {
	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer(gpioConsumer))
	if err != nil {
		return nil, fmt.Errorf("opening chip %s: %w", chipName, err)
	}

	opts := []gpiod.LineReqOption{gpiod.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiod.AsActiveLow)
	}

	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		chip.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("requesting line %d on %s: %w", offset, chipName, err)
	}

	return &gpioDriver{chip: chip, line: line}, nil
}

func (g *gpioDriver) Set(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}

	value := 0
	if on {
		value = 1
	}
	if err := g.line.SetValue(value); err != nil {
		return fmt.Errorf("setting line value: %w", err)
	}
	return nil
}

// Close drives the line off before releasing it.
func (g *gpioDriver) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	g.line.SetValue(0) //nolint:errcheck // best effort before release
	lineErr := g.line.Close()
	chipErr := g.chip.Close()
	if lineErr != nil {
		return fmt.Errorf("closing line: %w", lineErr)
	}
	if chipErr != nil {
		return fmt.Errorf("closing chip: %w", chipErr)
	}
	return nil
}
