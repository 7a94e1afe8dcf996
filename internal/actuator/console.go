package actuator

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Console is a terminal indicator for hosts without a physical horn.
//
// Every interval it writes "!" while the output is on and "-" while it is off.
type Console struct {
	out      io.Writer
	interval time.Duration
	on       atomic.Bool
	closed   atomic.Bool

	writeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewConsole starts a console indicator writing to out.
func NewConsole(out io.Writer, interval time.Duration) *Console {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	c := &Console{
		out:      out,
		interval: interval,
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

func (c *Console) Set(on bool) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.on.Store(on)
	return nil
}

// On reports the current output state.
func (c *Console) On() bool {
	return c.on.Load()
}

func (c *Console) Close() error {
	c.stopOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

func (c *Console) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.write("\n")
			return
		case <-ticker.C:
			if c.on.Load() {
				c.write("!")
			} else {
				c.write("-")
			}
		}
	}
}

func (c *Console) write(s string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	io.WriteString(c.out, s) //nolint:errcheck // indicator output is best effort
}
