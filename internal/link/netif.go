package link

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Supervisor starts and stops a supplicant daemon. *process.Supervisor satisfies it.
type Supervisor interface {
	Start(ctx context.Context) error
	Stop() error
}

// NetifOptions configures a NetifStation.
type NetifOptions struct {
	Interface string

	// AttemptTimeout bounds one connect request.
	AttemptTimeout time.Duration
	// PollInterval is how often the interface is checked during an attempt.
	PollInterval time.Duration

	// Supplicant, if set, is started by Start after the config file is written.
	Supplicant           Supervisor
	SupplicantConfigPath string
	SSID                 string
	Password             string

	// Lookup returns the first usable IPv4 address of an interface.
	// Defaults to InterfaceIPv4.
	Lookup func(name string) (string, error)

	Logger Logger
}

// NetifStation brings up a host network interface.
type NetifStation struct {
	eventHub

	opts   NetifOptions
	logger Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewNetifStation creates a station for opts.Interface.
func NewNetifStation(opts NetifOptions) *NetifStation {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Lookup == nil {
		opts.Lookup = InterfaceIPv4
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &NetifStation{opts: opts, logger: logger}
}

// Start writes the supplicant config and starts the supplicant, if configured.
func (s *NetifStation) Start(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStationClosed
	}

	if s.opts.Supplicant != nil {
		if s.opts.SupplicantConfigPath != "" {
			if err := WriteSupplicantConfig(s.opts.SupplicantConfigPath, s.opts.SSID, s.opts.Password); err != nil {
				return err
			}
		}
		// The supplicant outlives the bring-up wait; Close stops it.
		if err := s.opts.Supplicant.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("starting supplicant: %w", err)
		}
	}

	s.emit(Event{Kind: EventStationStart})
	return nil
}

// Connect waits in the background for the interface to gain an address.
func (s *NetifStation) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStationClosed
	}

	s.wg.Add(1)
	go s.await(ctx)
	return nil
}

func (s *NetifStation) await(ctx context.Context) {
	defer s.wg.Done()

	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		addr, err := s.opts.Lookup(s.opts.Interface)
		if err == nil {
			s.emit(GotAddress(addr))
			return
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return
		case <-attemptCtx.Done():
			s.logger.Debug("no address within attempt window", "interface", s.opts.Interface, "error", lastErr)
			s.emit(Disconnect(lastErr.Error()))
			return
		case <-ticker.C:
		}
	}
}

// Close stops the supplicant and waits for pending attempts.
func (s *NetifStation) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	if s.opts.Supplicant != nil {
		return s.opts.Supplicant.Stop()
	}
	return nil
}

// InterfaceIPv4 returns the first non-loopback IPv4 address on the named interface.
func InterfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", fmt.Errorf("looking up interface %s: %w", name, err)
	}
	if iface.Flags&net.FlagUp == 0 {
		return "", fmt.Errorf("%w: %s is down", ErrNoAddress, name)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return "", fmt.Errorf("listing addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoAddress, name)
}

// WPA limits: SSIDs are 1..32 bytes, passphrases 8..63 printable ASCII characters.
const (
	maxSSIDLen       = 32
	minPassphraseLen = 8
	maxPassphraseLen = 63
)

// ValidPassphrase reports whether p is a WPA passphrase.
func ValidPassphrase(p string) bool {
	if len(p) < minPassphraseLen || len(p) > maxPassphraseLen {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] > 0x7e {
			return false
		}
	}
	return true
}

// WriteSupplicantConfig writes a minimal wpa_supplicant network block with mode 0600.
// An empty password configures an open network.
//
// The SSID is written hex-encoded so any byte survives. wpa_supplicant reads a
// quoted psk literally up to the last quote, so the passphrase is not escaped.
func WriteSupplicantConfig(path, ssid, password string) error {
	if ssid == "" || len(ssid) > maxSSIDLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSSID, len(ssid))
	}
	if password != "" && !ValidPassphrase(password) {
		return ErrInvalidPassphrase
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating supplicant config dir: %w", err)
	}

	var b strings.Builder
	b.WriteString("ctrl_interface=/run/wpa_supplicant\n")
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=%s\n", hex.EncodeToString([]byte(ssid)))
	if password == "" {
		b.WriteString("\tkey_mgmt=NONE\n")
	} else {
		b.WriteString("\tpsk=\"" + password + "\"\n")
	}
	b.WriteString("}\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing supplicant config: %w", err)
	}
	return nil
}
