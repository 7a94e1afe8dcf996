package horn

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/horn-node/internal/link"
	"github.com/nerrad567/horn-node/internal/session"
)

// HealthStatus summarises node health.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
)

// LinkStatus reports bring-up state. Satisfied by *link.Manager.
type LinkStatus interface {
	State() link.ConnectionState
	Retries() int
	Address() string
}

// HealthSink stores health snapshots. Optional.
type HealthSink interface {
	WriteHealth(nodeID string, fields map[string]any)
}

// Health is a point-in-time view of the node.
type Health struct {
	NodeID        string       `json:"node_id"`
	Version       string       `json:"version"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Link fields describe the bring-up outcome. The link is not watched
	// after bring-up completes.
	LinkBringupState string `json:"link_bringup_state"`
	LinkRetries      int    `json:"link_retries"`
	LinkAddress      string `json:"link_address,omitempty"`

	BusConnected bool      `json:"bus_connected"`
	ActuatorOn   bool      `json:"actuator_on"`
	Stats        Stats     `json:"stats"`
	Timestamp    time.Time `json:"timestamp"`
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	NodeID  string
	Version string

	// Interval between snapshots. Default: 30 seconds.
	Interval time.Duration

	Bridge *Bridge
	Link   LinkStatus
	Sink   HealthSink

	// Bus is checked for transport health when set.
	Bus session.HealthChecker
}

// HealthReporter periodically snapshots node health to a sink and the log.
type HealthReporter struct {
	nodeID    string
	version   string
	startTime time.Time
	interval  time.Duration
	bridge    *Bridge
	link      LinkStatus
	bus       session.HealthChecker
	sink      HealthSink

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthReporter{
		nodeID:    cfg.NodeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		bridge:    cfg.Bridge,
		link:      cfg.Link,
		bus:       cfg.Bus,
		sink:      cfg.Sink,
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Start begins periodic reporting until ctx is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting. Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
	})
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.report(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.report(ctx)
		}
	}
}

func (h *HealthReporter) report(ctx context.Context) {
	snap := h.Snapshot(ctx)

	if h.sink != nil {
		h.sink.WriteHealth(h.nodeID, map[string]any{
			"healthy":          snap.Status == HealthHealthy,
			"uptime_seconds":   snap.UptimeSeconds,
			"link_retries":     snap.LinkRetries,
			"bus_connected":    snap.BusConnected,
			"actuator_on":      snap.ActuatorOn,
			"received":         int64(snap.Stats.Received),
			"actuations":       int64(snap.Stats.Actuations),
			"malformed":        int64(snap.Stats.Malformed),
			"publish_failures": int64(snap.Stats.PublishFailures),
		})
	}

	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug("node health",
			"status", snap.Status,
			"reason", snap.Reason,
			"link_bringup_state", snap.LinkBringupState,
			"bus_connected", snap.BusConnected,
			"actuator_on", snap.ActuatorOn)
	}
}

// Snapshot evaluates node health now.
func (h *HealthReporter) Snapshot(ctx context.Context) Health {
	snap := Health{
		NodeID:        h.nodeID,
		Version:       h.version,
		Status:        HealthHealthy,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC(),
	}

	if h.link != nil {
		snap.LinkBringupState = h.link.State().String()
		snap.LinkRetries = h.link.Retries()
		snap.LinkAddress = h.link.Address()
	}

	snap.BusConnected = true
	if h.bus != nil {
		if err := h.bus.HealthCheck(ctx); err != nil {
			snap.BusConnected = false
		}
	}

	if h.bridge != nil {
		snap.ActuatorOn = h.bridge.State()
		snap.Stats = h.bridge.Stats()
	}

	switch {
	case h.link != nil && h.link.State() != link.StateConnected:
		snap.Status, snap.Reason = HealthDegraded, "link "+snap.LinkBringupState
	case !snap.BusConnected:
		snap.Status, snap.Reason = HealthDegraded, "bus disconnected"
	}
	return snap
}
