package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementActuation = "horn_actuation"
	measurementLink      = "link_bringup"
	measurementHealth    = "node_health"
)

// WriteActuation records one handled command.
func (c *Client) WriteActuation(nodeID string, on bool, verdict string, published bool) {
	c.writePoint(actuationPoint(nodeID, on, verdict, published, time.Now()))
}

// WriteLinkResult records the outcome of a link bring-up.
func (c *Client) WriteLinkResult(nodeID, result string, attempts, retries int, elapsed time.Duration) {
	c.writePoint(linkPoint(nodeID, result, attempts, retries, elapsed, time.Now()))
}

// WriteHealth records a node health snapshot.
func (c *Client) WriteHealth(nodeID string, fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	c.writePoint(healthPoint(nodeID, fields, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if c == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func actuationPoint(nodeID string, on bool, verdict string, published bool, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementActuation,
		map[string]string{
			"node_id": nodeID,
			"verdict": verdict,
		},
		map[string]any{
			"on":        on,
			"published": published,
		},
		ts,
	)
}

func linkPoint(nodeID, result string, attempts, retries int, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementLink,
		map[string]string{
			"node_id": nodeID,
			"result":  result,
		},
		map[string]any{
			"attempts":   attempts,
			"retries":    retries,
			"elapsed_ms": elapsed.Milliseconds(),
		},
		ts,
	)
}

func healthPoint(nodeID string, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementHealth,
		map[string]string{"node_id": nodeID},
		fields,
		ts,
	)
}
