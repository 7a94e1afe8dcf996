// Package influxdb records horn node telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Three measurements
// are written:
//   - horn_actuation: one point per handled command (verdict, state, echo outcome)
//   - link_bringup: one point per link bring-up (result, attempts, duration)
//   - node_health: periodic health snapshots
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteActuation("horn-node", true, "actuate", true)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write errors are delivered to the SetOnError
// callback. Writes on a disconnected or nil client are dropped.
package influxdb
