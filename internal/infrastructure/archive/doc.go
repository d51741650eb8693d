// Package archive mirrors Chronofuse data to InfluxDB for long-term
// storage.
//
// The archive is strictly one-way: observed stream points and fused time
// estimates are written out for dashboards and offline analysis, and
// nothing is ever read back. The in-memory temporal index remains the
// authoritative store; losing the archive loses history, not correctness.
//
// Writes are non-blocking and batched by the InfluxDB client. Async write
// failures surface through the SetOnError callback.
//
// # Usage
//
//	client, err := archive.Connect(cfg.Archive)
//	if errors.Is(err, archive.ErrDisabled) {
//	    // run without an archive
//	}
//	defer client.Close()
//
//	client.WriteStreamPoint("sensor-temp", "observed", 1.0,
//	    map[string]interface{}{"value": 21.5}, ts)
package archive
