// Package mqtt provides MQTT client connectivity for Chronofuse Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Chronofuse uses MQTT as its ingestion bus: external producers publish
// data point batches to chronofuse/ingest/{stream}, and the engine mirrors
// its fused time estimate to chronofuse/time/current as a retained message
// so late joiners see the current value immediately.
//
//	Producers -> MQTT Broker -> Chronofuse Core -> chronofuse/time/current
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all stream ingestion topics
//	err = client.Subscribe(mqtt.Topics{}.AllStreamIngest(), 1,
//	    func(topic string, payload []byte) error {
//	        return ingest(mqtt.StreamFromIngestTopic(topic), payload)
//	    })
//
//	// Publish the fused time, retained
//	client.PublishRetained(mqtt.Topics{}.TimeCurrent(), payload)
package mqtt
