package mqtt

import "fmt"

// Topic prefixes for the Chronofuse MQTT namespace.
//
// Ingest topics carry data points from external producers into the
// temporal index. Time topics carry the fused reference time outward.
const (
	// TopicPrefix is the base for all Chronofuse topics.
	TopicPrefix = "chronofuse"

	// TopicPrefixIngest is the base for data point ingestion topics.
	TopicPrefixIngest = "chronofuse/ingest"

	// TopicPrefixTime is the base for fused time topics.
	TopicPrefixTime = "chronofuse/time"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "chronofuse/system"
)

// Topics provides builders for Chronofuse MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.StreamIngest("sensor-temp")
//	// Returns: "chronofuse/ingest/sensor-temp"
type Topics struct{}

// StreamIngest returns the ingestion topic for one stream. Producers
// publish JSON data point batches here.
//
// Example: chronofuse/ingest/sensor-temp
func (Topics) StreamIngest(streamID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixIngest, streamID)
}

// AllStreamIngest returns a pattern matching every stream's ingestion
// topic.
//
// Pattern: chronofuse/ingest/+
func (Topics) AllStreamIngest() string {
	return fmt.Sprintf("%s/+", TopicPrefixIngest)
}

// TimeCurrent returns the topic carrying the latest fused time estimate.
// Published retained so new subscribers immediately see the current value.
//
// Example: chronofuse/time/current
func (Topics) TimeCurrent() string {
	return fmt.Sprintf("%s/current", TopicPrefixTime)
}

// SystemStatus returns the service status topic, used for the online /
// offline lifecycle messages and the Last Will.
//
// Example: chronofuse/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTopics returns a pattern matching the whole Chronofuse namespace.
// Use with caution, this receives ALL traffic.
//
// Pattern: chronofuse/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// StreamFromIngestTopic extracts the stream ID from an ingestion topic.
// Returns an empty string when the topic is not an ingestion topic.
func StreamFromIngestTopic(topic string) string {
	prefix := TopicPrefixIngest + "/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	id := topic[len(prefix):]
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			// Nested levels are not valid stream IDs.
			return ""
		}
	}
	return id
}
