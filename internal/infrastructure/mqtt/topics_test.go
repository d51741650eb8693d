package mqtt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chronofuse/chronofuse-core/internal/infrastructure/config"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "stream ingest", got: topics.StreamIngest("sensor-temp"), want: "chronofuse/ingest/sensor-temp"},
		{name: "all stream ingest", got: topics.AllStreamIngest(), want: "chronofuse/ingest/+"},
		{name: "time current", got: topics.TimeCurrent(), want: "chronofuse/time/current"},
		{name: "system status", got: topics.SystemStatus(), want: "chronofuse/system/status"},
		{name: "all topics", got: topics.AllTopics(), want: "chronofuse/#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}

func TestStreamFromIngestTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{topic: "chronofuse/ingest/sensor-temp", want: "sensor-temp"},
		{topic: "chronofuse/ingest/", want: ""},
		{topic: "chronofuse/ingest/a/b", want: ""},
		{topic: "chronofuse/time/current", want: ""},
		{topic: "", want: ""},
	}
	for _, tt := range tests {
		if got := StreamFromIngestTopic(tt.topic); got != tt.want {
			t.Errorf("StreamFromIngestTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			TLS:      true,
			ClientID: "chronofuse-core",
		},
		Auth: config.MQTTAuthConfig{
			Username: "chronofuse",
			Password: "secret",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("expected ssl://broker.local:8883, got %s", got)
	}
	if opts.ClientID != "chronofuse-core" {
		t.Errorf("expected client ID chronofuse-core, got %s", opts.ClientID)
	}
	if opts.Username != "chronofuse" {
		t.Errorf("expected username chronofuse, got %s", opts.Username)
	}
	if opts.TLSConfig == nil {
		t.Error("expected TLS config for TLS broker")
	}
}

func TestBuildClientOptionsPlainTCP(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "test"},
	}

	opts := buildClientOptions(cfg)
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("expected tcp://localhost:1883, got %s", got)
	}
	if opts.Username != "" {
		t.Errorf("expected no credentials, got username %s", opts.Username)
	}
}

func TestStatusPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"online":  buildOnlinePayload("chronofuse-core"),
		"offline": buildOfflinePayload("chronofuse-core"),
	} {
		t.Run(name, func(t *testing.T) {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if decoded["status"] != name {
				t.Errorf("expected status %q, got %v", name, decoded["status"])
			}
			if decoded["client_id"] != "chronofuse-core" {
				t.Errorf("expected client_id chronofuse-core, got %v", decoded["client_id"])
			}
			if ts, _ := decoded["timestamp"].(string); !strings.Contains(ts, "T") {
				t.Errorf("expected RFC3339 timestamp, got %v", decoded["timestamp"])
			}
		})
	}
}
