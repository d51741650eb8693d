// Chronofuse Core - Temporal Fusion Engine
//
// This is the main entry point for the Chronofuse Core application.
// Chronofuse fuses time estimates from multiple external sources into a
// single authoritative timeline, indexes observed data streams against it,
// and reconstructs plausible values for the gaps in between.
//
// For the configuration reference, see: configs/config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chronofuse/chronofuse-core/internal/api"
	"github.com/chronofuse/chronofuse-core/internal/engine"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/archive"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/config"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/logging"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Chronofuse Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to the archive (optional)
	var archiveClient *archive.Client
	if cfg.Archive.Enabled {
		archiveClient, err = archive.Connect(cfg.Archive)
		if err != nil {
			return fmt.Errorf("connecting to archive: %w", err)
		}
		defer func() {
			log.Info("closing archive connection")
			if closeErr := archiveClient.Close(); closeErr != nil {
				log.Error("error closing archive", "error", closeErr)
			}
		}()
		log.Info("archive connected",
			"url", cfg.Archive.URL,
			"org", cfg.Archive.Org,
			"bucket", cfg.Archive.Bucket,
		)

		archiveClient.SetOnError(func(err error) {
			log.Error("archive write error", "error", err)
		})
	} else {
		log.Info("archive disabled")
	}

	// Build and start the engine
	eng, err := engine.New(engine.Deps{
		Config:  cfg,
		Logger:  log,
		MQTT:    mqttClient,
		Archive: archiveClient,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		log.Info("stopping engine")
		if stopErr := eng.Stop(); stopErr != nil {
			log.Error("error stopping engine", "error", stopErr)
		}
	}()

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Engine:  eng,
		MQTT:    mqttClient,
		Archive: archiveClient,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, eng, mqttClient, archiveClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Engine
	// 3. Archive (if enabled)
	// 4. MQTT (if enabled)

	log.Info("Chronofuse Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CHRONOFUSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CHRONOFUSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all components are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - eng: Engine to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - archiveClient: Archive client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, eng *engine.Engine, mqttClient *mqtt.Client, archiveClient *archive.Client) error {
	if err := eng.HealthCheck(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if archiveClient != nil {
		if err := archiveClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}

	return nil
}
