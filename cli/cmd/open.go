package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ocean"
	"github.com/pithecene-io/ocean/adapter"
	"github.com/pithecene-io/ocean/adapter/redis"
	"github.com/pithecene-io/ocean/adapter/webhook"
	"github.com/pithecene-io/ocean/cli/config"
)

// loadConfig reads the optional config file named by --config. No file means
// an empty config; flags then provide everything.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// openCore builds an ocean.Core from the config file merged with flags.
// Flags win over config values. The caller owns the returned Core.
func openCore(c *cli.Context) (*ocean.Core, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required (--db or db_path in config)")
	}

	instanceID := c.String("instance-id")
	if instanceID == "" {
		instanceID = cfg.InstanceID
	}

	notifier, err := buildNotifier(cfg.Adapter)
	if err != nil {
		return nil, err
	}

	return ocean.Open(ocean.Options{
		DBPath:               dbPath,
		InstanceID:           instanceID,
		LockMs:               cfg.LockTTL.Milliseconds(),
		EventTTLMs:           cfg.Events.TTL.Milliseconds(),
		EventGCMinIntervalMs: cfg.Events.GCInterval.Milliseconds(),
		Notifier:             notifier,
	})
}

// buildNotifier constructs the configured event mirror, or nil when the
// config has no adapter section.
func buildNotifier(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retriesOrDefault(cfg.Retries, redis.DefaultRetries),
		})
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retriesOrDefault(cfg.Retries, webhook.DefaultRetries),
		})
	default:
		return nil, fmt.Errorf("unsupported adapter type: %q (must be redis or webhook)", cfg.Type)
	}
}

func retriesOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
