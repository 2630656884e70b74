// Package drivers opens the driver named by a configured URI.
package drivers

import (
	"context"
	"fmt"
	"log/slog"

	"graphogm/internal/config"
	"graphogm/internal/driver"
	"graphogm/internal/driver/bolt"
	"graphogm/internal/driver/embedded"
)

// Open picks the Bolt driver for bolt:// and neo4j:// URIs and the embedded
// store for file: and memory: URIs
func Open(ctx context.Context, cfg config.DriverConfig, logger *slog.Logger) (driver.Driver, error) {
	switch {
	case cfg.IsBolt():
		drv, err := bolt.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return drv, nil
	case cfg.Scheme() == "file" || cfg.Scheme() == "memory":
		drv, err := embedded.Open(ctx, cfg.EmbeddedPath(), logger)
		if err != nil {
			return nil, err
		}
		return drv, nil
	default:
		return nil, fmt.Errorf("unsupported driver uri %q", cfg.URI)
	}
}
