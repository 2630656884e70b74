package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"graphogm/internal/config"
	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/logging"
	"graphogm/internal/metadata"
)

// ErrMissingConstraints is returned by NewFactory in validate mode when the
// database lacks a unique constraint declared on an entity
var ErrMissingConstraints = errors.New("missing unique constraints")

// FactoryConfig tunes the sessions a factory opens
type FactoryConfig struct {
	Logger    *slog.Logger
	AutoIndex config.AutoIndex
	// LoadDepth is the depth used by loads without WithDepth
	LoadDepth int
}

// DefaultFactoryConfig leaves the schema alone and loads one hop
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		AutoIndex: config.AutoIndexNone,
		LoadDepth: config.DefaultLoadDepth,
	}
}

// FactoryConfigFrom derives a factory config from the application config
func FactoryConfigFrom(cfg config.MappingConfig, logger *slog.Logger) FactoryConfig {
	return FactoryConfig{
		Logger:    logger,
		AutoIndex: cfg.AutoIndex,
		LoadDepth: cfg.LoadDepth,
	}
}

// Factory holds the driver and entity metadata shared by sessions
type Factory struct {
	driver   driver.Driver
	registry *metadata.Registry
	events   *EventBus
	logger   *slog.Logger
	cfg      FactoryConfig
}

// NewFactory registers entities and, depending on cfg.AutoIndex, creates or
// checks the unique constraints they declare
func NewFactory(ctx context.Context, drv driver.Driver, cfg FactoryConfig, entities ...any) (*Factory, error) {
	registry := metadata.NewRegistry()
	if err := registry.Register(entities...); err != nil {
		return nil, fmt.Errorf("failed to register entities: %w", err)
	}

	f := &Factory{
		driver:   drv,
		registry: registry,
		events:   NewEventBus(),
		logger:   logging.OrDefault(cfg.Logger),
		cfg:      cfg,
	}

	if cfg.AutoIndex.Checks() {
		if err := f.applyConstraints(ctx); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// OpenSession starts a session with an empty mapping context
func (f *Factory) OpenSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		factory:  f,
		registry: f.registry,
		logger:   f.logger.With("session", id),
		mapping:  newMappingContext(),
	}
}

// Events returns the bus sessions publish lifecycle events on
func (f *Factory) Events() *EventBus {
	return f.events
}

// Metadata returns the registered entity classes
func (f *Factory) Metadata() *metadata.Registry {
	return f.registry
}

// Close closes the driver
func (f *Factory) Close(ctx context.Context) error {
	return f.driver.Close(ctx)
}

type constraintKey struct {
	label, property string
}

// applyConstraints compares declared unique properties with the database
func (f *Factory) applyConstraints(ctx context.Context) error {
	resp, err := f.driver.Request(ctx, cypher.ListConstraints{})
	if err != nil {
		return fmt.Errorf("failed to list constraints: %w", err)
	}
	existing := make(map[constraintKey]bool, len(resp.Rows))
	for _, row := range resp.Rows {
		label, _ := row[cypher.ColumnLabel].(string)
		property, _ := row[cypher.ColumnProperty].(string)
		existing[constraintKey{label, property}] = true
	}

	var missing []constraintKey
	for _, class := range f.registry.Classes() {
		for _, field := range class.UniqueProperties() {
			key := constraintKey{class.Label, field.Property}
			if !existing[key] {
				missing = append(missing, key)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if !f.cfg.AutoIndex.Creates() {
		names := make([]string, 0, len(missing))
		for _, k := range missing {
			names = append(names, k.label+"."+k.property)
		}
		sort.Strings(names)
		return fmt.Errorf("%w: %s", ErrMissingConstraints, strings.Join(names, ", "))
	}

	for _, k := range missing {
		if _, err := f.driver.Request(ctx, cypher.CreateUniqueConstraint{Label: k.label, Property: k.property}); err != nil {
			return fmt.Errorf("failed to create constraint on %s.%s: %w", k.label, k.property, err)
		}
		f.logger.Info("created unique constraint", "label", k.label, "property", k.property)
	}
	return nil
}
