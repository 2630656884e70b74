// Package bolt talks to a Neo4j server through the official Go driver.
package bolt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"graphogm/internal/config"
	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/logging"
	"graphogm/internal/model"
)

// session is the part of neo4j.SessionWithContext the driver uses
type session interface {
	Run(ctx context.Context, cypher string, params map[string]any, configurers ...func(*neo4j.TransactionConfig)) (neo4j.ResultWithContext, error)
	BeginTransaction(ctx context.Context, configurers ...func(*neo4j.TransactionConfig)) (neo4j.ExplicitTransaction, error)
	Close(ctx context.Context) error
}

// sessionFactory opens a session in the given mode
type sessionFactory func(ctx context.Context, mode driver.AccessMode) session

// Driver implements driver.Driver over Bolt
type Driver struct {
	newSession sessionFactory
	close      func(ctx context.Context) error
	logger     *slog.Logger
	closed     atomic.Bool
}

// Open connects to the server named by cfg.URI, retrying with exponential
// backoff until connectivity is verified or cfg.ConnectRetries is spent
func Open(ctx context.Context, cfg config.DriverConfig, logger *slog.Logger) (*Driver, error) {
	logger = logging.OrDefault(logger).With("driver", "bolt")

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driverConfig := func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout.Duration()
			c.SocketConnectTimeout = cfg.ConnectionTimeout.Duration()
		}
		if cfg.MaxTransactionRetryTime > 0 {
			c.MaxTransactionRetryTime = cfg.MaxTransactionRetryTime.Duration()
		}
	}

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	maxDelay := cfg.ConnectionTimeout.Duration()
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		neoDriver, err := neo4j.NewDriverWithContext(cfg.URI, auth, driverConfig)
		if err != nil {
			// A malformed URI or configuration will not get better
			return nil, fmt.Errorf("failed to create driver: %w", err)
		}
		err = neoDriver.VerifyConnectivity(ctx)
		if err == nil {
			logger.Info("connected", "uri", cfg.URI, "attempts", attempt+1)
			return newDriver(neoDriver, cfg.Database, logger), nil
		}
		neoDriver.Close(ctx)
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("connection attempt cancelled: %w", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("connectivity check failed", "attempt", attempt+1, "retry_in", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("connection attempt cancelled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", retries, lastErr)
}

func newDriver(neoDriver neo4j.DriverWithContext, database string, logger *slog.Logger) *Driver {
	return &Driver{
		newSession: func(ctx context.Context, mode driver.AccessMode) session {
			accessMode := neo4j.AccessModeWrite
			if mode == driver.AccessModeRead {
				accessMode = neo4j.AccessModeRead
			}
			return neoDriver.NewSession(ctx, neo4j.SessionConfig{
				AccessMode:   accessMode,
				DatabaseName: database,
			})
		},
		close:  neoDriver.Close,
		logger: logger,
	}
}

// Request runs stmt in an autocommit transaction
func (d *Driver) Request(ctx context.Context, stmt cypher.Statement) (*model.Response, error) {
	if d.closed.Load() {
		return nil, driver.ErrDriverClosed
	}

	s := d.newSession(ctx, driver.AccessModeWrite)
	defer s.Close(ctx)

	result, err := s.Run(ctx, stmt.Cypher(), stmt.Parameters())
	if err != nil {
		return nil, convertError(err)
	}
	return collect(ctx, result)
}

// BeginTransaction opens an explicit transaction on its own session
func (d *Driver) BeginTransaction(ctx context.Context, mode driver.AccessMode) (driver.Transaction, error) {
	if d.closed.Load() {
		return nil, driver.ErrDriverClosed
	}

	s := d.newSession(ctx, mode)
	tx, err := s.BeginTransaction(ctx)
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", convertError(err))
	}

	id := uuid.NewString()
	d.logger.Debug("transaction started", "tx", id, "mode", mode)
	return &Transaction{session: s, tx: tx, id: id, logger: d.logger}, nil
}

// Close releases the connection pool
func (d *Driver) Close(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if d.close == nil {
		return nil
	}
	return d.close(ctx)
}

// Transaction implements driver.Transaction over an explicit Bolt transaction
type Transaction struct {
	session session
	tx      neo4j.ExplicitTransaction
	id      string
	logger  *slog.Logger

	mu   sync.Mutex
	done bool
}

// Request runs stmt inside the transaction
func (t *Transaction) Request(ctx context.Context, stmt cypher.Statement) (*model.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, driver.ErrTransactionClosed
	}

	result, err := t.tx.Run(ctx, stmt.Cypher(), stmt.Parameters())
	if err != nil {
		return nil, convertError(err)
	}
	return collect(ctx, result)
}

// Commit commits and releases the session
func (t *Transaction) Commit(ctx context.Context) error {
	return t.finish(ctx, "committed", t.tx.Commit)
}

// Rollback rolls back and releases the session
func (t *Transaction) Rollback(ctx context.Context) error {
	return t.finish(ctx, "rolled back", t.tx.Rollback)
}

func (t *Transaction) finish(ctx context.Context, outcome string, end func(context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return driver.ErrTransactionClosed
	}
	t.done = true
	defer t.session.Close(ctx)

	if err := end(ctx); err != nil {
		return fmt.Errorf("transaction %s failed: %w", t.id, convertError(err))
	}
	t.logger.Debug("transaction "+outcome, "tx", t.id)
	return nil
}
