// Package driver defines the transport the mapper talks to.
//
// A Driver executes cypher.Statement values and answers with a
// model.Response, either in autocommit mode through Request or inside an
// explicit Transaction. Two implementations exist: bolt, for a remote
// server, and embedded, an SQLite backed graph store for tests and local
// use.
package driver

import (
	"context"

	"graphogm/internal/cypher"
	"graphogm/internal/model"
)

// AccessMode hints whether a transaction writes
type AccessMode int

const (
	AccessModeWrite AccessMode = iota
	AccessModeRead
)

func (m AccessMode) String() string {
	if m == AccessModeRead {
		return "read"
	}
	return "write"
}

// Runner executes a statement
type Runner interface {
	Request(ctx context.Context, stmt cypher.Statement) (*model.Response, error)
}

// Transaction is an explicit unit of work
type Transaction interface {
	Runner
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Driver runs autocommit statements and opens transactions
type Driver interface {
	Runner
	BeginTransaction(ctx context.Context, mode AccessMode) (Transaction, error)
	Close(ctx context.Context) error
}
