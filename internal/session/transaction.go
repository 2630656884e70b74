package session

import (
	"context"
	"fmt"

	"graphogm/internal/driver"
	"graphogm/internal/metadata"
)

// Status is the state of a session transaction
type Status int

const (
	StatusOpen Status = iota
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Transaction is an explicit unit of work spanning several session calls
type Transaction struct {
	session *Session
	tx      driver.Transaction
	status  Status
	// entities that received ids inside the transaction
	created []created
	// entities whose nodes were deleted inside the transaction
	deleted []deleted
	// first request error; the transaction can only be rolled back after it
	failure error
}

// deleted is an entity whose id was cleared by a delete
type deleted struct {
	class  *metadata.ClassInfo
	entity any
	id     int64
}

// BeginTransaction opens a transaction used by every following operation of
// the session until it ends
func (s *Session) BeginTransaction(ctx context.Context) (*Transaction, error) {
	if s.tx != nil && s.tx.status == StatusOpen {
		return nil, ErrTransactionInProgress
	}
	tx, err := s.factory.driver.BeginTransaction(ctx, driver.AccessModeWrite)
	if err != nil {
		return nil, err
	}
	s.tx = &Transaction{session: s, tx: tx, status: StatusOpen}
	s.logger.Debug("transaction begun")
	return s.tx, nil
}

// Transaction returns the open transaction, or nil
func (s *Session) Transaction() *Transaction {
	if s.tx != nil && s.tx.status == StatusOpen {
		return s.tx
	}
	return nil
}

// Status reports whether the transaction is still open
func (t *Transaction) Status() Status {
	return t.status
}

// Commit makes the transaction's writes durable; if a request inside the
// transaction failed, or the commit itself fails, the transaction is rolled
// back and the session forgets what it saw
func (t *Transaction) Commit(ctx context.Context) error {
	if t.status != StatusOpen {
		return driver.ErrTransactionClosed
	}
	if t.failure != nil {
		failure := t.failure
		if err := t.Rollback(ctx); err != nil {
			t.session.logger.Warn("rollback of failed transaction failed", "error", err)
		}
		return fmt.Errorf("%w: %w", ErrTransactionFailed, failure)
	}
	err := t.tx.Commit(ctx)
	t.end()
	if err != nil {
		t.status = StatusRolledBack
		t.discard()
		return err
	}
	t.status = StatusCommitted
	t.session.logger.Debug("transaction committed")
	return nil
}

// fail records the first error seen by a request in the transaction
func (t *Transaction) fail(err error) {
	if t.failure == nil {
		t.failure = err
	}
}

// forget records that entity lost its id to a delete
func (t *Transaction) forget(class *metadata.ClassInfo, entity any, id int64) {
	t.deleted = append(t.deleted, deleted{class: class, entity: entity, id: id})
}

// Close rolls back the transaction if it is still open
func (t *Transaction) Close(ctx context.Context) error {
	if t.status != StatusOpen {
		return nil
	}
	return t.Rollback(ctx)
}

// Rollback discards the transaction's writes and clears the session's
// mapping context
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.status != StatusOpen {
		return driver.ErrTransactionClosed
	}
	err := t.tx.Rollback(ctx)
	t.end()
	t.status = StatusRolledBack
	t.discard()
	if err != nil {
		return err
	}
	t.session.logger.Debug("transaction rolled back")
	return nil
}

// end detaches the transaction from its session
func (t *Transaction) end() {
	if t.session.tx == t {
		t.session.tx = nil
	}
}

// discard forgets state the database no longer has. Deleted entities get
// their ids back first so an entity created and deleted in the same
// transaction ends up new.
func (t *Transaction) discard() {
	for _, d := range t.deleted {
		id := d.id
		d.class.SetID(d.entity, &id)
	}
	t.deleted = nil
	for _, c := range t.created {
		c.class.SetID(c.entity, nil)
	}
	t.created = nil
	t.session.Clear()
}
