// Package session maps Go structs onto graph nodes and relationships.
//
// A Factory is built once per driver with the entity types it should know
// about. Sessions opened from it are cheap, short lived units of work that
// are not safe for concurrent use.
//
// # Loading
//
// LoadAll and Load run a node query refined by filters, sort order,
// pagination and depth. Depth counts the relationship hops hydrated around
// each loaded entity: entities found at the depth limit keep whatever their
// relationship fields already held, which is nil for fresh instances.
//
// # Identity
//
// Every session keeps a mapping context: one instance per node id,
// property snapshots for dirty checking and the relationship targets each
// hydrated field held when it was read. Loading a node again refreshes the
// existing instance instead of allocating a new one.
//
// # Saving
//
// Save walks the object graph from the given entity, creating new nodes,
// updating dirty ones and reconciling relationships against the mapping
// context. Without an open transaction the work runs in an implicit one;
// on failure entities created during the call are marked new again.
//
// # Transactions
//
// BeginTransaction opens an explicit transaction shared by every operation
// of the session until Commit, Rollback or Close. Close rolls back a
// transaction that is still open. A rollback clears the mapping context;
// entities created in the transaction become new again and deleted ones
// get their ids back. Once a request inside the transaction fails,
// later requests return ErrTransactionFailed and Commit rolls back.
//
// # Events
//
// The factory's EventBus receives pre_save, post_save, pre_delete and
// post_delete events from every session.
package session
