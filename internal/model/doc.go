// Package model defines the driver-neutral graph values exchanged between
// the session and the drivers.
//
// Every driver, whatever its transport, answers a statement with a
// Response: tabular rows whose values may be scalars, Node, Relationship,
// Path or lists and maps of those, plus query statistics and any
// notifications the database raised while planning or running it.
//
// # Graph Collection
//
// Graph gathers the distinct nodes and relationships found anywhere in a
// set of row values. The session uses it to turn load results into
// entities without caring how a given driver shaped its rows.
//
// # Notifications
//
// Notification mirrors the diagnostic metadata a server may attach to a
// result. Every field other than the code is optional; in particular the
// input position is nil whenever the server did not report one.
package model
