// Package cypher describes the statements the mapper sends to a driver.
//
// Each statement is a small value type that knows how to render itself as
// Cypher text plus parameters, which is all the Bolt driver needs. The
// embedded driver instead switches on the concrete statement type and
// executes it natively, so statements carry their structured form too.
//
// # Query Refinement
//
// Filter, SortOrder and Pagination narrow and order the nodes a NodeQuery
// or CountQuery matches. Filters join left to right; the boolean operator
// of the first filter is ignored.
//
// # Depth
//
// A NodeQuery hydrates paths around each matched node: depth 0 returns the
// node alone, depth n follows up to n relationships in either direction and
// depth -1 follows every relationship reachable.
package cypher
