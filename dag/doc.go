// Package dag holds the dependency-graph algorithms shared by pipeline
// validation and the run executor: Kahn levelling, topological order, and
// cycle reporting over named nodes.
//
// Node order is the declaration order, and every result is deterministic for
// a given declaration order.
package dag
