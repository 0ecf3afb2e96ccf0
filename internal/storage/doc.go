// Package storage defines the durable store contract shared by every
// process. The store is the single source of truth for session state; all
// session writes go through a versioned compare-and-set so concurrent
// writers in separate processes serialize on the stored version rather than
// on any in-memory lock.
package storage
