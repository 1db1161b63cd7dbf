// Package h2h defines the foundational types and helpers shared across the
// Hive2Hive core: identity, typed tuples, structured logging, and retry
// policy. Concrete subsystems live in subpackages — process (the
// cancellable/rollback-capable process framework), pipeline (the per-operation
// step graphs), dht (the protected, signed DHT entry contract and its
// storage backends), session, profile, recursion, and facade.
//
// This package is the base that the subpackages build on; it is not a
// general-purpose utility library.
package h2h
