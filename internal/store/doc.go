// Package store provides SQLite-backed durable storage for weaving journals
// and violation logs.
//
// The store is an append-only log with two tables:
//   - weavings: one row per weaving session state transition
//   - violations: one row per emitted diagnostic line, grouped by burst
//
// # Ordering
//
// All ordering uses the seq column (insertion order), never timestamps.
// Queries include ORDER BY seq ASC so results are identical across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// *Store implements report.Sink (Emit) and weave.Journal (RecordWeaving).
package store
