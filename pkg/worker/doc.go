// Package worker provides the background worker that drives dripline funnels
// forward.
//
// Workers consume due continuations from a continuation queue and apply them
// through the funnel engine. They are lightweight, safe to run several at a
// time against one queue, and decoupled from any particular queue backend:
// the SQLite queue gives durable continuations that survive a restart, the
// in-memory queue suits tests.
//
// # Worker Responsibilities
//
// A worker is responsible for:
//
//   - Polling the continuation queue for due work
//   - Invoking Engine.Advance for each fired continuation
//   - Dropping continuations whose expected stage is no longer current
//   - Surfacing store failures to its run loop for logging
//
// A worker never retries a failed or stale continuation. A stale one is the
// normal outcome of two paths racing for the same user: the store's
// compare-and-swap picks one winner and the loser is discarded here.
//
// Most applications construct workers via the Runner in the root dripline
// package, which wires the engine, queue, and workers together.
package worker
