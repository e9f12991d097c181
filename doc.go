// Package dripline provides an embeddable drip-funnel engine for Go.
//
// Dripline drives a scripted, multi-stage outreach conversation with each
// user of a messaging bot: a trigger event sends content immediately, and
// after fixed delays further content is sent, conditioned on accumulated
// per-user state (current stage, a subscription flag, quiz answers). It runs
// fully in Go, persists everything in SQLite, and integrates cleanly into an
// existing bot process.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. FunnelDefinition
//  2. Engine
//  3. Continuation queue
//  4. Worker
//  5. Runner
//
// # FunnelDefinition
//
// A FunnelDefinition declares the funnel as data: a closed set of stages, an
// explicit transition table (each edge annotated with a delay, an awaited
// user action, or a subscription branch), the per-stage content payloads,
// and the embedded quiz. Definitions are validated to form a forward-only
// graph; a user's stage never regresses.
//
// # Engine
//
// The Engine is the single authority over per-user state. It handles the
// initial command and button presses, persists stage transitions with a
// compare-and-swap on the current stage, dispatches content through an
// injected transport, and schedules delayed continuations. Mutations to one
// user's record are serialized: when two continuations race, exactly one
// transition wins and the loser is dropped.
//
// # Continuation queue
//
// A continuation is a suspended transition with a due timestamp. The SQLite
// queue persists continuations in the same database as the user records, so
// a process restart resumes every pending wait instead of losing it. An
// in-memory queue exists for tests.
//
// # Worker
//
// A Worker drains due continuations and applies them through the Engine.
// Several workers can share one queue. There is no automatic retry: a failed
// send is best-effort, a stale continuation is discarded.
//
// # Runner
//
// Runner bundles an engine, a queue, and worker goroutines into a single
// helper, with SQLite-backed and in-memory variants:
//
//	db, _ := sql.Open("sqlite", "file:funnel.db")
//	runner, err := dripline.NewSQLiteRunner(db, dripline.Options{
//		Definition: content.Default(cfg),
//		Dispatcher: transport,
//		Membership: transport,
//	})
//	_ = runner.StartWorkers(ctx, 2)
//	defer runner.Stop()
//
// Inbound events are then fed to runner.Engine from the transport's update
// loop; everything after that is driven by the transition table.
package dripline
