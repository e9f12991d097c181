package dripline

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/petrijr/dripline/internal/taskqueue"
	workerpkg "github.com/petrijr/dripline/pkg/worker"
)

// Runner bundles an Engine, a continuation queue, and a Worker into a single
// helper that runs the funnel inside one process.
//
// Typical usage:
//
//	runner, err := dripline.NewSQLiteRunner(db, opts)
//	_ = runner.StartWorkers(ctx, 2)
//	defer runner.Stop()
//
//	// feed inbound events:
//	_ = runner.Engine.HandleStart(ctx, userID, username, source)
type Runner struct {
	// Engine drives the funnel; inbound events are fed to it directly.
	Engine Engine

	// Worker processes due continuations from the queue using Engine.
	Worker *workerpkg.Worker

	// queue is kept unexported; it is primarily useful for internal
	// inspection and tests. The public API focuses on Engine and Worker.
	queue taskqueue.Queue

	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSQLiteRunner constructs a durable Engine + queue + Worker combo sharing
// the same SQLite database. User records and pending continuations are
// persisted in the provided *sql.DB, so a restart resumes every wait that
// was in flight.
func NewSQLiteRunner(db *sql.DB, opts Options) (*Runner, error) {
	eng, q, err := NewSQLiteEngine(db, opts)
	if err != nil {
		return nil, err
	}
	return newRunner(eng, q, opts.Logger), nil
}

// NewInMemoryRunner constructs a Runner backed by in-memory stores and an
// in-memory queue. It is intentionally not crash-durable; intended for tests
// and local development.
func NewInMemoryRunner(opts Options) (*Runner, error) {
	eng, q, err := NewInMemoryEngine(opts)
	if err != nil {
		return nil, err
	}
	return newRunner(eng, q, opts.Logger), nil
}

func newRunner(eng Engine, q taskqueue.Queue, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Engine: eng,
		Worker: workerpkg.New(eng, q, logger),
		queue:  q,
		logger: logger,
	}
}

// StartWorkers starts 'concurrency' goroutines that continuously process due
// continuations until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *Runner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("dripline: Runner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()
			r.Worker.Run(ctx)
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit. Pending continuations stay in the queue.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Pending returns the approximate number of continuations waiting to fire.
func (r *Runner) Pending() int {
	return r.queue.Len()
}
