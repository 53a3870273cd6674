// Package supervisor implements the Thread Supervisor (C16): it starts and
// monitors the engine's worker goroutines, using golang.org/x/sync/errgroup
// the way the teacher's concurrent arbitrage workers are grouped. On
// shutdown all workers are cancelled together and Run waits for every one
// to exit; there is no ordering among them.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Worker is one named, periodic unit of work. run is invoked with a
// context cancelled at shutdown; it should return promptly on ctx.Done().
type Worker struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Supervisor runs a fixed set of periodic workers. Goroutines that manage
// their own lifecycle (e.g. a WebSocket receive loop) are not started or
// joined by it.
type Supervisor struct {
	workers []Worker
	logger  *slog.Logger
}

// New builds a Supervisor over workers, logging failures via logger.
func New(logger *slog.Logger, workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers, logger: logger}
}

// Run starts every worker on its own ticker and blocks until ctx is
// cancelled, then waits for every worker to exit. A worker tick that
// returns an error is logged and the worker keeps running; it does not
// end Run.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			return s.runPeriodic(gctx, w)
		})
	}

	return g.Wait()
}

func (s *Supervisor) runPeriodic(ctx context.Context, w Worker) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				s.logger.Warn("worker tick failed", slog.String("worker", w.Name), slog.String("error", err.Error()))
			}
		}
	}
}
