package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunInvokesEachWorkerPeriodically(t *testing.T) {
	var ticks int64
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(logger, Worker{
		Name:     "ping",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&ticks, 1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt64(&ticks) < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", ticks)
	}
}

func TestRunLogsWorkerErrorsWithoutAborting(t *testing.T) {
	var ticks int64
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(logger, Worker{
		Name:     "failing",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&ticks, 1)
			return errors.New("transient failure")
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt64(&ticks) < 2 {
		t.Fatalf("expected worker to keep ticking after a failed run, got %d", ticks)
	}
}

func TestRunStopsPromptlyOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(logger, Worker{
		Name:     "slow",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}
