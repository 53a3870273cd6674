// Package logsink implements the Async Log Sink (C17): a slog.Handler
// backed by a single-producer-per-goroutine MPSC queue and one writer
// goroutine, so that every caller's log call is a non-blocking channel
// send rather than a synchronous file write. Extends the teacher's direct
// slog.NewJSONHandler usage (cmd/polybot/main.go) with the buffering layer
// the spec requires.
package logsink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

type tagKey struct{}

// WithTag attaches a 6-character worker tag to ctx; Handle reads it back
// and includes it in every record emitted through that context.
func WithTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, tagKey{}, padTag(tag))
}

func padTag(tag string) string {
	if len(tag) >= 6 {
		return tag[:6]
	}
	return tag + "      "[:6-len(tag)]
}

func tagFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tagKey{}).(string); ok {
		return v
	}
	return "------"
}

type entry struct {
	Time    time.Time       `json:"time"`
	Level   string          `json:"level"`
	Tag     string          `json:"tag"`
	Message string          `json:"msg"`
	Attrs   []slog.Attr     `json:"-"`
}

// Handler is a slog.Handler that never blocks the calling goroutine:
// Handle enqueues and returns; a background goroutine drains the queue
// and writes to w.
type Handler struct {
	w       io.Writer
	level   slog.Leveler
	queue   chan entry
	done    chan struct{}
	closeOnce sync.Once
}

// New starts the writer goroutine and returns a ready Handler. queueSize
// bounds memory under a log storm: when the queue is full, Handle discards
// the oldest queued record to make room instead of blocking the caller.
func New(w io.Writer, level slog.Leveler, queueSize int) *Handler {
	if queueSize <= 0 {
		queueSize = 4096
	}
	h := &Handler{
		w:     w,
		level: level,
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
	go h.writeLoop()
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	e := entry{Time: r.Time, Level: r.Level.String(), Tag: tagFromContext(ctx), Message: r.Message}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs = append(e.Attrs, a)
		return true
	})
	defer func() { recover() }() // never panic into the caller if the queue is closed mid-send
	for {
		select {
		case h.queue <- e:
			return nil
		case <-h.done:
			return nil
		default:
		}
		select {
		case <-h.queue:
		default:
		}
	}
}

// WithAttrs and WithGroup are not supported by this leaf handler; both
// return the receiver unchanged since the engine logs flat attrs per call.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *Handler) WithGroup(name string) slog.Handler       { return h }

func (h *Handler) writeLoop() {
	for e := range h.queue {
		h.writeOne(e)
	}
}

func (h *Handler) writeOne(e entry) {
	fields := map[string]any{
		"time":  e.Time.Format(time.RFC3339Nano),
		"level": e.Level,
		"tag":   e.Tag,
		"msg":   e.Message,
	}
	for _, a := range e.Attrs {
		fields[a.Key] = a.Value.Any()
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = h.w.Write(data)
}

// Close stops accepting new records and closes the queue. The writer
// goroutine still writes the records already queued, but Close returns
// without waiting for it to finish.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		close(h.queue)
	})
}

var _ slog.Handler = (*Handler)(nil)
