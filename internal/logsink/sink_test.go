package logsink

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandleWritesTaggedJSONLine(t *testing.T) {
	var buf bytes.Buffer
	h := New(&buf, slog.LevelInfo, 16)
	defer h.Close()

	logger := slog.New(h)
	ctx := WithTag(context.Background(), "mkt")
	logger.InfoContext(ctx, "tick processed", slog.Int("n", 3))

	deadline := time.Now().Add(time.Second)
	for buf.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	out := buf.String()
	if !strings.Contains(out, "tick processed") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "mkt   ") {
		t.Fatalf("expected padded tag in output, got %q", out)
	}
}

func TestPadTagTruncatesLongTags(t *testing.T) {
	if got := padTag("abcdefgh"); got != "abcdef" {
		t.Fatalf("expected truncation to 6 chars, got %q", got)
	}
}

func TestEnabledRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := New(&buf, slog.LevelWarn, 4)
	defer h.Close()
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info disabled under warn threshold")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected error enabled under warn threshold")
	}
}
