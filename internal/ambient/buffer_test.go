package ambient

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestBuffer() *Buffer {
	b := NewBuffer()
	b.now = func() time.Time {
		return time.Date(2025, 6, 1, 21, 15, 0, 0, time.UTC)
	}
	return b
}

func TestBufferAddAndFormat(t *testing.T) {
	b := newTestBuffer()

	if got := b.Format("c1"); got != "" {
		t.Errorf("empty channel: got %q", got)
	}

	b.Add("c1", "kestrel", "hello there")
	b.Add("c1", "wren", "second line")

	out := b.Format("c1")
	if !strings.Contains(out, "[21:15] kestrel: hello there") {
		t.Errorf("missing first entry: %q", out)
	}
	if lines := strings.Split(out, "\n"); len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}

func TestBufferEviction(t *testing.T) {
	b := newTestBuffer()
	for i := 0; i < BufferCap+5; i++ {
		b.Add("c1", "u", strings.Repeat("x", i+1))
	}

	out := b.Format("c1")
	lines := strings.Split(out, "\n")
	if len(lines) != BufferCap {
		t.Fatalf("got %d entries, want cap %d", len(lines), BufferCap)
	}
	// Oldest entries evicted first: the shortest surviving text has 6 x's.
	if strings.Contains(out, "u: xxxxx\n") {
		t.Errorf("oldest entry not evicted:\n%s", out)
	}
}

func TestBufferTruncation(t *testing.T) {
	b := newTestBuffer()
	b.Add("c1", "u", strings.Repeat("y", 400))
	out := b.Format("c1")
	if want := strings.Repeat("y", EntryTextLimit); !strings.HasSuffix(out, want) {
		t.Errorf("text not truncated to %d", EntryTextLimit)
	}
	if strings.Contains(out, strings.Repeat("y", EntryTextLimit+1)) {
		t.Errorf("text over limit retained")
	}
}

func TestBufferTruncationMultibyte(t *testing.T) {
	b := newTestBuffer()
	b.Add("c1", "u", strings.Repeat("я", EntryTextLimit+40))
	out := b.Format("c1")
	if !utf8.ValidString(out) {
		t.Fatalf("truncation produced invalid UTF-8: %q", out)
	}
	if want := strings.Repeat("я", EntryTextLimit); !strings.HasSuffix(out, want) {
		t.Errorf("text not truncated to %d runes", EntryTextLimit)
	}
}

func TestBufferCounterAndClear(t *testing.T) {
	b := newTestBuffer()
	if n := b.Add("c1", "u", "one"); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
	if n := b.Add("c1", "u", "two"); n != 2 {
		t.Errorf("pending = %d, want 2", n)
	}

	b.ResetCounter("c1")
	if n := b.Add("c1", "u", "three"); n != 1 {
		t.Errorf("pending after reset = %d, want 1", n)
	}
	if b.Format("c1") == "" {
		t.Error("ResetCounter should not drop entries")
	}

	b.Clear("c1")
	if b.Format("c1") != "" {
		t.Error("Clear should drop entries")
	}
	if n := b.Add("c1", "u", "four"); n != 1 {
		t.Errorf("pending after clear = %d, want 1", n)
	}
}

func TestBufferChannelsIndependent(t *testing.T) {
	b := newTestBuffer()
	b.Add("c1", "u", "one")
	if n := b.Add("c2", "u", "other"); n != 1 {
		t.Errorf("c2 pending = %d, want 1", n)
	}
	b.Clear("c1")
	if b.Format("c2") == "" {
		t.Error("clearing c1 should not affect c2")
	}
}
