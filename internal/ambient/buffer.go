// Package ambient holds the process-local state behind unprompted speech:
// per-channel message buffers for eavesdrop evaluation and the admission
// gates for ambient and eavesdrop utterances. Nothing here is persisted;
// the buffers are rebuilt empty on restart by design.
package ambient

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// BufferCap bounds the retained messages per channel.
	BufferCap = 15
	// EntryTextLimit truncates buffered message text, in runes.
	EntryTextLimit = 150
)

type channelState struct {
	entries []string // formatted "[HH:MM] author: text", oldest first
	pending int      // messages since the last eavesdrop evaluation
}

// Buffer is a concurrency-safe per-channel bounded FIFO of recent messages.
type Buffer struct {
	mu       sync.Mutex
	channels map[string]*channelState
	now      func() time.Time
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		channels: make(map[string]*channelState),
		now:      time.Now,
	}
}

// Add records a channel message and returns the number of messages buffered
// since the last evaluation. The oldest entry is evicted beyond BufferCap.
func (b *Buffer) Add(channelID, author, text string) int {
	if runes := []rune(text); len(runes) > EntryTextLimit {
		text = string(runes[:EntryTextLimit])
	}
	entry := fmt.Sprintf("[%s] %s: %s", b.now().Format("15:04"), author, text)

	b.mu.Lock()
	defer b.mu.Unlock()

	cs := b.channels[channelID]
	if cs == nil {
		cs = &channelState{}
		b.channels[channelID] = cs
	}
	cs.entries = append(cs.entries, entry)
	if len(cs.entries) > BufferCap {
		cs.entries = cs.entries[len(cs.entries)-BufferCap:]
	}
	cs.pending++
	return cs.pending
}

// Format returns the buffered messages for a channel, oldest first, one per
// line. Empty string when nothing is buffered.
func (b *Buffer) Format(channelID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs := b.channels[channelID]
	if cs == nil || len(cs.entries) == 0 {
		return ""
	}
	return strings.Join(cs.entries, "\n")
}

// Clear drops a channel's entries and resets its pending counter. Called
// after every eavesdrop evaluation whether or not the agent spoke.
func (b *Buffer) Clear(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, channelID)
}

// ResetCounter zeroes the pending counter without dropping entries, used
// when an evaluation is skipped by the probability gate so the next batch
// triggers a fresh check.
func (b *Buffer) ResetCounter(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cs := b.channels[channelID]; cs != nil {
		cs.pending = 0
	}
}
