package ws

import (
	"strings"
	"sync"
)

// history keeps the last size messages of every tracked channel.
type history struct {
	mu       sync.RWMutex
	size     int
	prefixes []string
	buf      map[string][][]byte
}

func newHistory(size int, prefixes []string) *history {
	if size < 0 {
		size = 0
	}
	return &history{
		size:     size,
		prefixes: prefixes,
		buf:      make(map[string][][]byte),
	}
}

func (h *history) tracks(channel string) bool {
	if h.size == 0 {
		return false
	}
	for _, p := range h.prefixes {
		if strings.HasPrefix(channel, p) {
			return true
		}
	}
	return false
}

func (h *history) add(channel string, msg []byte) {
	if !h.tracks(channel) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.buf[channel], msg)
	if len(entries) > h.size {
		entries = entries[len(entries)-h.size:]
	}
	h.buf[channel] = entries
}

func (h *history) snapshot(channel string) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.buf[channel]
	if len(entries) == 0 {
		return nil
	}
	out := make([][]byte, len(entries))
	copy(out, entries)
	return out
}

func (h *history) clear(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.buf, channel)
}
