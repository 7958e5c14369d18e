package control

import (
	"time"
)

// History is the append-only log of commands that reached a terminal state,
// in the order they terminated. Eviction is the only removal.
// It is not safe for concurrent use; the Service guards it.
type History struct {
	entries []*Command
	index   map[string]*Command
}

func newHistory() *History {
	return &History{index: make(map[string]*Command)}
}

func (h *History) Append(cmd *Command) {
	h.entries = append(h.entries, cmd)
	h.index[cmd.ID] = cmd
}

func (h *History) Get(id string) (*Command, bool) {
	cmd, ok := h.index[id]
	return cmd, ok
}

// Evict removes every entry that finished at or before cutoff and returns
// the removed entries in their original order.
func (h *History) Evict(cutoff time.Time) []*Command {
	var evicted []*Command
	kept := h.entries[:0]
	for _, cmd := range h.entries {
		if cmd.FinishedAt.After(cutoff) {
			kept = append(kept, cmd)
			continue
		}
		evicted = append(evicted, cmd)
		delete(h.index, cmd.ID)
	}
	clear(h.entries[len(kept):])
	h.entries = kept
	return evicted
}

func (h *History) Len() int {
	return len(h.entries)
}
