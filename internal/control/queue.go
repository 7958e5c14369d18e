package control

import (
	"iter"
	"slices"
	"sort"
)

// Queue holds admitted commands awaiting dispatch, ordered by priority and
// then by admission order. It is not safe for concurrent use; the Service
// guards it.
type Queue struct {
	items []*Command
}

func newQueue() *Queue {
	return &Queue{}
}

// Enqueue inserts cmd after every entry that is served before it.
func (q *Queue) Enqueue(cmd *Command) {
	i := sort.Search(len(q.items), func(i int) bool {
		return before(cmd, q.items[i])
	})
	q.items = slices.Insert(q.items, i, cmd)
}

// DequeueNext removes and returns the head of the queue.
func (q *Queue) DequeueNext() (*Command, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return cmd, true
}

// Remove deletes the command with the given id and returns it.
func (q *Queue) Remove(id string) (*Command, bool) {
	i := slices.IndexFunc(q.items, func(c *Command) bool { return c.ID == id })
	if i < 0 {
		return nil, false
	}
	cmd := q.items[i]
	q.items = slices.Delete(q.items, i, i+1)
	return cmd, true
}

// Get returns the queued command with the given id.
func (q *Queue) Get(id string) (*Command, bool) {
	i := slices.IndexFunc(q.items, func(c *Command) bool { return c.ID == id })
	if i < 0 {
		return nil, false
	}
	return q.items[i], true
}

func (q *Queue) Len() int {
	return len(q.items)
}

// Snapshot returns the queue contents in dispatch order as of the call.
// The sequence may be ranged over any number of times and never observes
// later changes to the queue.
func (q *Queue) Snapshot() iter.Seq[Summary] {
	items := slices.Clone(q.items)
	return func(yield func(Summary) bool) {
		for _, cmd := range items {
			if !yield(cmd.summary()) {
				return
			}
		}
	}
}

// before reports whether a is served ahead of b.
func before(a, b *Command) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}
