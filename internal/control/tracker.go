package control

import (
	"fmt"
	"maps"
	"slices"
)

// Tracker holds the commands currently dispatched to the robot.
// It is not safe for concurrent use; the Service guards it.
type Tracker struct {
	active map[string]*Command
}

func newTracker() *Tracker {
	return &Tracker{active: make(map[string]*Command)}
}

// Track records cmd as executing. Tracking the same id twice is a bug.
func (t *Tracker) Track(cmd *Command) {
	if _, ok := t.active[cmd.ID]; ok {
		panic(fmt.Sprintf("control: command %s is already tracked", cmd.ID))
	}
	t.active[cmd.ID] = cmd
}

// Untrack forgets the command with the given id and returns it.
func (t *Tracker) Untrack(id string) (*Command, bool) {
	cmd, ok := t.active[id]
	if ok {
		delete(t.active, id)
	}
	return cmd, ok
}

func (t *Tracker) Get(id string) (*Command, bool) {
	cmd, ok := t.active[id]
	return cmd, ok
}

// IDs returns the tracked ids in lexical order.
func (t *Tracker) IDs() []string {
	return slices.Sorted(maps.Keys(t.active))
}

func (t *Tracker) Len() int {
	return len(t.active)
}
