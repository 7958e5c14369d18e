package control

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

// Lifecycle events.
const (
	eventDispatch = "dispatch"
	eventComplete = "complete"
	eventFail     = "fail"
	eventTimeout  = "timeout"
	eventError    = "error"
	eventCancel   = "cancel"
)

// newLifecycle builds the state machine of cmd. Entering Executing stamps
// ExecutedAt; entering a terminal state stamps FinishedAt and stores the
// *Outcome passed as the first event argument.
func newLifecycle(cmd *Command, now func() time.Time) *fsm.FSM {
	queued := string(StateQueued)
	executing := string(StateExecuting)

	return fsm.NewFSM(
		queued,
		fsm.Events{
			{Name: eventDispatch, Src: []string{queued}, Dst: executing},
			{Name: eventComplete, Src: []string{executing}, Dst: string(StateCompleted)},
			{Name: eventFail, Src: []string{executing}, Dst: string(StateFailed)},
			{Name: eventTimeout, Src: []string{executing}, Dst: string(StateTimedOut)},
			{Name: eventError, Src: []string{executing}, Dst: string(StateError)},
			{Name: eventCancel, Src: []string{queued, executing}, Dst: string(StateCancelled)},
		},
		fsm.Callbacks{
			"enter_" + executing: func(_ context.Context, _ *fsm.Event) {
				cmd.ExecutedAt = now()
			},
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if !State(e.Dst).Terminal() {
					return
				}
				cmd.FinishedAt = now()
				if len(e.Args) == 0 {
					return
				}
				outcome, ok := e.Args[0].(*Outcome)
				if !ok {
					// Surfaces from FSM.Event.
					e.Err = fmt.Errorf("event %q: unexpected argument %T", e.Event, e.Args[0])
					return
				}
				cmd.Outcome = outcome
			},
		},
	)
}

// fire applies event to cmd. The Service only fires events that are legal
// from the current state, so any failure here is a programming error.
func (c *Command) fire(event string, outcome *Outcome) {
	var err error
	if outcome != nil {
		err = c.lifecycle.Event(context.Background(), event, outcome)
	} else {
		err = c.lifecycle.Event(context.Background(), event)
	}
	if err != nil {
		panic(fmt.Sprintf("control: command %s: %s from %s: %v", c.ID, event, c.State(), err))
	}
}
