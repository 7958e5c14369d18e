package control

import (
	"context"
	"maps"
	"strconv"
	"time"

	"github.com/looplab/fsm"
)

// Priority ranks a command; lower values are served first.
type Priority int

const (
	PriorityEmergency Priority = 1
	PriorityHigh      Priority = 2
	PriorityNormal    Priority = 3
	PriorityLow       Priority = 4
)

// Valid reports whether p lies within [PriorityEmergency, PriorityLow].
func (p Priority) Valid() bool {
	return p >= PriorityEmergency && p <= PriorityLow
}

func (p Priority) String() string {
	switch p {
	case PriorityEmergency:
		return "emergency"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return strconv.Itoa(int(p))
}

// State is the lifecycle phase of a command.
type State string

const (
	StateQueued    State = "Queued"
	StateExecuting State = "Executing"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
	StateTimedOut  State = "TimedOut"
	StateCancelled State = "Cancelled"
	StateError     State = "Error"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled, StateError:
		return true
	}
	return false
}

// Command names with a fixed meaning to the control plane.
const (
	// CommandEmergencyStop halts the robot. Always admitted.
	CommandEmergencyStop = "emergency_stop"

	// CommandResume clears the emergency state on the robot. Always admitted.
	CommandResume = "resume_operation"

	// CommandCancel asks the robot to abort the command named by the
	// "command_id" parameter.
	CommandCancel = "cancel_command"
)

// IsExempt reports whether name bypasses the emergency admission check.
func IsExempt(name string) bool {
	return name == CommandEmergencyStop || name == CommandResume
}

// Outcome is the result of a command once it has left Executing.
type Outcome struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Request describes a command to submit.
type Request struct {
	Name       string
	Parameters map[string]any
	Priority   Priority
	SessionID  string

	// Timeout bounds the robot call. Zero selects the service default,
	// a negative value disables the deadline.
	Timeout time.Duration
}

// Command is an admitted unit of work. Only the Service mutates it, and only
// its lifecycle, timestamps and outcome change after admission.
type Command struct {
	ID         string
	Name       string
	Parameters map[string]any
	Priority   Priority
	SessionID  string
	Timeout    time.Duration

	QueuedAt   time.Time
	ExecutedAt time.Time
	FinishedAt time.Time
	Outcome    *Outcome

	// seq is the admission sequence number, the tie-break within a priority.
	seq uint64

	lifecycle *fsm.FSM

	// cancel aborts the robot call while the command is executing.
	cancel context.CancelFunc
}

// State returns the current lifecycle state.
func (c *Command) State() State {
	return State(c.lifecycle.Current())
}

func (c *Command) abort() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Snapshot is a read-only copy of a command.
type Snapshot struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   Priority       `json:"priority"`
	SessionID  string         `json:"session_id,omitempty"`
	State      State          `json:"state"`
	Timeout    time.Duration  `json:"timeout,omitempty"`
	QueuedAt   time.Time      `json:"queued_at"`
	ExecutedAt *time.Time     `json:"executed_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Outcome    *Outcome       `json:"outcome,omitempty"`
}

func (c *Command) snapshot() Snapshot {
	s := Snapshot{
		ID:         c.ID,
		Name:       c.Name,
		Parameters: maps.Clone(c.Parameters),
		Priority:   c.Priority,
		SessionID:  c.SessionID,
		State:      c.State(),
		Timeout:    c.Timeout,
		QueuedAt:   c.QueuedAt,
		ExecutedAt: optionalTime(c.ExecutedAt),
		FinishedAt: optionalTime(c.FinishedAt),
	}
	if c.Outcome != nil {
		o := *c.Outcome
		o.Data = maps.Clone(c.Outcome.Data)
		s.Outcome = &o
	}
	return s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Summary is the queue listing entry of a command. It never carries parameters.
type Summary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Priority Priority  `json:"priority"`
	QueuedAt time.Time `json:"queued_at"`
}

func (c *Command) summary() Summary {
	return Summary{ID: c.ID, Name: c.Name, Priority: c.Priority, QueuedAt: c.QueuedAt}
}
