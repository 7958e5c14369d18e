package control

import (
	"context"
)

// Executor delivers one command to the robot and waits for its result.
// Implementations must return promptly once ctx is done.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]any, sessionID string) (*Outcome, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name string, params map[string]any, sessionID string) (*Outcome, error)

func (f ExecutorFunc) Execute(ctx context.Context, name string, params map[string]any, sessionID string) (*Outcome, error) {
	return f(ctx, name, params, sessionID)
}

// HealthChecker is implemented by executors that can report on their link to the robot.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// StatusReporter is implemented by executors that know the last state the
// robot reported about itself. A nil map means nothing was reported yet.
type StatusReporter interface {
	RobotStatus(ctx context.Context) (map[string]any, error)
}
