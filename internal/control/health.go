package control

import (
	"context"
)

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// Health summarizes the service and its link to the robot.
type Health struct {
	Status         string         `json:"status"`
	ExecutorError  string         `json:"executor_error,omitempty"`
	QueueLength    int            `json:"queue_length"`
	ActiveCommands int            `json:"active_commands"`
	EmergencyStop  bool           `json:"emergency_stop"`
	HistoryLength  int            `json:"history_length"`
	Robot          map[string]any `json:"robot,omitempty"`
	RobotError     string         `json:"robot_error,omitempty"`
}

// Health reports degraded when the executor implements HealthChecker and
// reports a fault. The robot's own report is attached when the executor
// implements StatusReporter.
func (s *Service) Health(ctx context.Context) Health {
	s.mu.Lock()
	h := Health{
		Status:         HealthHealthy,
		QueueLength:    s.queue.Len(),
		ActiveCommands: s.tracker.Len(),
		EmergencyStop:  s.emergency,
		HistoryLength:  s.history.Len(),
	}
	s.mu.Unlock()

	if hc, ok := s.exec.(HealthChecker); ok {
		if err := hc.Healthy(ctx); err != nil {
			h.Status = HealthDegraded
			h.ExecutorError = err.Error()
		}
	}
	if sr, ok := s.exec.(StatusReporter); ok {
		robot, err := sr.RobotStatus(ctx)
		if err != nil {
			h.RobotError = err.Error()
		} else {
			h.Robot = robot
		}
	}
	return h
}
