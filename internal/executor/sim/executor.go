// Package sim provides an Executor that simulates a robot. Commands are
// logged instead of published and succeed after a fixed latency.
package sim

import (
	"context"
	"fmt"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/pkg/log"
)

type Executor struct {
	latency time.Duration
	fail    []string
	clock   clock.Clock
	log     log.Logger
}

var _ control.Executor = (*Executor)(nil)

// New returns a simulated robot. Commands named in fail are reported as
// failed; control commands always succeed.
func New(latency time.Duration, fail []string) *Executor {
	return &Executor{
		latency: latency,
		fail:    slices.Clone(fail),
		clock:   clock.RealClock{},
		log:     log.WithName("sim-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, name string, params map[string]any, sessionID string) (*control.Outcome, error) {
	e.log.Info("Simulating command", "command", name, "parameters", params, "session", sessionID)

	if name == control.CommandCancel || control.IsExempt(name) {
		return &control.Outcome{Success: true, Message: fmt.Sprintf("simulated %s", name)}, nil
	}

	if e.latency > 0 {
		t := e.clock.NewTimer(e.latency)
		defer t.Stop()
		select {
		case <-t.C():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if slices.Contains(e.fail, name) {
		return &control.Outcome{Success: false, Message: fmt.Sprintf("simulated failure of %s", name)}, nil
	}
	return &control.Outcome{
		Success: true,
		Message: fmt.Sprintf("simulated %s", name),
		Data:    map[string]any{"simulated": true},
	}, nil
}
