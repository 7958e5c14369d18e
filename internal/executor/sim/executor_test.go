package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/robopeer/internal/control"
)

func TestExecuteAfterLatency(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	e := New(time.Second, nil)
	e.clock = clk

	type result struct {
		outcome *control.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		o, err := e.Execute(t.Context(), "move_forward", nil, "")
		done <- result{o, err}
	}()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("command finished before its latency elapsed")
	default:
	}

	clk.Step(time.Second)
	r := <-done
	require.NoError(t, r.err)
	assert.True(t, r.outcome.Success)
	assert.Equal(t, true, r.outcome.Data["simulated"])
}

func TestExecuteConfiguredFailure(t *testing.T) {
	e := New(0, []string{"jump"})

	o, err := e.Execute(t.Context(), "jump", nil, "")
	require.NoError(t, err)
	assert.False(t, o.Success)

	o, err = e.Execute(t.Context(), "walk", nil, "")
	require.NoError(t, err)
	assert.True(t, o.Success)
}

func TestExecuteHonoursContext(t *testing.T) {
	e := New(time.Hour, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := e.Execute(ctx, "walk", nil, "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestControlCommandsSucceedImmediately(t *testing.T) {
	e := New(time.Hour, []string{control.CommandEmergencyStop})

	for _, name := range []string{control.CommandEmergencyStop, control.CommandResume, control.CommandCancel} {
		o, err := e.Execute(t.Context(), name, nil, "")
		require.NoError(t, err)
		assert.True(t, o.Success, name)
	}
}
