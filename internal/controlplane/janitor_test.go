package controlplane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/robopeer/internal/control"
)

type fakeDrainer struct {
	mu    sync.Mutex
	calls []time.Duration
	next  []control.Snapshot
}

func (f *fakeDrainer) DrainHistory(olderThan time.Duration) []control.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, olderThan)
	out := f.next
	f.next = nil
	return out
}

func (f *fakeDrainer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingArchiver struct {
	mu      sync.Mutex
	batches [][]control.Snapshot
	err     error
}

func (r *recordingArchiver) Archive(_ context.Context, snaps []control.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, snaps)
	return r.err
}

func (r *recordingArchiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func startJanitor(t *testing.T, j *Janitor) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- j.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestJanitorDrainsAndArchivesOnEachTick(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	drainer := &fakeDrainer{next: []control.Snapshot{{ID: "cmd-1"}, {ID: "cmd-2"}}}
	archiver := &recordingArchiver{}

	startJanitor(t, &Janitor{
		Service:   drainer,
		Archiver:  archiver,
		Log:       logr.Discard(),
		Retention: 24 * time.Hour,
		Interval:  time.Hour,
		Clock:     clk,
	})

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	clk.Step(time.Hour)
	require.Eventually(t, func() bool { return archiver.count() == 1 }, time.Second, time.Millisecond)

	clk.Step(time.Hour)
	require.Eventually(t, func() bool { return drainer.callCount() == 2 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, archiver.count(), "empty drains are not archived")
	assert.Equal(t, []time.Duration{24 * time.Hour, 24 * time.Hour}, drainer.calls)
	assert.Equal(t, "cmd-2", archiver.batches[0][1].ID)
}

func TestJanitorKeepsRunningAfterArchiveFailure(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	drainer := &fakeDrainer{next: []control.Snapshot{{ID: "cmd-1"}}}
	archiver := &recordingArchiver{err: errors.New("bucket unreachable")}

	startJanitor(t, &Janitor{
		Service:  drainer,
		Archiver: archiver,
		Log:      logr.Discard(),
		Interval: time.Minute,
		Clock:    clk,
	})

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	clk.Step(time.Minute)
	require.Eventually(t, func() bool { return archiver.count() == 1 }, time.Second, time.Millisecond)
	clk.Step(time.Minute)
	require.Eventually(t, func() bool { return drainer.callCount() == 2 }, time.Second, time.Millisecond)
}

func TestJanitorDisabled(t *testing.T) {
	drainer := &fakeDrainer{}
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := (&Janitor{Service: drainer, Log: logr.Discard()}).Start(ctx)
	require.NoError(t, err)
	assert.Zero(t, drainer.callCount())
}

func TestJanitorAgainstService(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	svc := control.New(control.ExecutorFunc(func(context.Context, string, map[string]any, string) (*control.Outcome, error) {
		return &control.Outcome{Success: true}, nil
	}), control.WithClock(clk))
	t.Cleanup(svc.Close)

	_, err := svc.Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return svc.QueueStatus().HistoryLength == 1 }, time.Second, time.Millisecond)

	archiver := &recordingArchiver{}
	j := &Janitor{Service: svc, Archiver: archiver, Log: logr.Discard(), Retention: time.Hour}

	j.cleanup(t.Context())
	assert.Zero(t, archiver.count())

	clk.Step(2 * time.Hour)
	j.cleanup(t.Context())
	require.Equal(t, 1, archiver.count())
	assert.Equal(t, control.StateCompleted, archiver.batches[0][0].State)
	assert.Zero(t, svc.QueueStatus().HistoryLength)
}
