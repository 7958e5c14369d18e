package control

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queued(seq uint64, p Priority) *Command {
	return &Command{ID: fmt.Sprintf("cmd-%d", seq), Name: "move", Priority: p, seq: seq}
}

func TestQueueOrdersByPriorityThenAdmission(t *testing.T) {
	q := newQueue()
	q.Enqueue(queued(1, PriorityLow))
	q.Enqueue(queued(2, PriorityEmergency))
	q.Enqueue(queued(3, PriorityNormal))
	q.Enqueue(queued(4, PriorityEmergency))

	var got []string
	for {
		cmd, ok := q.DequeueNext()
		if !ok {
			break
		}
		got = append(got, cmd.ID)
	}
	assert.Equal(t, []string{"cmd-2", "cmd-4", "cmd-3", "cmd-1"}, got)
	assert.Zero(t, q.Len())
}

func TestQueueRandomizedOrder(t *testing.T) {
	q := newQueue()
	for seq := uint64(1); seq <= 200; seq++ {
		q.Enqueue(queued(seq, Priority(rand.IntN(4)+1)))

		require.True(t, slices.IsSortedFunc(q.items, func(a, b *Command) int {
			if before(a, b) {
				return -1
			}
			return 1
		}), "queue out of order after enqueue %d", seq)
	}

	var last *Command
	for q.Len() > 0 {
		cmd, _ := q.DequeueNext()
		if last != nil {
			require.True(t, before(last, cmd), "%s dequeued before %s", last.ID, cmd.ID)
		}
		last = cmd
	}
}

func TestQueueRemove(t *testing.T) {
	q := newQueue()
	q.Enqueue(queued(1, PriorityNormal))
	q.Enqueue(queued(2, PriorityNormal))

	cmd, ok := q.Remove("cmd-1")
	require.True(t, ok)
	assert.Equal(t, "cmd-1", cmd.ID)

	_, ok = q.Remove("cmd-1")
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestQueueSnapshotIsRestartableAndDetached(t *testing.T) {
	q := newQueue()
	q.Enqueue(queued(1, PriorityHigh))
	q.Enqueue(queued(2, PriorityLow))

	snap := q.Snapshot()
	q.Enqueue(queued(3, PriorityEmergency))
	q.DequeueNext()

	first := slices.Collect(snap)
	second := slices.Collect(snap)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "cmd-1", first[0].ID)
	assert.Equal(t, "cmd-2", first[1].ID)

	for s := range snap {
		if s.ID == "cmd-1" {
			break
		}
		t.Fatalf("unexpected first entry %s", s.ID)
	}
}

func TestTrackerRejectsDuplicate(t *testing.T) {
	tr := newTracker()
	tr.Track(queued(1, PriorityNormal))
	assert.PanicsWithValue(t, "control: command cmd-1 is already tracked", func() { tr.Track(queued(1, PriorityNormal)) })

	cmd, ok := tr.Untrack("cmd-1")
	require.True(t, ok)
	assert.Equal(t, "cmd-1", cmd.ID)
	_, ok = tr.Untrack("cmd-1")
	assert.False(t, ok)
}
