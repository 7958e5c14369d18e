package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/robopeer/internal/control"
	httpserver "github.com/autopeer-io/robopeer/internal/controlplane/server/http"
	"github.com/autopeer-io/robopeer/pkg/log"
	"github.com/autopeer-io/robopeer/pkg/options"
)

// holdingExecutor keeps ordinary commands running until cancelled.
func holdingExecutor(ctx context.Context, name string, _ map[string]any, _ string) (*control.Outcome, error) {
	if name == control.CommandCancel || control.IsExempt(name) {
		return &control.Outcome{Success: true, Message: "ok"}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func newAPI(t *testing.T) (*httptest.Server, *control.Service) {
	t.Helper()
	svc := control.New(control.ExecutorFunc(holdingExecutor), control.WithLogger(log.NewNopLogger()))
	t.Cleanup(svc.Close)
	srv := httptest.NewServer(httpserver.NewServer(options.NewHttpOptions(), svc).Handler())
	t.Cleanup(srv.Close)
	return srv, svc
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRobopeerctlCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestSubmitAndGet(t *testing.T) {
	srv, _ := newAPI(t)

	out, err := run(t, srv.URL, "-o", "json", "submit", "move_forward",
		"--param", "distance=1.5", "--param", "message=on my way", "--priority", "2", "--session", "s-1")
	require.NoError(t, err)

	var snap control.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "move_forward", snap.Name)
	assert.Equal(t, control.PriorityHigh, snap.Priority)
	assert.Equal(t, control.StateExecuting, snap.State)
	assert.Equal(t, 1.5, snap.Parameters["distance"])
	assert.Equal(t, "on my way", snap.Parameters["message"])

	out, err = run(t, srv.URL, "get", snap.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "PRIORITY")
	assert.Contains(t, out, snap.ID)
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "Executing")
}

func TestQueueYAML(t *testing.T) {
	srv, svc := newAPI(t)
	_, err := svc.Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	require.NoError(t, err)
	_, err = svc.Submit(t.Context(), control.Request{Name: "say", Priority: control.PriorityLow})
	require.NoError(t, err)

	out, err := run(t, srv.URL, "-o", "yaml", "queue")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 1, doc["queue_length"])
	assert.Equal(t, 1, doc["active_commands"])
	assert.Equal(t, false, doc["emergency_stop"])
}

func TestQueueTable(t *testing.T) {
	srv, svc := newAPI(t)
	_, err := svc.Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	require.NoError(t, err)
	_, err = svc.Submit(t.Context(), control.Request{Name: "say", Priority: control.PriorityLow})
	require.NoError(t, err)

	out, err := run(t, srv.URL, "queue")
	require.NoError(t, err)
	assert.Contains(t, out, "EMERGENCY STOP:")
	assert.Contains(t, out, "say")
	assert.Contains(t, out, "low")
	assert.Contains(t, out, "Queued")
}

func TestCancelAndErrors(t *testing.T) {
	srv, svc := newAPI(t)
	h, err := svc.Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	require.NoError(t, err)

	out, err := run(t, srv.URL, "cancel", h.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	_, err = run(t, srv.URL, "cancel", h.ID)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Code)

	_, err = run(t, srv.URL, "submit", "move", "--priority", "9")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
}

func TestEmergencyStopResumeAndPrune(t *testing.T) {
	srv, svc := newAPI(t)
	_, err := svc.Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	require.NoError(t, err)

	out, err := run(t, srv.URL, "estop")
	require.NoError(t, err)
	assert.Contains(t, out, control.CommandEmergencyStop)
	assert.True(t, svc.QueueStatus().EmergencyStop)

	_, err = run(t, srv.URL, "submit", "move")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Code)

	_, err = run(t, srv.URL, "resume")
	require.NoError(t, err)
	assert.False(t, svc.QueueStatus().EmergencyStop)

	out, err = run(t, srv.URL, "-o", "json", "prune")
	require.NoError(t, err)
	var resp httpserver.PruneResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Removed, "cancelled move, stop and resume")
}

func TestInvalidOutput(t *testing.T) {
	_, err := run(t, "http://localhost:1", "-o", "xml", "health")
	assert.ErrorContains(t, err, "--output")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"speed=2", "enabled=true", "name=go2", "path=[1,2]", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"speed":   2.0,
		"enabled": true,
		"name":    "go2",
		"path":    []any{1.0, 2.0},
		"note":    "a=b",
	}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}
