package controlplane

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/pkg/options"
)

func simConfig() *Config {
	cfg := &Config{
		MqttOptions:     options.NewMqttOptions(),
		HttpOptions:     options.NewHttpOptions(),
		S3Options:       options.NewS3Options(),
		ControlOptions:  options.NewControlOptions(),
		ExecutorOptions: options.NewExecutorOptions(),
		HistoryOptions:  options.NewHistoryOptions(),
	}
	cfg.HttpOptions.Enabled = false
	cfg.ExecutorOptions.Mode = options.ExecutorSim
	cfg.ExecutorOptions.SimLatency = time.Hour
	return cfg
}

func TestServerRunClosesServiceOnShutdown(t *testing.T) {
	srv, err := simConfig().NewServer()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	h, err := srv.Service().Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	require.NoError(t, err)
	snap, err := h.Status()
	require.NoError(t, err)
	assert.Equal(t, control.StateExecuting, snap.State)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("control plane did not stop")
	}

	snap, err = h.Status()
	require.NoError(t, err)
	assert.Equal(t, control.StateCancelled, snap.State)

	_, err = srv.Service().Submit(t.Context(), control.Request{Name: "move", Priority: control.PriorityNormal})
	assert.ErrorIs(t, err, control.ErrServiceClosed)
}

func TestNewServerWithMQTTExecutor(t *testing.T) {
	cfg := simConfig()
	cfg.ExecutorOptions.Mode = options.ExecutorMQTT

	srv, err := cfg.NewServer()
	require.NoError(t, err)
	t.Cleanup(srv.Service().Close)

	health := srv.Service().Health(t.Context())
	assert.Equal(t, control.HealthDegraded, health.Status, "not connected before Run")
}
