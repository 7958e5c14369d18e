package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/robopeer/pkg/options"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())
	assert.Equal(t, "robopeer", o.Log.Name)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewServerOptions()
	o.ControlOptions.MaxInFlight = 0
	o.ExecutorOptions.Mode = "carrier-pigeon"
	o.HistoryOptions.Retention = -1

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max-in-flight")
	assert.Contains(t, err.Error(), "executor.mode")
	assert.Contains(t, err.Error(), "history.retention")
}

func TestSimulatorSkipsBrokerValidation(t *testing.T) {
	o := NewServerOptions()
	o.MqttOptions.Broker = ""
	assert.Error(t, o.Validate())

	o.ExecutorOptions.Mode = options.ExecutorSim
	assert.NoError(t, o.Validate())
}

func TestFlagsAreGrouped(t *testing.T) {
	fss := NewServerOptions().Flags()
	for _, name := range []string{"mqtt", "http", "s3", "control", "executor", "history", "log"} {
		assert.Contains(t, fss.Order, name)
	}
	assert.NotNil(t, fss.FlagSet("control").Lookup("control.max-in-flight"))
}

func TestConfigSharesOptions(t *testing.T) {
	o := NewServerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.MqttOptions, cfg.MqttOptions)
	assert.Same(t, o.HistoryOptions, cfg.HistoryOptions)
}
