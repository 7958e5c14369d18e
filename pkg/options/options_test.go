package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8080", false},
		{":9090", false},
		{"localhost:65535", false},
		{"localhost", true},
		{"localhost:http", true},
		{"localhost:0", true},
		{"localhost:70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	for name, o := range map[string]IOptions{
		"mqtt":     NewMqttOptions(),
		"http":     NewHttpOptions(),
		"s3":       NewS3Options(),
		"control":  NewControlOptions(),
		"executor": NewExecutorOptions(),
		"history":  NewHistoryOptions(),
	} {
		assert.Empty(t, o.Validate(), name)
	}
}

func TestMqttOptionsValidate(t *testing.T) {
	o := NewMqttOptions()
	o.RobotID = ""
	o.QoS = 3
	o.KeepAlive = 0

	assert.Len(t, o.Validate(), 3)
}

func TestDisabledGroupsSkipValidation(t *testing.T) {
	h := NewHttpOptions()
	h.Enabled = false
	h.Addr = "nonsense"
	assert.Empty(t, h.Validate())

	s := NewS3Options()
	s.Enabled = true
	s.BucketName = ""
	assert.Len(t, s.Validate(), 1)
}

func TestAddFlagsBindsValues(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c := NewControlOptions()
	e := NewExecutorOptions()
	c.AddFlags(fs)
	e.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--control.max-in-flight=2",
		"--control.default-timeout=5s",
		"--executor.mode=sim",
		"--executor.sim-fail=jump,fly",
	}))
	assert.Equal(t, 2, c.MaxInFlight)
	assert.Equal(t, 5*time.Second, c.DefaultTimeout)
	assert.Equal(t, ExecutorSim, e.Mode)
	assert.Equal(t, []string{"jump", "fly"}, e.SimFail)
	assert.Empty(t, c.Validate())

	e.Mode = "carrier-pigeon"
	assert.Len(t, e.Validate(), 1)
}

func TestToClientConfig(t *testing.T) {
	o := NewMqttOptions()
	o.ClientID = "cp-1"
	cfg := o.ToClientConfig()
	assert.Equal(t, uint16(60), cfg.KeepAlive)
	assert.Equal(t, "cp-1", cfg.ClientID)
	assert.NoError(t, cfg.Validate())
}
