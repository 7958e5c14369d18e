package options

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ExecutorOptions)(nil)

const (
	ExecutorMQTT = "mqtt"
	ExecutorSim  = "sim"
)

// ExecutorOptions selects how commands reach the robot.
type ExecutorOptions struct {
	// Mode is "mqtt" for a real robot or "sim" to simulate one.
	Mode string `json:"mode" mapstructure:"mode"`

	// SimLatency is how long a simulated command runs.
	SimLatency time.Duration `json:"sim-latency" mapstructure:"sim-latency"`

	// SimFail names commands the simulated robot reports as failed.
	SimFail []string `json:"sim-fail" mapstructure:"sim-fail"`
}

func NewExecutorOptions() *ExecutorOptions {
	return &ExecutorOptions{
		Mode:       ExecutorMQTT,
		SimLatency: 500 * time.Millisecond,
	}
}

func (o *ExecutorOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if !slices.Contains([]string{ExecutorMQTT, ExecutorSim}, o.Mode) {
		errs = append(errs, fmt.Errorf("--executor.mode must be %q or %q, got %q", ExecutorMQTT, ExecutorSim, o.Mode))
	}
	if o.SimLatency < 0 {
		errs = append(errs, fmt.Errorf("--executor.sim-latency must not be negative, got %s", o.SimLatency))
	}

	return errs
}

func (o *ExecutorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Mode, "executor.mode", o.Mode, "How commands reach the robot: mqtt or sim.")
	fs.DurationVar(&o.SimLatency, "executor.sim-latency", o.SimLatency, "Duration of each simulated command.")
	fs.StringSliceVar(&o.SimFail, "executor.sim-fail", o.SimFail, "Commands the simulated robot reports as failed.")
}
