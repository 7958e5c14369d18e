package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ControlOptions)(nil)

// ControlOptions tunes command dispatch.
type ControlOptions struct {
	// MaxInFlight is the number of commands the robot executes at once.
	MaxInFlight int `json:"max-in-flight" mapstructure:"max-in-flight"`

	// DefaultTimeout applies to commands submitted without a timeout. Zero disables it.
	DefaultTimeout time.Duration `json:"default-timeout" mapstructure:"default-timeout"`

	// ControlTimeout bounds cancel, stop and resume calls to the robot.
	ControlTimeout time.Duration `json:"control-timeout" mapstructure:"control-timeout"`
}

func NewControlOptions() *ControlOptions {
	return &ControlOptions{
		MaxInFlight:    1,
		DefaultTimeout: 30 * time.Second,
		ControlTimeout: 10 * time.Second,
	}
}

func (o *ControlOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("--control.max-in-flight must be at least 1, got %d", o.MaxInFlight))
	}
	if o.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("--control.default-timeout must not be negative, got %s", o.DefaultTimeout))
	}
	if o.ControlTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--control.control-timeout must be positive, got %s", o.ControlTimeout))
	}

	return errs
}

func (o *ControlOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.MaxInFlight, "control.max-in-flight", o.MaxInFlight, "Number of commands dispatched to the robot at once.")
	fs.DurationVar(&o.DefaultTimeout, "control.default-timeout", o.DefaultTimeout, "Deadline of commands submitted without one (0 disables).")
	fs.DurationVar(&o.ControlTimeout, "control.control-timeout", o.ControlTimeout, "Deadline of cancel, emergency stop and resume calls.")
}
