package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HistoryOptions)(nil)

// HistoryOptions controls periodic pruning of the command history.
type HistoryOptions struct {
	// Retention is how long terminal commands stay queryable.
	Retention time.Duration `json:"retention" mapstructure:"retention"`

	// Interval between prune runs. Zero disables pruning.
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

func NewHistoryOptions() *HistoryOptions {
	return &HistoryOptions{
		Retention: 24 * time.Hour,
		Interval:  time.Hour,
	}
}

func (o *HistoryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Retention < 0 {
		errs = append(errs, fmt.Errorf("--history.retention must not be negative, got %s", o.Retention))
	}
	if o.Interval < 0 {
		errs = append(errs, fmt.Errorf("--history.interval must not be negative, got %s", o.Interval))
	}

	return errs
}

func (o *HistoryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Retention, "history.retention", o.Retention, "How long finished commands stay in history.")
	fs.DurationVar(&o.Interval, "history.interval", o.Interval, "Interval between history prune runs (0 disables).")
}
