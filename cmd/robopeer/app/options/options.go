package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/robopeer/internal/controlplane"
	"github.com/autopeer-io/robopeer/pkg/app"
	"github.com/autopeer-io/robopeer/pkg/log"
	"github.com/autopeer-io/robopeer/pkg/options"
)

type ServerOptions struct {
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	S3Options       *options.S3Options       `json:"s3" mapstructure:"s3"`
	ControlOptions  *options.ControlOptions  `json:"control" mapstructure:"control"`
	ExecutorOptions *options.ExecutorOptions `json:"executor" mapstructure:"executor"`
	HistoryOptions  *options.HistoryOptions  `json:"history" mapstructure:"history"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ServerOptions)(nil)

func NewServerOptions() *ServerOptions {
	o := &ServerOptions{
		MqttOptions:     options.NewMqttOptions(),
		HttpOptions:     options.NewHttpOptions(),
		S3Options:       options.NewS3Options(),
		ControlOptions:  options.NewControlOptions(),
		ExecutorOptions: options.NewExecutorOptions(),
		HistoryOptions:  options.NewHistoryOptions(),
		Log:             log.NewOptions(),
	}

	return o
}

func (o *ServerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.ControlOptions.AddFlags(fss.FlagSet("control"))
	o.ExecutorOptions.AddFlags(fss.FlagSet("executor"))
	o.HistoryOptions.AddFlags(fss.FlagSet("history"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *ServerOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = "robopeer"
	}
	return nil
}

func (o *ServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.ControlOptions.Validate()...)
	errs = append(errs, o.ExecutorOptions.Validate()...)
	errs = append(errs, o.HistoryOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	if o.ExecutorOptions.Mode == options.ExecutorMQTT {
		errs = append(errs, o.MqttOptions.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

func (o *ServerOptions) Config() (*controlplane.Config, error) {
	return &controlplane.Config{
		MqttOptions:     o.MqttOptions,
		HttpOptions:     o.HttpOptions,
		S3Options:       o.S3Options,
		ControlOptions:  o.ControlOptions,
		ExecutorOptions: o.ExecutorOptions,
		HistoryOptions:  o.HistoryOptions,
	}, nil
}
