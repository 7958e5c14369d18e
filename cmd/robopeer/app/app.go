package app

import (
	"fmt"

	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/robopeer/cmd/robopeer/app/options"
	"github.com/autopeer-io/robopeer/pkg/app"
	"github.com/autopeer-io/robopeer/pkg/log"
)

const (
	commandName = "robopeer"
	commandDesc = `The Robopeer control plane admits commands for one robot, queues them by
priority and dispatches them over MQTT, one at a time by default. It serves a
command API, health probes and metrics over HTTP.`
)

func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		commandName,
		"Launch the Robopeer command control plane",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
		app.WithConfigWatch(reloadLogLevel),
	)
	return application
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewServer()
		if err != nil {
			return fmt.Errorf("failed to create control plane: %w", err)
		}

		return server.Run(ctx)
	}
}

// reloadLogLevel applies log.level from a changed config file. Other
// settings take effect on restart.
func reloadLogLevel(v *viper.Viper) {
	level := v.GetString("log.level")
	if level == "" {
		return
	}
	if err := log.SetLevel(level); err != nil {
		log.Error(err, "Ignoring log level from config file")
		return
	}
	log.Info("Log level changed", "level", level)
}
