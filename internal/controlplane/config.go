package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/robopeer/internal/archive"
	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/internal/controlplane/server"
	"github.com/autopeer-io/robopeer/internal/controlplane/server/http"
	mqttexecutor "github.com/autopeer-io/robopeer/internal/executor/mqtt"
	"github.com/autopeer-io/robopeer/internal/executor/sim"
	"github.com/autopeer-io/robopeer/pkg/log"
	"github.com/autopeer-io/robopeer/pkg/mqtt/topic"
	"github.com/autopeer-io/robopeer/pkg/options"
)

const bucketCheckTimeout = 10 * time.Second

type Config struct {
	MqttOptions     *options.MqttOptions
	HttpOptions     *options.HttpOptions
	S3Options       *options.S3Options
	ControlOptions  *options.ControlOptions
	ExecutorOptions *options.ExecutorOptions
	HistoryOptions  *options.HistoryOptions
}

func (cfg *Config) NewServer() (*Server, error) {
	var servers []server.Server

	// 1. Infrastructure: the link to the robot
	var exec control.Executor
	switch cfg.ExecutorOptions.Mode {
	case options.ExecutorSim:
		exec = sim.New(cfg.ExecutorOptions.SimLatency, cfg.ExecutorOptions.SimFail)
	default:
		topics := topic.NewBuilder(cfg.MqttOptions.TopicRoot)
		client, err := InitializeMQTTClient(cfg.MqttOptions, topics)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		mqttExec := mqttexecutor.New(client, topics, mqttexecutor.Config{
			RobotID:  cfg.MqttOptions.RobotID,
			QoS:      cfg.MqttOptions.QoS,
			AwaitAck: cfg.MqttOptions.AwaitAck,
		})
		servers = append(servers, server.ServerFunc(mqttExec.Run))
		exec = mqttExec
	}

	// 2. Core: the command control service
	svc := control.New(exec,
		control.WithMaxInFlight(cfg.ControlOptions.MaxInFlight),
		control.WithDefaultTimeout(cfg.ControlOptions.DefaultTimeout),
		control.WithControlTimeout(cfg.ControlOptions.ControlTimeout),
		control.WithLogger(log.WithName("control").WithValues("robot", cfg.MqttOptions.RobotID)),
	)

	// 3. Infrastructure: history archive
	archiver, err := cfg.newArchiver()
	if err != nil {
		svc.Close()
		return nil, err
	}
	servers = append(servers, &Janitor{
		Service:   svc,
		Archiver:  archiver,
		Log:       log.Logr().WithName("history-janitor"),
		Retention: cfg.HistoryOptions.Retention,
		Interval:  cfg.HistoryOptions.Interval,
	})

	// 4. Ingress: ops and command API
	if cfg.HttpOptions.Enabled {
		servers = append(servers, http.NewServer(cfg.HttpOptions, svc))
	}

	return &Server{
		service:       svc,
		serverManager: server.NewManager(servers...),
	}, nil
}

func (cfg *Config) newArchiver() (archive.Archiver, error) {
	if !cfg.S3Options.Enabled {
		return archive.Nop{}, nil
	}

	store, err := archive.NewMinIO(cfg.S3Options, cfg.MqttOptions.RobotID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), bucketCheckTimeout)
	defer cancel()
	if err := store.CheckBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.S3Options.BucketName, err)
	}
	return store, nil
}
