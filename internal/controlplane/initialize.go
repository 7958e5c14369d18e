package controlplane

import (
	"fmt"
	"os"

	mqttexecutor "github.com/autopeer-io/robopeer/internal/executor/mqtt"
	"github.com/autopeer-io/robopeer/pkg/log"
	"github.com/autopeer-io/robopeer/pkg/mqtt"
	"github.com/autopeer-io/robopeer/pkg/mqtt/topic"
	"github.com/autopeer-io/robopeer/pkg/options"
)

func InitializeMQTTClient(opts *options.MqttOptions, topics *topic.Builder) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("robopeer-%s", hostname)
	}

	cfg.WillTopic, cfg.WillPayload = mqttexecutor.Will(topics, opts.RobotID)
	cfg.WillQoS = 1
	cfg.WillRetain = true

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}
