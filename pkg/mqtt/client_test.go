package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"robot/v1/command/ack/r1", "robot/v1/command/ack/r1", true},
		{"robot/v1/command/ack/+", "robot/v1/command/ack/r1", true},
		{"robot/v1/command/ack/+", "robot/v1/command/ack/r1/extra", false},
		{"robot/v1/#", "robot/v1/command/ack/r1", true},
		{"robot/v1/command/+", "robot/v1/online/r1", false},
		{"robot/v1/command/ack/r1", "robot/v1/command/ack/r2", false},
		{"robot/+/command/ack/+", "robot/v2/command/ack/r9", true},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"~"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilterStripsSharePrefix(t *testing.T) {
	assert.Equal(t, "robot/v1/command/ack/+", topicFilter("$share/ctrl/robot/v1/command/ack/+"))
	assert.Equal(t, "robot/v1/online/+", topicFilter("robot/v1/online/+"))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "localhost"})
	require.Error(t, err, "a url without scheme is rejected")

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "robopeer-test"})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish(t.Context(), "t", 1, false, nil), errNotStarted)
}
