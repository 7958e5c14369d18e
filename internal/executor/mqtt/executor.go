package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/internal/pkg/metrics"
	"github.com/autopeer-io/robopeer/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/robopeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/robopeer/pkg/mqtt"
	"github.com/autopeer-io/robopeer/pkg/mqtt/topic"
)

const connectivityInterval = 5 * time.Second

// Envelope is the command message published to {root}/command/{robotID}.
// Move and Say mirror the payload understood by the robot firmware.
type Envelope struct {
	RequestID  string         `json:"request_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Move       []string       `json:"move"`
	Say        string         `json:"say,omitempty"`
}

// Ack is the outcome the robot publishes to {root}/command/ack/{robotID}.
type Ack struct {
	RequestID string         `json:"request_id"`
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Presence is published retained to {root}/online/{robotID}.
type Presence struct {
	Online bool   `json:"online"`
	Reason string `json:"reason,omitempty"`
}

// Config holds the settings of an Executor.
type Config struct {
	RobotID  string
	QoS      int
	AwaitAck bool
}

// Executor delivers commands to one robot over MQTT.
type Executor struct {
	client pkgmqtt.Client
	topics *topic.Builder
	cfg    Config
	clock  clock.WithTicker
	log    log.Logger

	lock    sync.Mutex
	pending map[string]chan *control.Outcome

	// Last report received on the status topic.
	robot      map[string]any
	reportedAt time.Time
}

var (
	_ control.Executor       = (*Executor)(nil)
	_ control.HealthChecker  = (*Executor)(nil)
	_ control.StatusReporter = (*Executor)(nil)
)

// New creates an Executor publishing through client. Call Run to connect.
func New(client pkgmqtt.Client, topics *topic.Builder, cfg Config) *Executor {
	return &Executor{
		client:  client,
		topics:  topics,
		cfg:     cfg,
		clock:   clock.RealClock{},
		log:     log.WithName("mqtt-executor").WithValues("robot", cfg.RobotID),
		pending: make(map[string]chan *control.Outcome),
	}
}

// Will returns the last will of the control plane connection, announcing it
// offline on the presence topic.
func Will(topics *topic.Builder, robotID string) (string, []byte) {
	payload, _ := json.Marshal(Presence{Online: false, Reason: "connection lost"})
	return topics.Build(paths.Online, robotID), payload
}

// Run connects to the broker, subscribes to command acknowledgements and
// robot status reports and tracks connectivity until ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	if err := e.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if e.client.IsConnected() {
			e.publishPresence(shutdownCtx, Presence{Online: false, Reason: "shutdown"})
		}
		e.client.Disconnect(shutdownCtx)
		metrics.BrokerConnectivityStatus.Set(0)
	}()

	e.log.Info("Waiting for MQTT connection...")
	if err := e.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	e.log.Info("MQTT Connected")

	if e.cfg.AwaitAck {
		ackTopic := e.topics.Build(paths.CommandAck, e.cfg.RobotID)
		if err := e.client.Subscribe(ctx, ackTopic, e.cfg.QoS, e.handleAck); err != nil {
			return fmt.Errorf("subscribe %s: %w", ackTopic, err)
		}
	}
	statusTopic := e.topics.Build(paths.Status, e.cfg.RobotID)
	if err := e.client.Subscribe(ctx, statusTopic, e.cfg.QoS, e.handleStatus); err != nil {
		return fmt.Errorf("subscribe %s: %w", statusTopic, err)
	}
	e.publishPresence(ctx, Presence{Online: true})
	e.observeConnectivity()

	ticker := e.clock.NewTicker(connectivityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			e.observeConnectivity()
		}
	}
}

// Execute publishes the command envelope and, when acknowledgements are
// enabled, waits for the robot's outcome or ctx.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any, sessionID string) (*control.Outcome, error) {
	env := Envelope{
		RequestID:  "req-" + uuid.NewString(),
		Command:    name,
		Parameters: params,
		SessionID:  sessionID,
		Timestamp:  e.clock.Now().UTC(),
		Move:       []string{name},
	}
	if msg, ok := params["message"].(string); ok {
		env.Say = msg
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}

	var respChan chan *control.Outcome
	if e.cfg.AwaitAck {
		respChan = make(chan *control.Outcome, 1)
		e.lock.Lock()
		e.pending[env.RequestID] = respChan
		e.lock.Unlock()

		defer func() {
			e.lock.Lock()
			delete(e.pending, env.RequestID)
			e.lock.Unlock()
		}()
	}

	cmdTopic := e.topics.Build(paths.Command, e.cfg.RobotID)
	if err := e.client.Publish(ctx, cmdTopic, e.cfg.QoS, false, payload); err != nil {
		return nil, fmt.Errorf("publish %s: %w", name, err)
	}
	e.log.Debug("Published command", "command", name, "requestID", env.RequestID, "topic", cmdTopic)

	if !e.cfg.AwaitAck {
		return &control.Outcome{Success: true, Message: "published"}, nil
	}

	select {
	case outcome := <-respChan:
		return outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Healthy reports an error while the broker connection is down.
func (e *Executor) Healthy(context.Context) error {
	if !e.client.IsConnected() {
		return errors.New("mqtt broker disconnected")
	}
	return nil
}

// RobotStatus returns the last status report of the robot with the time it
// was received under "reported_at", or nil before the first report.
func (e *Executor) RobotStatus(context.Context) (map[string]any, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.robot == nil {
		return nil, nil
	}
	status := maps.Clone(e.robot)
	status["reported_at"] = e.reportedAt.UTC().Format(time.RFC3339)
	return status, nil
}

func (e *Executor) handleStatus(_ context.Context, from string, payload []byte) {
	var report map[string]any
	if err := json.Unmarshal(payload, &report); err != nil {
		e.log.Error(err, "Failed to decode robot status", "topic", from)
		return
	}
	if report == nil {
		report = map[string]any{}
	}

	e.lock.Lock()
	e.robot = report
	e.reportedAt = e.clock.Now()
	e.lock.Unlock()
	e.log.Debug("Robot status updated", "topic", from)
}

func (e *Executor) handleAck(_ context.Context, from string, payload []byte) {
	var ack Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		e.log.Error(err, "Failed to decode command ack", "topic", from)
		return
	}

	e.lock.Lock()
	respChan, ok := e.pending[ack.RequestID]
	e.lock.Unlock()
	if !ok {
		e.log.Debug("Ignoring ack for unknown request", "requestID", ack.RequestID)
		return
	}

	select {
	case respChan <- &control.Outcome{Success: ack.Success, Message: ack.Message, Data: ack.Data}:
	default:
		e.log.Warn("Duplicate ack", "requestID", ack.RequestID)
	}
}

func (e *Executor) publishPresence(ctx context.Context, p Presence) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := e.client.Publish(ctx, e.topics.Build(paths.Online, e.cfg.RobotID), 1, true, payload); err != nil {
		e.log.Error(err, "Failed to publish presence", "online", p.Online)
	}
}

func (e *Executor) observeConnectivity() {
	if e.client.IsConnected() {
		metrics.BrokerConnectivityStatus.Set(1)
	} else {
		metrics.BrokerConnectivityStatus.Set(0)
	}
}
