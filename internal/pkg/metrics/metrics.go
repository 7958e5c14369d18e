package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every robopeer collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// CommandsAdmitted counts commands accepted into the queue.
	CommandsAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robopeer_commands_admitted_total",
			Help: "Total number of commands admitted into the command queue.",
		},
		[]string{"priority"},
	)

	// CommandsRefused counts submissions rejected before a command was created.
	CommandsRefused = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robopeer_commands_refused_total",
			Help: "Total number of submissions refused at admission.",
		},
		[]string{"reason"}, // invalid_priority, invalid_command, emergency_active
	)

	// CommandsFinished counts commands reaching a terminal state.
	CommandsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robopeer_commands_finished_total",
			Help: "Total number of commands that reached a terminal state.",
		},
		[]string{"state"},
	)

	// CommandDuration observes the time from dispatch to terminal state.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "robopeer_command_duration_seconds",
			Help:    "Time between dispatch to the robot and the terminal state.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robopeer_queue_depth",
		Help: "Number of commands waiting in the queue.",
	})

	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robopeer_inflight_commands",
		Help: "Number of commands currently executing on the robot.",
	})

	// EmergencyStopActive is 1 while the emergency flag is set.
	EmergencyStopActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robopeer_emergency_stop_active",
		Help: "Whether the emergency stop flag is set (1=active, 0=clear).",
	})

	HistoryPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robopeer_history_pruned_total",
		Help: "Total number of terminal commands evicted from history.",
	})

	// BrokerConnectivityStatus is 1 when the MQTT connection to the broker is up.
	BrokerConnectivityStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robopeer_broker_connectivity_status",
		Help: "The connectivity status to the MQTT broker (1=Connected, 0=Disconnected).",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CommandsAdmitted,
		CommandsRefused,
		CommandsFinished,
		CommandDuration,
		QueueDepth,
		InFlight,
		EmergencyStopActive,
		HistoryPruned,
		BrokerConnectivityStatus,
	)
}
