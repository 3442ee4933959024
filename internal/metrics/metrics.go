// Package metrics declares the prometheus collectors shared by the
// coordinator and peer engine. Naming convention: namespace_subsystem_name,
// matching the teacher corpus's convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections is the number of live reliable-transport connections
	// currently accepted by the local coordinator (0 if not hosting).
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lanforge",
		Subsystem: "coordinator",
		Name:      "connections_active",
		Help:      "Current number of accepted reliable-transport connections",
	})

	// ActiveRooms is 1 while the local coordinator is hosting a room, 0 otherwise.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lanforge",
		Subsystem: "coordinator",
		Name:      "rooms_active",
		Help:      "Whether the local coordinator currently hosts a room",
	})

	// RoomMembers tracks the member count of the locally hosted room.
	RoomMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lanforge",
		Subsystem: "room",
		Name:      "members",
		Help:      "Current member count of the locally hosted room",
	})

	// FramesDispatched counts coordinator-side frame dispatch by type and outcome.
	FramesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "coordinator",
		Name:      "frames_dispatched_total",
		Help:      "Total frames dispatched by the coordinator, by type and outcome",
	}, []string{"frame_type", "outcome"})

	// SnapshotBroadcasts counts STATE_SNAPSHOT broadcasts emitted.
	SnapshotBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "coordinator",
		Name:      "snapshot_broadcasts_total",
		Help:      "Total STATE_SNAPSHOT broadcasts emitted",
	})

	// HeartbeatTimeouts counts connections closed for exceeding the 15s silence window.
	HeartbeatTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "coordinator",
		Name:      "heartbeat_timeouts_total",
		Help:      "Total connections closed for heartbeat timeout",
	})

	// MigrationsStarted counts ServerLost transitions observed by the peer engine.
	MigrationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "peer",
		Name:      "migrations_started_total",
		Help:      "Total times the peer engine entered ServerLost",
	})

	// MigrationOutcomes counts how migrations resolved.
	MigrationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "peer",
		Name:      "migration_outcomes_total",
		Help:      "Total migrations by outcome (became_host, reconnected, abandoned)",
	}, []string{"outcome"})

	// CircuitBreakerState mirrors gobreaker's state for the reconnect breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lanforge",
		Subsystem: "peer",
		Name:      "reconnect_circuit_state",
		Help:      "Current state of the peer reconnect circuit breaker (0=closed,1=open,2=half-open)",
	}, []string{"server_url"})

	// CircuitBreakerFailures counts reconnect attempts rejected outright
	// because the breaker for that server URL was open.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "peer",
		Name:      "reconnect_circuit_rejections_total",
		Help:      "Total reconnect attempts rejected by an open circuit breaker",
	}, []string{"server_url"})

	// DiscoveryHostsSeen counts distinct (ip, port) hosts the discoverer reports.
	DiscoveryHostsSeen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanforge",
		Subsystem: "discovery",
		Name:      "hosts_seen_total",
		Help:      "Total distinct hosts reported by the discoverer",
	})
)

// IncConnection records a newly accepted connection.
func IncConnection() { ActiveConnections.Inc() }

// DecConnection records a closed connection.
func DecConnection() { ActiveConnections.Dec() }
