package peer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/discovery"
	"github.com/lanforge/lanforge/internal/logging"
	"github.com/lanforge/lanforge/internal/metrics"
	"github.com/lanforge/lanforge/internal/room"
)

// awaitingHostTimeout bounds how long a peer in Awaiting-Host waits for a
// matching discovery announcement before falling back to sole-survivor
// self-promotion.
const awaitingHostTimeout = 10 * time.Second

// handleTransportClosed runs the migration state machine's entry point
// (spec.md §4.5 state 1→2). isHandlingLoss makes this idempotent against a
// transport layer that reports both a close and an error for one outage.
func (e *Engine) handleTransportClosed() {
	if e.isHandlingLoss {
		return
	}
	e.isHandlingLoss = true
	e.setState(stateServerLost)
	metrics.MigrationsStarted.Inc()
	e.teardownConnection()

	if e.snapshot == nil || e.clientId == "" {
		logging.Warn(context.Background(), "no cached snapshot or clientId, abandoning session")
		e.setState(stateDead)
		metrics.MigrationOutcomes.WithLabelValues("abandoned").Inc()
		e.isHandlingLoss = false
		return
	}

	winner, ok := room.Elect(e.snapshot.Room.Members, e.snapshot.Room.HostDeviceId)
	if !ok {
		logging.Warn(context.Background(), "election found no survivors, abandoning session")
		e.setState(stateDead)
		metrics.MigrationOutcomes.WithLabelValues("abandoned").Inc()
		e.isHandlingLoss = false
		return
	}

	if winner == e.deviceId {
		e.becomeHost()
	} else {
		e.awaitHost()
	}
}

// becomeHost implements state 3: start a local coordinator seeded with the
// cached snapshot, announce it, then reconnect to it as a regular client.
func (e *Engine) becomeHost() {
	e.setState(stateBecomingHost)

	promoted := promoteSelfToHost(*e.snapshot, e.deviceId)
	e.snapshot = &promoted

	co := e.newCoordinator(e.log)
	if err := co.Restore(promoted); err != nil {
		logging.Warn(context.Background(), "restoring snapshot into self-hosted coordinator failed", zap.Error(err))
		e.setState(stateDead)
		metrics.MigrationOutcomes.WithLabelValues("abandoned").Inc()
		e.isHandlingLoss = false
		return
	}
	if err := co.Start(fmt.Sprintf(":%d", e.coordinatorPort)); err != nil {
		logging.Warn(context.Background(), "starting self-hosted coordinator failed", zap.Error(err))
		e.setState(stateDead)
		metrics.MigrationOutcomes.WithLabelValues("abandoned").Inc()
		e.isHandlingLoss = false
		return
	}
	e.localCoordinator = co

	e.announcer = discovery.NewAnnouncer(e.log)
	_ = e.announcer.Start(hostInfoFor(promoted, e.clientId, e.coordinatorPort))

	e.isHandlingLoss = false
	metrics.MigrationOutcomes.WithLabelValues("became_host").Inc()

	// Dial the loopback address explicitly rather than co.Addr(), which may
	// report the wildcard bind address rather than something connectable.
	if err := e.dial(fmt.Sprintf("127.0.0.1:%d", e.coordinatorPort)); err != nil {
		logging.Warn(context.Background(), "dialing self-hosted coordinator failed", zap.Error(err))
		e.setState(stateDead)
	}
}

// awaitHost implements state 4: listen for a matching announcement and
// reconnect to it, falling back to self-promotion if none arrives within
// awaitingHostTimeout.
func (e *Engine) awaitHost() {
	e.setState(stateAwaitingHost)

	cachedRoomId := e.roomId
	e.discoverer = discovery.NewDiscoverer(e.log)

	e.awaitTimer = time.AfterFunc(awaitingHostTimeout, func() {
		e.actions <- func() { e.onAwaitTimeout() }
	})

	_ = e.discoverer.Start(func(h discovery.DiscoveredHost) {
		e.actions <- func() { e.onHostDiscovered(h, cachedRoomId) }
	})
}

func (e *Engine) onHostDiscovered(h discovery.DiscoveredHost, cachedRoomId room.RoomId) {
	if e.state != stateAwaitingHost {
		return
	}
	if cachedRoomId != "" && room.RoomId(h.RoomId) != cachedRoomId {
		return
	}

	e.awaitTimer.Stop()
	e.discoverer.Stop()
	e.isHandlingLoss = false
	metrics.MigrationOutcomes.WithLabelValues("reconnected").Inc()

	addr := fmt.Sprintf("%s:%d", h.IP.String(), h.HostInfo.Port)
	if err := e.dial(addr); err != nil {
		logging.Warn(context.Background(), "reconnect to discovered host failed", zap.Error(err))
		e.setState(stateDead)
	}
}

func (e *Engine) onAwaitTimeout() {
	if e.state != stateAwaitingHost {
		return
	}
	logging.Warn(context.Background(), "no matching host discovered within timeout, becoming host (sole-survivor)")
	e.discoverer.Stop()
	e.becomeHost()
}

func hostInfoFor(snap room.Snapshot, hostClientId string, port int) discovery.HostInfo {
	return discovery.HostInfo{
		RoomId:       string(snap.Room.RoomId),
		JoinCode:     string(snap.Room.JoinCode),
		HostClientId: hostClientId,
		Port:         port,
	}
}

// promoteSelfToHost drops the lost host from the member list and installs
// deviceId as the new host, so a coordinator restored from the result
// never reports a dead host as hostDeviceId or as a ghost member.
func promoteSelfToHost(snap room.Snapshot, deviceId room.DeviceId) room.Snapshot {
	lostHost := snap.Room.HostDeviceId
	members := make([]room.Member, 0, len(snap.Room.Members))
	for _, m := range snap.Room.Members {
		if m.DeviceId == lostHost {
			continue
		}
		if m.DeviceId == deviceId {
			m.Role = room.RoleHost
		}
		members = append(members, m)
	}
	snap.Room.Members = members
	snap.Room.HostDeviceId = deviceId
	return snap
}
