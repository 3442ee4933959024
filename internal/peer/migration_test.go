package peer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanforge/lanforge/internal/discovery"
	"github.com/lanforge/lanforge/internal/room"
)

// fakeDiscoveredHost uses distinct values for the announced coordinator
// port and the UDP source port so a test accidentally reading the wrong
// one fails loudly instead of passing by coincidence.
func fakeDiscoveredHost(roomId, ip string, announcedPort int) discovery.DiscoveredHost {
	return discovery.DiscoveredHost{
		HostInfo: discovery.HostInfo{
			RoomId:       roomId,
			JoinCode:     "ABC123",
			HostClientId: "client-B",
			Port:         announcedPort,
		},
		IP:   net.ParseIP(ip),
		Port: announcedPort + 1000, // ephemeral UDP source port, never the dial target
	}
}

func snapshotWithMembers(hostDeviceId room.DeviceId, members ...room.Member) *room.Snapshot {
	return &room.Snapshot{
		Room: room.Room{
			RoomId:       "room-1",
			JoinCode:     "ABC123",
			HostDeviceId: hostDeviceId,
			Members:      members,
		},
	}
}

func TestHandleTransportClosed_IdempotentUnderDoubleSignal(t *testing.T) {
	e, _ := newTestEngine()
	e.isHandlingLoss = true
	e.state = stateConnected

	e.handleTransportClosed()

	// The guard must short-circuit before any state transition happens.
	assert.Equal(t, stateConnected, e.state)
}

func TestHandleTransportClosed_NoSnapshotAbandons(t *testing.T) {
	e, _ := newTestEngine()
	e.snapshot = nil

	e.handleTransportClosed()

	assert.Equal(t, stateDead, e.state)
	assert.False(t, e.isHandlingLoss)
}

func TestHandleTransportClosed_NoSurvivorsAbandons(t *testing.T) {
	e, _ := newTestEngine()
	e.snapshot = snapshotWithMembers("dev-A", room.Member{DeviceId: "dev-A", JoinOrder: 0})

	e.handleTransportClosed()

	assert.Equal(t, stateDead, e.state)
}

// TestHandleTransportClosed_SoleSurvivorBecomesHost exercises the full
// Becoming-Host path against a real coordinator over loopback, mirroring
// the integration style of coordinator_test.go.
func TestHandleTransportClosed_SoleSurvivorBecomesHost(t *testing.T) {
	e, _ := newTestEngine()
	e.coordinatorPort = 18080
	e.snapshot = snapshotWithMembers("dev-old-host",
		room.Member{DeviceId: "dev-old-host", JoinOrder: 0, Name: "OldHost", Role: room.RoleHost},
		room.Member{DeviceId: "dev-A", JoinOrder: 1, Name: "Alice", Role: room.RoleMember},
	)

	e.handleTransportClosed()
	t.Cleanup(func() {
		if e.localCoordinator != nil {
			e.localCoordinator.Stop()
		}
		if e.announcer != nil {
			e.announcer.Stop()
		}
	})

	require.Equal(t, stateConnected, e.state)
	require.NotNil(t, e.localCoordinator)
	assert.True(t, e.announcer.Running())
	assert.False(t, e.isHandlingLoss)

	// The dead host must be pruned and dev-A installed as the new host,
	// not carried over as a ghost member.
	require.Len(t, e.snapshot.Room.Members, 1)
	assert.Equal(t, room.DeviceId("dev-A"), e.snapshot.Room.HostDeviceId)
	assert.Equal(t, room.DeviceId("dev-A"), e.snapshot.Room.Members[0].DeviceId)
	assert.Equal(t, room.RoleHost, e.snapshot.Room.Members[0].Role)
}

func TestPromoteSelfToHost_PrunesDeadHostAndInstallsWinner(t *testing.T) {
	snap := room.Snapshot{Room: room.Room{
		RoomId:       "room-1",
		HostDeviceId: "dev-dead",
		Members: []room.Member{
			{DeviceId: "dev-dead", JoinOrder: 0, Role: room.RoleHost},
			{DeviceId: "dev-B", JoinOrder: 1, Role: room.RoleMember},
		},
	}}

	promoted := promoteSelfToHost(snap, "dev-B")

	assert.Equal(t, room.DeviceId("dev-B"), promoted.Room.HostDeviceId)
	require.Len(t, promoted.Room.Members, 1)
	assert.Equal(t, room.DeviceId("dev-B"), promoted.Room.Members[0].DeviceId)
	assert.Equal(t, room.RoleHost, promoted.Room.Members[0].Role)
}

func TestHandleTransportClosed_OtherWinnerAwaitsHost(t *testing.T) {
	e, _ := newTestEngine()
	e.snapshot = snapshotWithMembers("dev-B",
		room.Member{DeviceId: "dev-B", JoinOrder: 0}, // the lost host, pruned from candidates
		room.Member{DeviceId: "dev-C", JoinOrder: 1}, // wins: earlier joinOrder than this engine
		room.Member{DeviceId: "dev-A", JoinOrder: 2}, // this engine's own deviceId; loses the election
	)

	e.handleTransportClosed()
	t.Cleanup(func() {
		if e.discoverer != nil {
			e.discoverer.Stop()
		}
		if e.awaitTimer != nil {
			e.awaitTimer.Stop()
		}
	})

	assert.Equal(t, stateAwaitingHost, e.state)
	assert.NotNil(t, e.discoverer)
	assert.NotNil(t, e.awaitTimer)
}

func TestOnHostDiscovered_IgnoredOutsideAwaitingHost(t *testing.T) {
	e, _ := newTestEngine()
	e.state = stateConnected

	before := e.state
	e.onHostDiscovered(fakeDiscoveredHost("room-1", "127.0.0.1", 9000), "room-1")
	assert.Equal(t, before, e.state)
}

func TestOnHostDiscovered_IgnoresRoomIdMismatch(t *testing.T) {
	e, _ := newTestEngine()
	e.state = stateAwaitingHost
	e.awaitTimer = time.AfterFunc(time.Hour, func() {})
	e.discoverer = nil
	t.Cleanup(func() { e.awaitTimer.Stop() })

	e.onHostDiscovered(fakeDiscoveredHost("some-other-room", "127.0.0.1", 9000), "room-1")
	assert.Equal(t, stateAwaitingHost, e.state)
}
