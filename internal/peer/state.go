package peer

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/discovery"
	"github.com/lanforge/lanforge/internal/room"
)

// migrationState is the peer engine's place in the state machine described
// in spec.md §4.5. The zero value is stateClosed: no connection has been
// attempted yet.
type migrationState int

const (
	stateClosed migrationState = iota
	stateConnected
	stateServerLost
	stateBecomingHost
	stateAwaitingHost
	stateDead
)

func (s migrationState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateConnected:
		return "connected"
	case stateServerLost:
		return "server-lost"
	case stateBecomingHost:
		return "becoming-host"
	case stateAwaitingHost:
		return "awaiting-host"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// wireConn is the subset of *websocket.Conn the engine depends on, narrowed
// to an interface so tests can substitute a fake transport.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

var _ wireConn = (*websocket.Conn)(nil)

// Callbacks lets the host application (the CLI, a UI) observe events the
// engine surfaces without polling. Every field is optional; nil callbacks
// are simply skipped.
type Callbacks struct {
	OnChat     func(fromDeviceId, fromName, text string, timestamp int64)
	OnError    func(code, reason string)
	OnSnapshot func(room.Snapshot)
	OnKicked   func(reason string)
	OnState    func(name string)
}

// Engine is one peer's view of a session: its stable identity, its current
// connection to whichever coordinator is presently hosting, the last
// replicated snapshot, and the migration state machine that keeps the
// session alive across a host's disappearance.
type Engine struct {
	log *zap.Logger

	deviceId room.DeviceId
	name     string

	callbacks Callbacks

	// coordinatorPort is the well-known port this peer binds when it
	// becomes host. Overridden in tests to avoid colliding with a real
	// lanforge instance on the same machine.
	coordinatorPort int

	actions chan func()
	closed  chan struct{}
	once    sync.Once

	conn      wireConn
	serverURL string
	clientId  string
	roomId    room.RoomId
	joinCode  room.JoinCode

	snapshot *room.Snapshot
	state    migrationState

	// isHandlingLoss guards the migration path against running twice when
	// the transport reports both a close and an error for one disconnect.
	isHandlingLoss bool

	localCoordinator coordinatorHandle
	announcer        *discovery.Announcer
	discoverer       *discovery.Discoverer
	awaitTimer       *time.Timer

	// newCoordinator builds the self-hosted coordinator on Becoming-Host.
	// New sets it to build a real coordinator.Coordinator; a test can
	// replace it with a fake.
	newCoordinator func(*zap.Logger) coordinatorHandle

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
}

// coordinatorHandle is the narrow surface of *coordinator.Coordinator the
// engine needs, kept as an interface so a fake can stand in for it. The
// Becoming-Host test in migration_test.go uses a real coordinator.
type coordinatorHandle interface {
	Restore(room.Snapshot) error
	Start(addr string) error
	Addr() string
	Stop()
}
