// Package peer implements the session-continuity engine (C5): a stable
// identity and connection lifecycle layered over the wire codec, plus the
// migration state machine that promotes a surviving peer to host when the
// coordinator it was talking to disappears.
package peer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/codec"
	"github.com/lanforge/lanforge/internal/coordinator"
	"github.com/lanforge/lanforge/internal/correlation"
	"github.com/lanforge/lanforge/internal/logging"
	"github.com/lanforge/lanforge/internal/metrics"
	"github.com/lanforge/lanforge/internal/room"
)

const defaultCoordinatorPort = 8080

// New returns an Engine for deviceId/name, not yet connected. Call Start to
// dial a coordinator.
func New(log *zap.Logger, deviceId, name string, callbacks Callbacks) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:             log,
		deviceId:        room.DeviceId(deviceId),
		name:            name,
		callbacks:       callbacks,
		coordinatorPort: defaultCoordinatorPort,
		actions:         make(chan func(), 64),
		closed:          make(chan struct{}),
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
		newCoordinator: func(log *zap.Logger) coordinatorHandle {
			return coordinator.New(log)
		},
	}
}

// Start dials serverURL and begins the engine's event loop. It blocks until
// the initial connection attempt completes (success or failure).
func (e *Engine) Start(serverURL string) error {
	go e.loop()

	result := make(chan error, 1)
	e.actions <- func() {
		result <- e.dial(serverURL)
	}
	return <-result
}

// Stop tears down the current connection, any self-hosted coordinator, and
// the event loop. Safe to call once.
func (e *Engine) Stop() {
	e.once.Do(func() {
		done := make(chan struct{})
		e.actions <- func() {
			e.teardownConnection()
			if e.localCoordinator != nil {
				e.localCoordinator.Stop()
				e.localCoordinator = nil
			}
			if e.announcer != nil {
				e.announcer.Stop()
			}
			if e.discoverer != nil {
				e.discoverer.Stop()
			}
			close(done)
		}
		<-done
		close(e.closed)
	})
}

func (e *Engine) loop() {
	for {
		select {
		case <-e.closed:
			return
		case action := <-e.actions:
			action()
		}
	}
}

// CreateRoom asks the connected coordinator to create a fresh room with
// this device as host. Dropped with a warning if not connected.
func (e *Engine) CreateRoom(maxPlayers int) {
	e.actions <- func() {
		if !e.connectedLocked() {
			e.logNotConnected("CREATE_ROOM")
			return
		}
		e.sendLocked(codec.NewFrame(codec.FrameCreateRoom, uuid.NewString(), e.clientId, codec.CreateRoomPayload{
			MaxPlayers: maxPlayers,
		}))
	}
}

// JoinRoom asks the connected coordinator to join the room behind joinCode.
func (e *Engine) JoinRoom(joinCode string) {
	e.actions <- func() {
		if !e.connectedLocked() {
			e.logNotConnected("JOIN_ROOM")
			return
		}
		e.sendLocked(codec.NewFrame(codec.FrameJoinRoom, uuid.NewString(), e.clientId, codec.JoinRoomPayload{
			JoinCode: joinCode,
		}))
	}
}

// SendChat sends a chat message to the room this peer currently belongs to.
func (e *Engine) SendChat(text string) {
	e.actions <- func() {
		if !e.connectedLocked() {
			e.logNotConnected("CHAT")
			return
		}
		e.sendLocked(codec.NewFrame(codec.FrameChat, uuid.NewString(), e.clientId, codec.ChatSendPayload{Text: text}))
	}
}

// Kick asks the coordinator to remove targetDeviceId, valid only if this
// peer is currently host.
func (e *Engine) Kick(targetDeviceId string) {
	e.actions <- func() {
		if !e.connectedLocked() {
			e.logNotConnected("KICK")
			return
		}
		e.sendLocked(codec.NewFrame(codec.FrameKick, uuid.NewString(), e.clientId, codec.KickPayload{
			TargetDeviceId: targetDeviceId,
		}))
	}
}

// connectedLocked reports whether there is a live transport. Must only be
// called from the event loop.
func (e *Engine) connectedLocked() bool {
	return e.conn != nil && e.state == stateConnected
}

func (e *Engine) logNotConnected(op string) {
	logging.Warn(context.Background(), "dropped peer operation: not connected",
		zap.String("op", op), zap.String("device_id", string(e.deviceId)))
}

func (e *Engine) sendLocked(f codec.Frame) {
	if err := e.conn.WriteMessage(websocket.TextMessage, codec.Encode(f)); err != nil {
		logging.Warn(context.Background(), "write failed, treating as transport close", zap.Error(err))
		e.handleTransportClosed()
	}
}

// dial connects to addr, wrapped in the circuit breaker for that server
// URL, sends HELLO, and starts the read pump. Must only be called from the
// event loop.
func (e *Engine) dial(addr string) error {
	url := fmt.Sprintf("ws://%s/ws", addr)
	header := http.Header{correlation.HeaderXDeviceID: []string{string(e.deviceId)}}
	result, err := e.breakerFor(addr).Execute(func() (interface{}, error) {
		conn, _, dialErr := websocket.DefaultDialer.Dial(url, header)
		return conn, dialErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues(addr).Inc()
		}
		logging.Warn(context.Background(), "dial failed", zap.String("addr", addr), zap.Error(err))
		return err
	}

	e.conn = result.(*websocket.Conn)
	e.serverURL = addr
	e.clientId = codec.ClientIDPending
	e.setState(stateConnected)

	go e.readPump(e.conn)

	e.sendLocked(codec.NewFrame(codec.FrameHello, uuid.NewString(), codec.ClientIDPending, codec.HelloPayload{
		DeviceId: string(e.deviceId),
		Name:     e.name,
	}))
	return nil
}

func (e *Engine) teardownConnection() {
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
}

func (e *Engine) setState(s migrationState) {
	e.state = s
	if e.callbacks.OnState != nil {
		e.callbacks.OnState(s.String())
	}
}

// readPump is the engine's sole reader goroutine; it decodes frames off
// the wire and hands them to the event loop, exactly as the coordinator's
// readPump hands decoded frames to its dispatch loop.
func (e *Engine) readPump(conn wireConn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			e.actions <- func() { e.handleTransportClosed() }
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frame, err := codec.Decode(data)
		if err != nil {
			logging.Warn(context.Background(), "dropped malformed frame from coordinator", zap.Error(err))
			continue
		}
		e.actions <- func() { e.dispatch(frame) }
	}
}
