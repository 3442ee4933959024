// Package coordinator implements the reliable-transport listener that
// owns the authoritative room state (C4): it accepts connections, runs
// the HELLO/WELCOME handshake, dispatches control frames to internal/room,
// and broadcasts snapshots on every observable mutation. All mutation is
// funnelled through a single serialized loop (the event-loop-as-lock
// model from spec.md §5) so the room model and the connection registry
// never need their own locks.
package coordinator

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/codec"
	"github.com/lanforge/lanforge/internal/correlation"
	"github.com/lanforge/lanforge/internal/health"
	"github.com/lanforge/lanforge/internal/logging"
	"github.com/lanforge/lanforge/internal/metrics"
	"github.com/lanforge/lanforge/internal/room"
)

const (
	heartbeatInterval = 5 * time.Second
	heartbeatTimeout  = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var _ health.StatusSource = (*Coordinator)(nil)

// Coordinator owns one listening reliable-transport endpoint and the
// room(s) it hosts.
type Coordinator struct {
	log   *zap.Logger
	store *room.Store

	// actions serializes every mutation: frame dispatch, connection
	// register/unregister, and heartbeat ticks all run as closures
	// submitted here, never touching connections or store from another
	// goroutine.
	actions     chan func()
	connections map[string]*connection
	roomId      room.RoomId

	srv        *http.Server
	listenAddr string

	stopOnce chan struct{}
}

// New returns a Coordinator with no room yet hosted. Call Restore to seed
// one from a prior snapshot, or let the first CREATE_ROOM create one.
func New(log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		log:         log,
		store:       room.NewStore(),
		actions:     make(chan func(), 256),
		connections: make(map[string]*connection),
		stopOnce:    make(chan struct{}),
	}
}

// Restore seeds the coordinator with a previously captured snapshot
// before it starts accepting connections. Existing member clientId
// values are provisional until each device reconnects and re-HELLOs.
func (co *Coordinator) Restore(snap room.Snapshot) error {
	co.roomId = snap.Room.RoomId
	metrics.ActiveRooms.Set(1)
	return co.store.Restore(snap)
}

// Start binds addr and begins accepting connections, running the
// dispatch loop and heartbeat ticker in background goroutines. It
// returns once the HTTP listener is ready.
func (co *Coordinator) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), correlation.CorrelationID())

	h := health.NewHandler(co)
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/ws", co.serveWs)

	co.srv = &http.Server{Addr: addr, Handler: r}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	co.listenAddr = ln.Addr().String()

	go co.runLoop()
	go co.heartbeatLoop()
	go func() {
		if err := co.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(context.Background(), "coordinator listener stopped", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the listener actually bound, useful when
// Start was called with a ":0" ephemeral port.
func (co *Coordinator) Addr() string {
	return co.listenAddr
}

// Stop closes the listener and every connection, then stops the
// dispatch loop. It is safe to call once; a second call is a no-op.
func (co *Coordinator) Stop() {
	select {
	case <-co.stopOnce:
		return
	default:
		close(co.stopOnce)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if co.srv != nil {
		co.srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	co.actions <- func() {
		for _, c := range co.connections {
			close(c.send)
			c.conn.Close()
		}
		co.connections = make(map[string]*connection)
		close(done)
	}
	<-done
}

// Ready implements health.StatusSource: the coordinator is ready once it
// is hosting a room.
func (co *Coordinator) Ready() bool {
	return co.roomId != ""
}

// ActiveConnections implements health.StatusSource.
func (co *Coordinator) ActiveConnections() int {
	result := make(chan int, 1)
	co.actions <- func() { result <- len(co.connections) }
	return <-result
}

func (co *Coordinator) runLoop() {
	for action := range co.actions {
		action()
	}
}

func (co *Coordinator) serveWs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	clientId := uuid.NewString()
	cn := newConnection(conn, clientId)
	metrics.IncConnection()

	co.actions <- func() {
		co.connections[clientId] = cn
	}

	go cn.writePump()
	co.readPump(cn)
}

func (co *Coordinator) readPump(cn *connection) {
	defer func() {
		cn.conn.Close()
		metrics.DecConnection()
		done := make(chan struct{})
		co.actions <- func() {
			co.handleDisconnect(cn)
			delete(co.connections, cn.clientId)
			close(done)
		}
		<-done
	}()

	for {
		msgType, data, err := cn.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		cn.touch()
		frame, err := codec.Decode(data)
		if err != nil {
			co.sendError(cn, "", "MALFORMED_FRAME", err.Error())
			continue
		}

		done := make(chan struct{})
		co.actions <- func() {
			co.dispatch(cn, frame)
			close(done)
		}
		<-done
	}
}
