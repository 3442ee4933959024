package discovery

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Announcer periodically broadcasts this peer's hosted-room presence on
// the link-local discovery port. At most one is active at a time; a
// second Start call while already running is a no-op, matching the
// process-wide singleton lifecycle the source used to hold as module
// state (spec.md §9 re-architects that into an instance owned by the
// peer engine instead).
type Announcer struct {
	log *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    *net.UDPConn
	wg      sync.WaitGroup
}

// NewAnnouncer returns a stopped Announcer.
func NewAnnouncer(log *zap.Logger) *Announcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Announcer{log: log}
}

// Start begins broadcasting info every 3s until Stop is called. It
// refuses to start with an incomplete HostInfo.
func (a *Announcer) Start(info HostInfo) error {
	if err := info.valid(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	raddr, err := broadcastAddr(Port)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.conn = conn
	a.running = true

	a.wg.Add(1)
	go a.loop(ctx, conn, info)

	return nil
}

func (a *Announcer) loop(ctx context.Context, conn *net.UDPConn, info HostInfo) {
	defer a.wg.Done()

	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	payload := []byte(info.encode())
	a.send(conn, payload)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.send(conn, payload)
		}
	}
}

// send writes one datagram, logging and continuing on transient error —
// a single dropped broadcast is never fatal to the announcer.
func (a *Announcer) send(conn *net.UDPConn, payload []byte) {
	if _, err := conn.Write(payload); err != nil {
		a.log.Warn("discovery: announce send failed", zap.Error(err))
	}
}

// Stop cancels the broadcast loop and releases the socket. Calling Stop
// on an already-stopped Announcer is a no-op.
func (a *Announcer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel := a.cancel
	conn := a.conn
	a.cancel = nil
	a.conn = nil
	a.mu.Unlock()

	cancel()
	conn.Close()
	a.wg.Wait()
}

// Running reports whether the announcer is currently broadcasting.
func (a *Announcer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// enableBroadcast sets SO_BROADCAST on the socket. Without it, sending a
// datagram to 255.255.255.255 is rejected by the kernel (EACCES on
// Linux); Go's net package does not set this by default for a connected
// UDP socket.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
