package discovery

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/metrics"
)

// seenKey identifies a discovery window entry: one per (ip, port) the
// discoverer has already reported, so repeated datagrams from the same
// sender only refresh LastSeen rather than re-notifying the callback.
type seenKey struct {
	ip   string
	port int
}

// OnDiscovered is called the first time a given (ip, port) is observed in
// the current discovery window. It must not block; the discoverer calls
// it synchronously from its single receive goroutine.
type OnDiscovered func(DiscoveredHost)

// Discoverer listens for LANFORGE_HOST datagrams and reports each
// distinct sender once. At most one is active per peer; state (the seen
// table) is cleared on Stop, so a fresh Start begins a new discovery
// window.
type Discoverer struct {
	log *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    *net.UDPConn
	wg      sync.WaitGroup
	seen    map[seenKey]*DiscoveredHost
}

// NewDiscoverer returns a stopped Discoverer.
func NewDiscoverer(log *zap.Logger) *Discoverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Discoverer{log: log}
}

// Start binds the discovery port and begins calling onHost for each
// newly observed (ip, port). A second Start while already running is a
// no-op.
func (d *Discoverer) Start(onHost OnDiscovered) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	laddr, err := net.ResolveUDPAddr("udp4", ":"+strconv.Itoa(Port))
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.conn = conn
	d.running = true
	d.seen = make(map[seenKey]*DiscoveredHost)

	d.wg.Add(1)
	go d.loop(ctx, conn, onHost)

	return nil
}

func (d *Discoverer) loop(ctx context.Context, conn *net.UDPConn, onHost OnDiscovered) {
	defer d.wg.Done()

	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				d.log.Warn("discovery: read failed", zap.Error(err))
				continue
			}
		}

		info, ok := decodeHost(string(buf[:n]))
		if !ok {
			continue
		}

		d.record(addr, info, onHost)
	}
}

func (d *Discoverer) record(addr *net.UDPAddr, info HostInfo, onHost OnDiscovered) {
	key := seenKey{ip: addr.IP.String(), port: addr.Port}

	d.mu.Lock()
	existing, found := d.seen[key]
	now := time.Now()
	if found {
		existing.LastSeen = now
		d.mu.Unlock()
		return
	}

	host := DiscoveredHost{
		HostInfo: info,
		IP:       addr.IP,
		Port:     addr.Port,
		LastSeen: now,
	}
	d.seen[key] = &host
	d.mu.Unlock()

	metrics.DiscoveryHostsSeen.Inc()
	onHost(host)
}

// Stop closes the socket and clears the discovery window. Calling Stop
// on an already-stopped Discoverer is a no-op.
func (d *Discoverer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	conn := d.conn
	d.cancel = nil
	d.conn = nil
	d.mu.Unlock()

	cancel()
	conn.Close()
	d.wg.Wait()

	d.mu.Lock()
	d.seen = nil
	d.mu.Unlock()
}

// Running reports whether the discoverer is currently listening.
func (d *Discoverer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
