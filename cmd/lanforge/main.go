// Command lanforge is a thin illustrative client for the session-continuity
// engine: host a room, discover rooms on the local link, or join one by
// code. It exists to exercise internal/peer end to end, not as a polished
// product surface.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/config"
	"github.com/lanforge/lanforge/internal/coordinator"
	"github.com/lanforge/lanforge/internal/discovery"
	"github.com/lanforge/lanforge/internal/logging"
	"github.com/lanforge/lanforge/internal/peer"
	"github.com/lanforge/lanforge/internal/room"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lanforge host [name] | discover | join <name> <joinCode>")
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	if err := logging.Initialize(false); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		return 1
	}
	log := logging.GetLogger()

	switch args[0] {
	case "host":
		name := cfg.ClientName
		if len(args) > 1 {
			name = args[1]
		}
		if name == "" {
			name = "Host"
		}
		return runHost(cfg, log, name)
	case "discover":
		return runDiscover(log)
	case "join":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: lanforge join <name> <joinCode>")
			return 1
		}
		return runJoin(cfg, log, args[1], args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		return 1
	}
}

func runHost(cfg *config.Config, log *zap.Logger, name string) int {
	co := coordinator.New(log)
	if err := co.Start(fmt.Sprintf(":%d", cfg.CoordinatorPort)); err != nil {
		slog.Error("failed to start coordinator", "error", err)
		return 1
	}
	defer co.Stop()

	var announceOnce sync.Once
	engine := peer.New(log, cfg.DeviceId, name, peer.Callbacks{
		OnSnapshot: func(snap room.Snapshot) {
			announceOnce.Do(func() {
				fmt.Printf("Room created: joinCode=%s\n", snap.Room.JoinCode)
			})
		},
		OnChat:  printChat,
		OnError: printError,
		OnKicked: func(reason string) {
			fmt.Printf("Kicked: %s\n", reason)
		},
	})
	defer engine.Stop()

	if err := engine.Start(fmt.Sprintf("127.0.0.1:%d", cfg.CoordinatorPort)); err != nil {
		slog.Error("failed to connect to local coordinator", "error", err)
		return 1
	}
	engine.CreateRoom(0)

	return runSession(engine)
}

func runDiscover(log *zap.Logger) int {
	d := discovery.NewDiscoverer(log)
	err := d.Start(func(h discovery.DiscoveredHost) {
		fmt.Printf("Found Room: roomId=%s joinCode=%s at %s:%d\n", h.RoomId, h.JoinCode, h.IP, h.HostInfo.Port)
	})
	if err != nil {
		slog.Error("failed to start discoverer", "error", err)
		return 1
	}
	time.Sleep(5 * time.Second)
	d.Stop()
	return 0
}

func runJoin(cfg *config.Config, log *zap.Logger, name, joinCode string) int {
	engine := peer.New(log, cfg.DeviceId, name, peer.Callbacks{
		OnSnapshot: func(snap room.Snapshot) {
			fmt.Printf("Joined room: joinCode=%s members=%d\n", snap.Room.JoinCode, len(snap.Room.Members))
		},
		OnChat:  printChat,
		OnError: printError,
		OnKicked: func(reason string) {
			fmt.Printf("Kicked: %s\n", reason)
		},
	})
	defer engine.Stop()

	serverURL := strings.TrimPrefix(strings.TrimPrefix(cfg.ServerURL, "ws://"), "wss://")
	if err := engine.Start(serverURL); err != nil {
		slog.Error("failed to connect", "error", err)
		return 1
	}
	engine.JoinRoom(joinCode)

	return runSession(engine)
}

// runSession reads stdin lines until EOF or interrupt: bare text is sent as
// chat, "/kick <deviceId>" issues a kick.
func runSession(engine *peer.Engine) int {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-quit:
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			handleLine(engine, line)
		}
	}
}

func handleLine(engine *peer.Engine, line string) {
	if target, ok := strings.CutPrefix(line, "/kick "); ok {
		engine.Kick(strings.TrimSpace(target))
		return
	}
	if line == "" {
		return
	}
	engine.SendChat(line)
}

func printChat(fromDeviceId, fromName, text string, timestamp int64) {
	fmt.Printf("%s: %s\n", fromName, text)
}

func printError(code, reason string) {
	fmt.Printf("Error[%s]: %s\n", code, reason)
}
