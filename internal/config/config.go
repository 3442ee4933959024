// Package config validates and loads the environment-derived configuration
// described in spec.md §6 (External Interfaces / Environment).
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	defaultServerURL    = "ws://localhost:8080"
	defaultAnnouncePort = 42069
	defaultCoordPort    = 8080
)

// Config holds the validated, process-wide configuration for a peer.
type Config struct {
	// DeviceId is stable across reconnects. If LANFORGE_DEVICE_ID is unset,
	// one is synthesized and held only for the process lifetime — spec.md
	// §6 explicitly rules out persisting it to disk.
	DeviceId string

	// ServerURL is the coordinator this peer dials first (LANFORGE_SERVER_URL).
	ServerURL string

	// ClientName is the display name offered on HELLO (LANFORGE_CLIENT_NAME).
	ClientName string

	// CoordinatorPort is the well-known reliable-transport port (default 8080).
	CoordinatorPort int

	// AnnouncePort is the well-known UDP discovery port (default 42069).
	AnnouncePort int
}

// Load reads the LanForge environment variables and returns a validated
// Config. A missing LANFORGE_DEVICE_ID is synthesized, never an error.
// An optional .env file is loaded first (grounded on the teacher's
// cmd/v1/session/main.go convenience load) purely for local development;
// it never overrides a variable already present in the real environment.
func Load() (*Config, error) {
	loadDotEnvBestEffort()

	cfg := &Config{
		CoordinatorPort: defaultCoordPort,
		AnnouncePort:    defaultAnnouncePort,
	}

	cfg.DeviceId = os.Getenv("LANFORGE_DEVICE_ID")
	if cfg.DeviceId == "" {
		cfg.DeviceId = uuid.NewString()
		slog.Info("synthesized device id for this process", "deviceId", redactSecret(cfg.DeviceId))
	}

	cfg.ServerURL = os.Getenv("LANFORGE_SERVER_URL")
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	if !isValidServerURL(cfg.ServerURL) {
		return nil, fmt.Errorf("LANFORGE_SERVER_URL must be a ws:// or wss:// URL with host:port (got %q)", cfg.ServerURL)
	}

	cfg.ClientName = os.Getenv("LANFORGE_CLIENT_NAME")

	logValidatedConfig(cfg)
	return cfg, nil
}

// loadDotEnvBestEffort tries a handful of relative .env locations, same
// search order style as the teacher's main.go. Absence is not an error.
func loadDotEnvBestEffort() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			slog.Debug("loaded environment from .env", "path", path)
			return
		}
	}
}

// isValidServerURL checks scheme + host:port shape without dialing.
func isValidServerURL(raw string) bool {
	rest, ok := strings.CutPrefix(raw, "ws://")
	if !ok {
		rest, ok = strings.CutPrefix(raw, "wss://")
	}
	if !ok {
		return false
	}
	return isValidHostPort(rest)
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	port, err := strconv.Atoi(portStr)
	return err == nil && port >= 1 && port <= 65535
}

func logValidatedConfig(cfg *Config) {
	slog.Info("configuration validated",
		"deviceId", redactSecret(cfg.DeviceId),
		"serverUrl", cfg.ServerURL,
		"clientName", cfg.ClientName,
		"coordinatorPort", cfg.CoordinatorPort,
		"announcePort", cfg.AnnouncePort,
	)
}

// redactSecret shows only the first 8 characters of a value worth keeping
// out of plain logs (device ids are stable and somewhat identifying).
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
