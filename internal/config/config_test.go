package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LANFORGE_DEVICE_ID", "LANFORGE_SERVER_URL", "LANFORGE_CLIENT_NAME"} {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, orig)
			}
		})
	}
}

func TestLoad_SynthesizesDeviceId(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DeviceId)
	assert.Equal(t, defaultServerURL, cfg.ServerURL)
}

func TestLoad_UsesProvidedDeviceId(t *testing.T) {
	clearEnv(t)
	os.Setenv("LANFORGE_DEVICE_ID", "dev-A")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev-A", cfg.DeviceId)
}

func TestLoad_DefaultPorts(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.CoordinatorPort)
	assert.Equal(t, 42069, cfg.AnnouncePort)
}

func TestLoad_InvalidServerURL(t *testing.T) {
	clearEnv(t)
	os.Setenv("LANFORGE_SERVER_URL", "not-a-url")

	_, err := Load()
	require.Error(t, err)
}

func TestIsValidServerURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"valid ws", "ws://localhost:8080", true},
		{"valid wss", "wss://192.168.1.5:9000", true},
		{"missing port", "ws://localhost", false},
		{"missing scheme", "localhost:8080", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidServerURL(tt.in))
		})
	}
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, "***", redactSecret("short"))
	assert.Equal(t, "12345678***", redactSecret("123456789"))
}
