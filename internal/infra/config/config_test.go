package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server: {}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/ws", cfg.Server.Path)
	assert.Equal(t, 5*time.Minute, cfg.HostGrace())
	assert.Equal(t, 3*time.Second, cfg.InvoicePoll())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9100"
  path: /rooms
rooms:
  host_grace_sec: 60
  invoice_poll_sec: 5
wallet:
  settings:
    timeout_sec: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "/rooms", cfg.Server.Path)
	assert.Equal(t, time.Minute, cfg.HostGrace())
	assert.Equal(t, 5*time.Second, cfg.InvoicePoll())
	assert.Equal(t, 20, cfg.Wallet.Settings["timeout_sec"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9100\"\n")
	t.Setenv("SATSBOX_ADDR", ":7000")
	t.Setenv("SATSBOX_WS_PATH", "/socket")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/socket", cfg.Server.Path)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "grace window too short",
			content: "rooms:\n  host_grace_sec: 5\n",
			wantErr: true,
		},
		{
			name:    "poll interval too long",
			content: "rooms:\n  invoice_poll_sec: 120\n",
			wantErr: true,
		},
		{
			name:    "bounds respected",
			content: "rooms:\n  host_grace_sec: 3600\n  invoice_poll_sec: 60\n",
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a mapping\n"))
	assert.Error(t, err)
}
