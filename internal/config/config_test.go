package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags(c *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	c := Default()
	fs := newFlags(c)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, c.Load(fs))

	require.Equal(t, ":8080", c.Listen)
	require.Equal(t, "info", c.LogLevel)
	require.Equal(t, 5*time.Second, c.PollInterval)
	require.Equal(t, StoreFile, c.Store.Backend)
	require.Equal(t, "azureiotcentral.com", c.Azure.CentralDomain)
}

func TestLoad_FileOverlay(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
log_level: debug
poll_interval: 2s
store:
  backend: sqlite
  dir: /var/lib/migrator
azure:
  tenant_id: contoso.onmicrosoft.com
  central_domain: azureiotcentral.us
`)

	c := Default()
	fs := newFlags(c)
	require.NoError(t, fs.Parse([]string{"--config", path}))
	require.NoError(t, c.Load(fs))

	require.Equal(t, ":9090", c.Listen)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, 2*time.Second, c.PollInterval)
	require.Equal(t, StoreSQLite, c.Store.Backend)
	require.Equal(t, "/var/lib/migrator", c.Store.Dir)
	require.Equal(t, "contoso.onmicrosoft.com", c.Azure.TenantID)
	require.Equal(t, "azureiotcentral.us", c.Azure.CentralDomain)
}

func TestLoad_FlagsWin(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\nstore:\n  backend: sqlite\n")

	c := Default()
	fs := newFlags(c)
	require.NoError(t, fs.Parse([]string{"--config", path, "--listen", ":7070", "--store", "memory"}))
	require.NoError(t, c.Load(fs))

	require.Equal(t, ":7070", c.Listen)
	require.Equal(t, StoreMemory, c.Store.Backend)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
	}{
		{
			name: "missing file",
			args: func(t *testing.T) []string {
				return []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}
			},
		},
		{
			name: "bad yaml",
			args: func(t *testing.T) []string {
				return []string{"--config", writeConfig(t, "listen: [")}
			},
		},
		{
			name: "unknown backend",
			args: func(t *testing.T) []string { return []string{"--store", "redis"} },
		},
		{
			name: "bad log level",
			args: func(t *testing.T) []string { return []string{"--log-level", "loud"} },
		},
		{
			name: "zero poll interval",
			args: func(t *testing.T) []string { return []string{"--poll-interval", "0s"} },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			fs := newFlags(c)
			require.NoError(t, fs.Parse(tc.args(t)))
			require.Error(t, c.Load(fs))
		})
	}
}
