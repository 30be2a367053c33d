package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VERCEL", "")
	t.Setenv("DISABLE_LOCAL_TOOLS", "")
	t.Setenv("WORK_DIR", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	wd, _ := os.Getwd()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "2M", cfg.BodyLimit)
	assert.False(t, cfg.DisableLocalTools)
	assert.Equal(t, wd, cfg.WorkDir)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = ":9000"
work_dir = "/srv/chat"
cors_origins = ["http://localhost:3000"]
upstream_header_timeout = "30s"
`), 0o644))

	t.Setenv("VERCEL", "")
	t.Setenv("ADDR", ":9100")
	t.Setenv("WORK_DIR", "")
	t.Setenv("DISABLE_LOCAL_TOOLS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "/srv/chat", cfg.WorkDir)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.UpstreamHeaderTimeout)
	assert.True(t, cfg.DisableLocalTools)
}

func TestHostedDeploymentDisablesTools(t *testing.T) {
	t.Setenv("VERCEL", "1")
	t.Setenv("DISABLE_LOCAL_TOOLS", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.DisableLocalTools)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("addr = "), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.UpstreamHeaderTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.CORSOrigins = nil
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogMaxBackups = -1
	assert.Error(t, cfg.Validate())
}
