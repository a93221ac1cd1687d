package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyhub/internal/adapter"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "netease", cfg.Crawler.DefaultSite)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.SiteDelay)

	netease, ok := cfg.Crawler.Site("netease")
	require.True(t, ok)
	assert.True(t, netease.Enabled)
	assert.Contains(t, netease.URLTemplates, adapter.CrawlSearch)

	kugou, ok := cfg.Crawler.Site("kugou")
	require.True(t, ok)
	assert.False(t, kugou.Enabled)

	_, ok = cfg.Crawler.Site("no-such-site")
	assert.False(t, ok)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\nlogging:\n  level: debug\n"), 0o644))

	t.Setenv("MELODYHUB_PORT", "9100")
	t.Setenv("CRAWLER_DEFAULT_SITE", "qq")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "qq", cfg.Crawler.DefaultSite)
	assert.NotEmpty(t, cfg.Crawler.Sites, "file without sites keeps the defaults")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
