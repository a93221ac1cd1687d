package crawlermodule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyhub/internal/adapter"
)

func TestConfigWatcherTogglesSites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawler:\n  sites:\n    - name: netease\n      enabled: true\n"), 0o644))

	netease := adapter.NewNeteaseAdapter(adapter.SiteConfig{Name: "netease", Enabled: true})
	orch, _ := newTestOrchestrator(t)
	orch.adapters["netease"] = netease
	orch.order = append(orch.order, "netease")

	watcher, err := NewConfigWatcher(path, orch, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)

	require.NoError(t, os.WriteFile(path, []byte("crawler:\n  sites:\n    - name: netease\n      enabled: false\n"), 0o644))

	assert.Eventually(t, func() bool {
		return !netease.IsEnabled()
	}, 3*time.Second, 50*time.Millisecond, "watcher should disable the site after the config changes")
}
