package crawlermodule

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"melodyhub/internal/config"
)

// ConfigWatcher watches the config file and applies site enable/disable
// changes to the orchestrator without a restart. Only the per-site enabled
// flags are hot-reloaded; everything else still needs a restart.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	orch    *Orchestrator
	log     hclog.Logger
	done    chan struct{}
}

// NewConfigWatcher watches the directory containing path. Watching the
// directory instead of the file keeps working across editors that replace
// the file on save.
func NewConfigWatcher(path string, orch *Orchestrator, log hclog.Logger) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	cw := &ConfigWatcher{
		path:    filepath.Clean(path),
		watcher: w,
		orch:    orch,
		log:     log,
		done:    make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (w *ConfigWatcher) run() {
	// Editors fire several events per save; debounce before reloading.
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				close(w.done)
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				close(w.done)
				return
			}
			w.log.Warn("config watcher error", "error", err)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.log.Warn("config reload failed, keeping current settings", "error", err)
		return
	}
	for _, site := range cfg.Crawler.Sites {
		w.orch.SetSiteEnabled(site.Name, site.Enabled)
	}
	w.log.Info("config reloaded", "path", w.path)
}

// Stop halts the watcher.
func (w *ConfigWatcher) Stop() {
	w.watcher.Close()
	<-w.done
}
