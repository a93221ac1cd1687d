// Package crawlermodule owns the crawl subsystem: the single-site runner, the
// multi-site orchestrator, duplicate detection and the HTTP control surface.
package crawlermodule

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"melodyhub/internal/adapter"
	"melodyhub/internal/config"
	"melodyhub/internal/events"
	"melodyhub/internal/logger"
	"melodyhub/internal/modules/modulemanager"
	"melodyhub/internal/modules/musicmodule"
)

const (
	ModuleID   = "system.crawler"
	ModuleName = "Music Crawler"
)

// Module wires the crawl subsystem together from the crawler configuration.
type Module struct {
	id   string
	name string
	core bool

	cfg        config.CrawlerConfig
	configPath string

	runner       *CrawlRunner
	orchestrator *Orchestrator
	detector     *DuplicateDetector
	throttler    *LoadThrottler
	watcher      *ConfigWatcher
	log          hclog.Logger
}

// Register registers this module with the module system. configPath may be
// empty, which disables config hot-reload.
func Register(cfg config.CrawlerConfig, configPath string) {
	modulemanager.Register(&Module{
		id:         ModuleID,
		name:       ModuleName,
		core:       true,
		cfg:        cfg,
		configPath: configPath,
		log:        logger.Named("crawler"),
	})
}

func (m *Module) ID() string   { return m.id }
func (m *Module) Name() string { return m.name }
func (m *Module) Core() bool   { return m.core }

// Migrate is a no-op; the song table belongs to the music module.
func (m *Module) Migrate(*gorm.DB) error { return nil }

// Init builds the adapters, detector, runner and orchestrator. It requires
// the music module's store, so the music module must register first.
func (m *Module) Init() error {
	store := musicmodule.GetStore()
	if store == nil {
		return fmt.Errorf("crawler module requires the music module to be loaded first")
	}
	bus := events.GetGlobalEventBus()

	adapters := buildAdapters(m.cfg.Sites)
	if len(adapters) == 0 {
		return fmt.Errorf("no site adapters configured")
	}

	m.detector = NewDuplicateDetector(store, m.log.Named("dedup"))
	m.throttler = NewLoadThrottler(m.log.Named("throttle"))
	m.orchestrator = NewOrchestrator(adapters, store, m.detector, bus, m.throttler, m.cfg.SiteDelay, m.log.Named("orchestrator"))

	defaultAdapter, ok := m.orchestrator.Adapter(m.cfg.DefaultSite)
	if !ok {
		defaultAdapter = adapters[0]
		m.log.Warn("default site not configured, falling back",
			"requested", m.cfg.DefaultSite, "using", defaultAdapter.SiteName())
	}
	m.runner = NewCrawlRunner(defaultAdapter, store, bus, m.log.Named("runner"))

	if m.configPath != "" {
		watcher, err := NewConfigWatcher(m.configPath, m.orchestrator, m.log.Named("watcher"))
		if err != nil {
			m.log.Warn("config hot-reload unavailable", "error", err)
		} else {
			m.watcher = watcher
		}
	}

	m.log.Info("crawler initialized",
		"adapters", len(adapters), "default_site", defaultAdapter.SiteName())
	return nil
}

// Shutdown stops the background workers.
func (m *Module) Shutdown() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	if m.throttler != nil {
		m.throttler.Stop()
	}
}

// Runner returns the single-site crawl runner.
func (m *Module) Runner() *CrawlRunner { return m.runner }

// Orchestrator returns the multi-site orchestrator.
func (m *Module) Orchestrator() *Orchestrator { return m.orchestrator }

// Detector returns the duplicate detector.
func (m *Module) Detector() *DuplicateDetector { return m.detector }

// buildAdapters constructs one adapter per configured site. Unknown site
// names are skipped with a warning so a config typo cannot block startup.
func buildAdapters(sites []adapter.SiteConfig) []adapter.SiteAdapter {
	var adapters []adapter.SiteAdapter
	for _, site := range sites {
		a, err := newSiteAdapter(site)
		if err != nil {
			logger.Warn("skipping unsupported site", "site", site.Name, "error", err)
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

func newSiteAdapter(cfg adapter.SiteConfig) (adapter.SiteAdapter, error) {
	switch cfg.Name {
	case "netease":
		return adapter.NewNeteaseAdapter(cfg), nil
	case "qq":
		return adapter.NewQQMusicAdapter(cfg), nil
	case "kugou":
		return adapter.NewKugouAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("no adapter implementation for site %q", cfg.Name)
	}
}
