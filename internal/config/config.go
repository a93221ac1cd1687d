// Package config loads the application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"melodyhub/internal/adapter"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`
}

// DatabaseConfig selects and tunes the gorm backend.
type DatabaseConfig struct {
	Type            string        `yaml:"type"` // "sqlite" or "postgres"
	Path            string        `yaml:"path"` // sqlite file path
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogQueries      bool          `yaml:"log_queries"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// CrawlerConfig holds crawl orchestration settings and the per-site adapter
// configurations.
type CrawlerConfig struct {
	DefaultSite  string               `yaml:"default_site"`
	DefaultLimit int                  `yaml:"default_limit"`
	SiteDelay    time.Duration        `yaml:"site_delay"` // politeness delay between requests
	Sites        []adapter.SiteConfig `yaml:"sites"`
}

// Default returns the built-in configuration, including the stock site
// adapter set. A config file and env vars override it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Database: DatabaseConfig{
			Type:            "sqlite",
			Path:            "melodyhub.db",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: 2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Crawler: CrawlerConfig{
			DefaultSite:  "netease",
			DefaultLimit: 20,
			SiteDelay:    500 * time.Millisecond,
			Sites:        defaultSites(),
		},
	}
}

func defaultSites() []adapter.SiteConfig {
	cleaning := adapter.CleaningRules{
		TitlePatterns:   []string{`(?i)\s*[\(（【\[].*?(mv|live|cover|伴奏|翻唱).*?[\)）】\]]`, `(?i)(官方|高清)版?`},
		ArtistPatterns:  []string{`(?i)\s*(feat\.|ft\.).*$`},
		AlbumPatterns:   []string{`(?i)\s*[\(（].*?(deluxe|豪华版).*?[\)）]`},
		ExcludeKeywords: []string{"广告", "试听", "铃声"},
	}
	policy := adapter.RequestPolicy{
		Timeout:       15 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		},
	}

	return []adapter.SiteConfig{
		{
			Name:    "netease",
			BaseURL: "https://music.163.com",
			Enabled: true,
			Request: policy,
			URLTemplates: map[adapter.CrawlType]string{
				adapter.CrawlRecommended: "https://music.163.com/api/personalized/newsong?limit={limit}",
				adapter.CrawlPopular:     "https://music.163.com/api/playlist/detail?id=3778678&limit={limit}",
				adapter.CrawlLatest:      "https://music.163.com/api/discovery/new-songs?limit={limit}",
				adapter.CrawlSearch:      "https://music.163.com/api/search/get?s={query}&type=1&limit={limit}",
				adapter.CrawlByArtist:    "https://music.163.com/api/search/get?s={artist}&type=100&limit={limit}",
				adapter.CrawlByGenre:     "https://music.163.com/api/playlist/list?cat={genre}&limit={limit}",
				adapter.CrawlDetail:      "https://music.163.com/api/song/detail?ids=[{id}]",
			},
			Cleaning: cleaning,
		},
		{
			Name:    "qq",
			BaseURL: "https://y.qq.com",
			Enabled: true,
			Request: policy,
			URLTemplates: map[adapter.CrawlType]string{
				adapter.CrawlRecommended: "https://c.y.qq.com/v8/fcg-bin/fcg_first_yqq.fcg?format=json&num={limit}",
				adapter.CrawlPopular:     "https://c.y.qq.com/v8/fcg-bin/fcg_v8_toplist_cp.fcg?format=json&topid=26&num={limit}",
				adapter.CrawlLatest:      "https://c.y.qq.com/v8/fcg-bin/fcg_v8_newsong.fcg?format=json&num={limit}",
				adapter.CrawlSearch:      "https://c.y.qq.com/soso/fcgi-bin/client_search_cp?format=json&w={query}&n={limit}",
				adapter.CrawlByArtist:    "https://c.y.qq.com/soso/fcgi-bin/client_search_cp?format=json&w={artist}&n={limit}&t=9",
				adapter.CrawlDetail:      "https://c.y.qq.com/v8/fcg-bin/fcg_play_single_song.fcg?format=json&songmid={id}",
			},
			Cleaning: cleaning,
		},
		{
			Name:    "kugou",
			BaseURL: "https://www.kugou.com",
			Enabled: false, // aggressive bot blocking, off by default
			Request: policy,
			URLTemplates: map[adapter.CrawlType]string{
				adapter.CrawlRecommended: "http://mobilecdn.kugou.com/api/v3/rank/song?rankid=6666&pagesize={limit}",
				adapter.CrawlPopular:     "http://mobilecdn.kugou.com/api/v3/rank/song?rankid=8888&pagesize={limit}",
				adapter.CrawlSearch:      "http://mobilecdn.kugou.com/api/v3/search/song?keyword={query}&pagesize={limit}",
				adapter.CrawlByGenre:     "http://mobilecdn.kugou.com/api/v3/tag/song?tag={genre}&pagesize={limit}",
				adapter.CrawlDetail:      "http://mobilecdn.kugou.com/api/v3/song/info?hash={id}",
			},
			Cleaning: cleaning,
		},
	}
}

// Load reads the config file at path (if it exists) over the defaults and
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MELODYHUB_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MELODYHUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.Username = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CRAWLER_DEFAULT_SITE"); v != "" {
		cfg.Crawler.DefaultSite = v
	}
}

// Site returns the configuration for the named site, if present.
func (c *CrawlerConfig) Site(name string) (adapter.SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return adapter.SiteConfig{}, false
}
