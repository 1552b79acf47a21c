// Package config loads and validates archiver configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Archive backends.
const (
	BackendDrive  = "drive"
	BackendGCS    = "gcs"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Config captures all archiver configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Extract ExtractConfig `mapstructure:"extract"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Drive   DriveConfig   `mapstructure:"drive"`
	GCS     GCSConfig     `mapstructure:"gcs"`
	Local   LocalConfig   `mapstructure:"local"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig names the crawled site and its sitemap seeds.
type SiteConfig struct {
	Host    string   `mapstructure:"host"`
	Seeds   []string `mapstructure:"seeds"`
	Referer string   `mapstructure:"referer"`
}

// CrawlerConfig governs fetching and worker behavior.
type CrawlerConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Concurrency    int           `mapstructure:"concurrency"`
	PerDomainMax   int           `mapstructure:"per_domain_max"`
	Delay          time.Duration `mapstructure:"delay"`
	Jitter         float64       `mapstructure:"jitter"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
}

// ExtractConfig selects the article container and the noise to strip.
type ExtractConfig struct {
	ContainerSelector string   `mapstructure:"container_selector"`
	NoiseSelectors    []string `mapstructure:"noise_selectors"`
}

// ArchiveConfig chooses the remote store and the folder layout inside it.
type ArchiveConfig struct {
	Backend        string `mapstructure:"backend"`
	RootFolderID   string `mapstructure:"root_folder_id"`
	RootFolderName string `mapstructure:"root_folder_name"`
	UploadedBy     string `mapstructure:"uploaded_by"`
}

// DriveConfig points at Google Drive credentials.
type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	QuotaProject    string `mapstructure:"quota_project"`
}

// GCSConfig configures the bucket backend.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LocalConfig configures the filesystem backend.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LedgerConfig controls the optional Postgres ledger. An empty DSN disables it.
type LedgerConfig struct {
	DSN          string `mapstructure:"dsn"`
	RecordsTable string `mapstructure:"records_table"`
	RunsTable    string `mapstructure:"runs_table"`
	MaxConns     int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the optional per-record notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications are configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// ServerConfig controls the ops HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. Without a path it looks for
// archiver.yaml in the working directory and then $HOME/.archiver.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("archiver")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.archiver")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.host", "tamanhhospital.vn")
	v.SetDefault("site.referer", "https://tamanhhospital.vn/")
	v.SetDefault("site.seeds", []string{
		"https://tamanhhospital.vn/benh-sitemap1.xml",
		"https://tamanhhospital.vn/benh-sitemap2.xml",
		"https://tamanhhospital.vn/thuoc-sitemap.xml",
		"https://tamanhhospital.vn/cothenguoi-sitemap.xml",
		"https://tamanhhospital.vn/tiemchung-sitemap.xml",
		"https://tamanhhospital.vn/vikhuan-sitemap.xml",
		"https://tamanhhospital.vn/virus-sitemap.xml",
		"https://tamanhhospital.vn/tebao-sitemap.xml",
		"https://tamanhhospital.vn/vitamin-sitemap.xml",
		"https://tamanhhospital.vn/hormone-sitemap.xml",
	})
	v.SetDefault("crawler.user_agent", "sitemap-archiver/0.1")
	v.SetDefault("crawler.concurrency", 32)
	v.SetDefault("crawler.per_domain_max", 16)
	v.SetDefault("crawler.delay", time.Second)
	v.SetDefault("crawler.jitter", 0.5)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.run_timeout", time.Duration(0))
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.max_body_bytes", 0)
	v.SetDefault("extract.container_selector", "div#ftwp-postcontent")
	v.SetDefault("extract.noise_selectors", []string{"nav", "div.content_insert"})
	v.SetDefault("archive.backend", BackendDrive)
	v.SetDefault("archive.root_folder_name", "scraped_hospital_data")
	v.SetDefault("archive.uploaded_by", "Hospital Crawler")
	v.SetDefault("ledger.records_table", "archive_records")
	v.SetDefault("ledger.runs_table", "archive_runs")
	v.SetDefault("ledger.max_conns", 4)
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Site.Seeds) == 0 {
		return errors.New("site.seeds must not be empty")
	}
	for _, seed := range c.Site.Seeds {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("site.seeds: invalid sitemap url %q", seed)
		}
	}
	if c.Crawler.Concurrency <= 0 {
		return errors.New("crawler.concurrency must be > 0")
	}
	if c.Crawler.PerDomainMax <= 0 {
		return errors.New("crawler.per_domain_max must be > 0")
	}
	if c.Crawler.Delay < 0 {
		return errors.New("crawler.delay must not be negative")
	}
	if c.Crawler.Jitter < 0 {
		return errors.New("crawler.jitter must not be negative")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return errors.New("crawler.request_timeout must be > 0")
	}
	if c.Crawler.RunTimeout < 0 {
		return errors.New("crawler.run_timeout must not be negative")
	}
	if strings.TrimSpace(c.Extract.ContainerSelector) == "" {
		return errors.New("extract.container_selector must be set")
	}
	if c.Archive.RootFolderID == "" && strings.TrimSpace(c.Archive.RootFolderName) == "" {
		return errors.New("archive.root_folder_id or archive.root_folder_name must be set")
	}
	switch c.Archive.Backend {
	case BackendDrive, BackendMemory:
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return errors.New("gcs.bucket must be set for the gcs backend")
		}
	case BackendLocal:
		if c.Local.BaseDir == "" {
			return errors.New("local.base_dir must be set for the local backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of drive, gcs, local, memory", c.Archive.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return errors.New("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Server.Port < 0 {
		return errors.New("server.port must not be negative")
	}
	return nil
}
