package crawler

import (
	"errors"
	"strings"
	"time"
)

// Config holds the run-level settings of the Engine. It is decoupled from
// Viper so the engine can be configured and tested independently.
type Config struct {
	RunID string
	// SiteHost restricts category derivation to one site; empty accepts any host.
	SiteHost string
	// Referer is sent with every sitemap and page request when set.
	Referer        string
	Concurrency    int
	RequestTimeout time.Duration
}

// Validate checks for obviously bad configuration values.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	if strings.Contains(c.SiteHost, "/") {
		return errors.New("site host must be a bare host name")
	}
	return nil
}
