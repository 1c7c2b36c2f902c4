// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pillowdl/internal/consts"
	"pillowdl/internal/errs"
	"pillowdl/pkg/urls"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	App      App
	Dir      Dir
	Job      Job
	Source   Source
	ErrorLog ErrorLog
	Progress Progress
	HTTP     HTTP
	Proxy    Proxy
}

// App holds application-wide configuration.
type App struct {
	LogLevel  string `env:"PILLOWDL_APP_LOG_LEVEL" envDefault:"info"`
	InputFile string `env:"PILLOWDL_INPUT_FILE"    envDefault:"onlyfiles.txt"` // one url-bearing line per target
}

// Job holds download task configuration.
type Job struct {
	Workers   int           `env:"PILLOWDL_JOB_WORKERS"    envDefault:"15"`
	Timeout   time.Duration `env:"PILLOWDL_JOB_TIMEOUT"    envDefault:"120s"` // whole request incl. body
	ChunkSize int           `env:"PILLOWDL_JOB_CHUNK_SIZE" envDefault:"8192"`
}

// Dir holds directory paths.
type Dir struct {
	Downloads string `env:"PILLOWDL_DIR_DOWNLOADS" envDefault:"downloads"` // one timestamped subdirectory per run
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	return nil
}

// Source describes the file-hosting service.
type Source struct {
	Host    string `env:"PILLOWDL_SOURCE_HOST" envDefault:"pillowcase.su"`
	APIBase string `env:"PILLOWDL_API_BASE"    envDefault:"https://api.pillows.su/api/download"`
}

// ErrorLog holds error log configuration.
type ErrorLog struct {
	Path string `env:"PILLOWDL_ERRLOG_PATH" envDefault:"errors.txt"`
	// RotateSize is the size in bytes above which the log is compressed away at startup. 0 disables.
	RotateSize int64 `env:"PILLOWDL_ERRLOG_ROTATE_SIZE" envDefault:"10485760"`
}

// Progress holds progress reporting configuration.
type Progress struct {
	Interval time.Duration `env:"PILLOWDL_PROGRESS_INTERVAL" envDefault:"500ms"`
}

// HTTP holds configuration of the optional status server.
type HTTP struct {
	Addr            string        `env:"PILLOWDL_HTTP_ADDR"             envDefault:""` // empty disables the server
	ShutdownTimeout time.Duration `env:"PILLOWDL_HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Proxy holds proxy configuration for download requests.
type Proxy struct {
	// List is a comma-separated list of proxy URLs
	List string `env:"PILLOWDL_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"PILLOWDL_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"PILLOWDL_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the maximum number of failures before a proxy is temporarily removed
	MaxFailures int `env:"PILLOWDL_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	p.Proxies = nil

	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

// Validate replaces non-positive limits with defaults and checks the source URLs.
func (c *Config) Validate() error {
	if c.Job.Workers <= 0 {
		c.Job.Workers = consts.DefaultJobWorkers
	}

	if c.Job.Timeout <= 0 {
		c.Job.Timeout = consts.DefaultJobTimeout
	}

	if c.Job.ChunkSize <= 0 {
		c.Job.ChunkSize = consts.DefaultChunkSize
	}

	if c.Progress.Interval <= 0 {
		c.Progress.Interval = consts.DefaultProgressInterval
	}

	if c.Proxy.MaxFailures <= 0 {
		c.Proxy.MaxFailures = 1
	}

	if !urls.IsURLValid(c.Source.APIBase) {
		return fmt.Errorf("api base %q: %w", c.Source.APIBase, errs.ErrInvalidURL)
	}

	if c.Source.Host == "" {
		return fmt.Errorf("source host is empty: %w", errs.ErrInvalidURL)
	}

	return nil
}
