package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/idle"
)

// Config holds runtime settings for the back-office console.
//
// Units: every interval is a time.Duration; SignInRate is attempts per
// second.
type Config struct {
	APIBaseURL         string
	DatabasePath       string
	ListenAddr         string
	IdleTimeout        time.Duration
	IdleWarning        time.Duration
	IdleEnabled        bool
	RevalidateInterval time.Duration
	RequestTimeout     time.Duration
	SessionSecret      string
	SecureCookies      bool
	SignInRate         float64
	SignInBurst        int
	Environment        string
	LogLevel           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080/api"
	c.DatabasePath = "backoffice.db"
	c.ListenAddr = "127.0.0.1:3000"
	c.IdleTimeout = idle.DefaultTimeout
	c.IdleWarning = idle.DefaultWarningTime
	c.IdleEnabled = true
	c.RevalidateInterval = 5 * time.Minute
	c.RequestTimeout = 15 * time.Second
	c.SessionSecret = ""
	c.SecureCookies = false
	c.SignInRate = 1
	c.SignInBurst = 5
	c.Environment = "development"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (and a .env file), JSON (if present) and command-line
// flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// IdleConfig is the idle timer configuration described by c.
func (c *Config) IdleConfig() idle.Config {
	cfg := idle.DefaultConfig()
	cfg.Timeout = c.IdleTimeout
	cfg.WarningTime = c.IdleWarning
	cfg.Enabled = c.IdleEnabled
	return cfg
}

// Validate reports every setting that can't work.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base url %q is not an absolute URL", c.APIBaseURL))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if err := c.IdleConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RevalidateInterval <= 0 {
		errs = append(errs, fmt.Errorf("revalidate interval must be positive, got %s", c.RevalidateInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.SignInRate <= 0 || c.SignInBurst <= 0 {
		errs = append(errs, fmt.Errorf("sign-in rate %v/s with burst %d allows no attempts", c.SignInRate, c.SignInBurst))
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("session secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}
