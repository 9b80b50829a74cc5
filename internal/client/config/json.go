package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophadmin/internal/flagx"
	"github.com/dmitrijs2005/gophadmin/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// zero-value checks let a file set only the fields it cares about.
type JsonConfig struct {
	APIBaseURL         string          `json:"api_base_url"`
	DatabasePath       string          `json:"database_path"`
	ListenAddr         string          `json:"listen_addr"`
	IdleTimeout        *timex.Duration `json:"idle_timeout"`
	IdleWarning        *timex.Duration `json:"idle_warning"`
	IdleEnabled        *bool           `json:"idle_enabled"`
	RevalidateInterval *timex.Duration `json:"revalidate_interval"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
	SessionSecret      string          `json:"session_secret"`
	SecureCookies      *bool           `json:"secure_cookies"`
	SignInRate         *float64        `json:"signin_rate"`
	SignInBurst        *int            `json:"signin_burst"`
	Environment        string          `json:"environment"`
	LogLevel           string          `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c / -config. Without the flag nothing changes. Read or unmarshal errors
// panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.ListenAddr, jc.ListenAddr)
	setString(&cfg.SessionSecret, jc.SessionSecret)
	setString(&cfg.Environment, jc.Environment)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.IdleTimeout != nil {
		cfg.IdleTimeout = jc.IdleTimeout.Duration
	}
	if jc.IdleWarning != nil {
		cfg.IdleWarning = jc.IdleWarning.Duration
	}
	if jc.IdleEnabled != nil {
		cfg.IdleEnabled = *jc.IdleEnabled
	}
	if jc.RevalidateInterval != nil {
		cfg.RevalidateInterval = jc.RevalidateInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SecureCookies != nil {
		cfg.SecureCookies = *jc.SecureCookies
	}
	if jc.SignInRate != nil {
		cfg.SignInRate = *jc.SignInRate
	}
	if jc.SignInBurst != nil {
		cfg.SignInBurst = *jc.SignInBurst
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
