package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the console reads.
const EnvPrefix = "BACKOFFICE_"

// dotEnvFile is loaded, when present, before the environment is read.
// Variables already set in the environment win.
var dotEnvFile = ".env"

// parseEnv overlays Config with BACKOFFICE_* environment variables.
//
// Durations use Go syntax ("15m", "90s"). Malformed values panic, like the
// JSON and flag stages.
func parseEnv(cfg *Config) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	envString("API_URL", &cfg.APIBaseURL)
	envString("DB_PATH", &cfg.DatabasePath)
	envString("LISTEN_ADDR", &cfg.ListenAddr)
	envDuration("IDLE_TIMEOUT", &cfg.IdleTimeout)
	envDuration("IDLE_WARNING", &cfg.IdleWarning)
	envBool("IDLE_ENABLED", &cfg.IdleEnabled)
	envDuration("REVALIDATE_INTERVAL", &cfg.RevalidateInterval)
	envDuration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	envString("SESSION_SECRET", &cfg.SessionSecret)
	envBool("SECURE_COOKIES", &cfg.SecureCookies)
	envFloat("SIGNIN_RATE", &cfg.SignInRate)
	envInt("SIGNIN_BURST", &cfg.SignInBurst)
	envString("ENV", &cfg.Environment)
	envString("LOG_LEVEL", &cfg.LogLevel)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}

func envBool(name string, dst *bool) {
	if v, ok := lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		*dst = b
	}
}

func envFloat(name string, dst *float64) {
	if v, ok := lookup(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			panic(err)
		}
		*dst = f
	}
}

func envInt(name string, dst *int) {
	if v, ok := lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = n
	}
}
