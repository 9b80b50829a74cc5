// Package config loads runtime configuration for the back-office console.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed BACKOFFICE_, after loading an optional
//     .env file with godotenv (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "15m" or
// integer nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8080/api",
//	  "database_path": "backoffice.db",
//	  "listen_addr": "127.0.0.1:3000",
//	  "idle_timeout": "15m",
//	  "idle_warning": "60s",
//	  "revalidate_interval": "5m"
//	}
//
// Validate checks the assembled Config; in particular an idle warning that
// is not shorter than the idle timeout is rejected.
package config
