package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophadmin/internal/flagx"
	"github.com/dmitrijs2005/gophadmin/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration. Durations accept
// both "1h" style strings and integer nanoseconds; absent keys keep the
// current value.
type JsonConfig struct {
	ListenAddr                  *string         `json:"listen_addr"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	AdminUsername               *string         `json:"admin_username"`
	AdminEmail                  *string         `json:"admin_email"`
	AdminPassword               *string         `json:"admin_password"`
	RegisterIssuesToken         *bool           `json:"register_issues_token"`
	Environment                 *string         `json:"environment"`
	LogLevel                    *string         `json:"log_level"`
}

// parseJson loads the file named by -c / -config, if any, over config. A
// file that can't be read or parsed panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.AdminUsername, c.AdminUsername)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.Environment, c.Environment)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RegisterIssuesToken != nil {
		config.RegisterIssuesToken = *c.RegisterIssuesToken
	}
}
