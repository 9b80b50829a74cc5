package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   REST API bind address (e.g., "127.0.0.1:8080")
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-u string   seeded admin username
//	-e string   seeded admin email
//	-p string   seeded admin password
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-t", "-u", "-e", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	fs.StringVar(&config.AdminUsername, "u", config.AdminUsername, "seeded admin username")
	fs.StringVar(&config.AdminEmail, "e", config.AdminEmail, "seeded admin email")
	fs.StringVar(&config.AdminPassword, "p", config.AdminPassword, "seeded admin password")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
