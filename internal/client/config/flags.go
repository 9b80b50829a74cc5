package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-l", "-t", "-w", "-r", "-s"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   backend API base URL
//	-d string   local session database path
//	-l string   console listen address
//	-t int      idle timeout (seconds)
//	-w int      idle warning before timeout (seconds, 0 disables)
//	-r int      token revalidation interval (seconds)
//	-s string   console cookie secret
//
// os.Args is filtered with flagx.FilterArgs first, so subcommands and flags
// owned by cobra don't interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "backend API base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local session database path")
	fs.StringVar(&cfg.ListenAddr, "l", cfg.ListenAddr, "console listen address")
	idleTimeout := fs.Int("t", int(cfg.IdleTimeout.Seconds()), "idle timeout (in seconds)")
	idleWarning := fs.Int("w", int(cfg.IdleWarning.Seconds()), "idle warning before timeout (in seconds)")
	revalidate := fs.Int("r", int(cfg.RevalidateInterval.Seconds()), "token revalidation interval (in seconds)")
	fs.StringVar(&cfg.SessionSecret, "s", cfg.SessionSecret, "console cookie secret")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.IdleTimeout = time.Duration(*idleTimeout) * time.Second
	cfg.IdleWarning = time.Duration(*idleWarning) * time.Second
	cfg.RevalidateInterval = time.Duration(*revalidate) * time.Second
}
