package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// activityEvent is what a line typed into the REPL counts as for the idle
// timer.
const activityEvent = "keypress"

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests use a stub.
type execIface interface {
	isLoggedIn() bool
	isAdmin() bool
	recordActivity(event string)

	Login(ctx context.Context) error
	Register(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Status(ctx context.Context) error
	EditProfile(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Refresh(ctx context.Context) error
	ShowExtra(ctx context.Context) error
	EditExtra(ctx context.Context) error
	ClearExtra(ctx context.Context) error
	CreateAdmin(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit". Prompts
// issued by the handlers read from the same reader.
//
//	Signed out:  help, login, register, status, exit
//	Signed in:   help, whoami, status, profile, passwd, refresh,
//	             extra [set|clear], logout, exit
//	Admins also: admin
//
// Every non-empty line counts as activity for the idle timer. Handler
// errors are reported by the handlers themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("backoffice %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		a.recordActivity(activityEvent)

		cmd, args := parts[0], parts[1:]
		switch cmd {
		case "help":
			switch {
			case a.isAdmin():
				printlnFn("Available commands: whoami, status, profile, passwd, refresh, extra [set|clear], admin, logout, exit")
			case a.isLoggedIn():
				printlnFn("Available commands: whoami, status, profile, passwd, refresh, extra [set|clear], logout, exit")
			default:
				printlnFn("Available commands: login, register, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "register":
			_ = a.Register(ctx)

		case "status":
			_ = a.Status(ctx)

		case "whoami", "profile", "passwd", "refresh", "extra", "admin", "logout":
			if !a.isLoggedIn() {
				printlnFn("Please sign in to continue")
				continue
			}
			dispatchSignedIn(ctx, a, cmd, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func dispatchSignedIn(ctx context.Context, a execIface, cmd string, args []string) {
	switch cmd {
	case "whoami":
		_ = a.WhoAmI(ctx)
	case "profile":
		_ = a.EditProfile(ctx)
	case "passwd":
		_ = a.ChangePassword(ctx)
	case "refresh":
		_ = a.Refresh(ctx)
	case "extra":
		switch {
		case len(args) == 0:
			_ = a.ShowExtra(ctx)
		case args[0] == "set":
			_ = a.EditExtra(ctx)
		case args[0] == "clear":
			_ = a.ClearExtra(ctx)
		default:
			printlnFn("Usage: extra [set|clear]")
		}
	case "admin":
		if !a.isAdmin() {
			printlnFn("Admin access required")
			return
		}
		_ = a.CreateAdmin(ctx)
	case "logout":
		_ = a.Logout(ctx)
	}
}
