package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	admin    bool

	calls    []string
	activity int
}

func (f *fakeExec) isLoggedIn() bool        { return f.loggedIn }
func (f *fakeExec) isAdmin() bool           { return f.admin }
func (f *fakeExec) recordActivity(e string) { f.activity++ }

func (f *fakeExec) call(name string) error {
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.call("login")
}
func (f *fakeExec) Register(context.Context) error { return f.call("register") }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn, f.admin = false, false
	return f.call("logout")
}
func (f *fakeExec) WhoAmI(context.Context) error         { return f.call("whoami") }
func (f *fakeExec) Status(context.Context) error         { return f.call("status") }
func (f *fakeExec) EditProfile(context.Context) error    { return f.call("profile") }
func (f *fakeExec) ChangePassword(context.Context) error { return f.call("passwd") }
func (f *fakeExec) Refresh(context.Context) error        { return f.call("refresh") }
func (f *fakeExec) ShowExtra(context.Context) error      { return f.call("extra") }
func (f *fakeExec) EditExtra(context.Context) error      { return f.call("extra set") }
func (f *fakeExec) ClearExtra(context.Context) error     { return f.call("extra clear") }
func (f *fakeExec) CreateAdmin(context.Context) error    { return f.call("admin") }

// capturePrintln swaps printlnFn for a recorder and returns the captured
// lines.
func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func feed(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, feed(
		"help",
		"whoami",
		"login",
		"whoami",
		"profile",
		"passwd",
		"refresh",
		"extra",
		"extra set",
		"extra clear",
		"status",
		"logout",
		"exit",
	))

	assert.Equal(t, []string{
		"login", "whoami", "profile", "passwd", "refresh",
		"extra", "extra set", "extra clear", "status", "logout",
	}, exec.calls)
}

func TestRunREPL_SignedInCommandsNeedSession(t *testing.T) {
	out := capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, feed("whoami", "admin", "quit"))

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Please sign in to continue")
}

func TestRunREPL_AdminCommand(t *testing.T) {
	t.Run("non-admin refused", func(t *testing.T) {
		out := capturePrintln(t)
		exec := &fakeExec{loggedIn: true}
		runREPL(context.Background(), exec, func() string { return "" }, feed("admin", "exit"))

		assert.Empty(t, exec.calls)
		assert.Contains(t, *out, "Admin access required")
	})

	t.Run("admin allowed", func(t *testing.T) {
		capturePrintln(t)
		exec := &fakeExec{loggedIn: true, admin: true}
		runREPL(context.Background(), exec, func() string { return "" }, feed("admin", "exit"))

		assert.Equal(t, []string{"admin"}, exec.calls)
	})
}

func TestRunREPL_EveryLineIsActivity(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, feed("help", "", "   ", "nonsense", "exit"))

	// blank lines don't count
	assert.Equal(t, 3, exec.activity)
}

func TestRunREPL_UsageUnknownAndEOF(t *testing.T) {
	out := capturePrintln(t)

	exec := &fakeExec{loggedIn: true}
	// no trailing newline and no exit: the last line still runs, then EOF ends the loop
	runREPL(context.Background(), exec, func() string { return "" }, feed("extra bogus", "foobar", "whoami"))

	assert.Equal(t, []string{"whoami"}, exec.calls)
	assert.Contains(t, *out, "Usage: extra [set|clear]")
	assert.Contains(t, *out, "Unknown command: foobar")
}

func TestRunREPL_PromptShowsStatus(t *testing.T) {
	out := capturePrintln(t)

	runREPL(context.Background(), &fakeExec{}, func() string { return "(alice admin)" }, feed("exit"))

	assert.Equal(t, "backoffice (alice admin)> ", (*out)[0])
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}
