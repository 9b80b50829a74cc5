// Package idle signs the operator out after a period without activity.
//
// A Timer keeps two one-shot timers: a warning timer that fires WarningTime
// before the deadline and the timeout timer itself. Every tracked activity
// event cancels both and arms them again, so an active operator never sees
// either fire.
package idle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/clockx"
)

const (
	DefaultTimeout     = 15 * time.Minute
	DefaultWarningTime = 60 * time.Second
)

// DefaultEvents are the activity events tracked when Config.Events is empty.
var DefaultEvents = []string{"mousedown", "mousemove", "keypress", "scroll", "touchstart", "click"}

var ErrInvalidConfig = errors.New("invalid idle timer config")

// Config describes when the timer fires. WarningTime of zero disables the
// warning.
type Config struct {
	Timeout     time.Duration
	WarningTime time.Duration
	Events      []string
	Enabled     bool

	OnTimeout func()
	OnWarning func(remaining time.Duration)
}

func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		WarningTime: DefaultWarningTime,
		Events:      append([]string(nil), DefaultEvents...),
		Enabled:     true,
	}
}

// Validate rejects a timeout that isn't positive and a warning that would
// not fire strictly before the timeout.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.WarningTime < 0 {
		return fmt.Errorf("%w: warning time must not be negative, got %s", ErrInvalidConfig, c.WarningTime)
	}
	if c.WarningTime >= c.Timeout {
		return fmt.Errorf("%w: warning time %s must be shorter than timeout %s", ErrInvalidConfig, c.WarningTime, c.Timeout)
	}
	return nil
}

// Timer is safe for concurrent use. Callbacks run without the lock held.
type Timer struct {
	mu      sync.Mutex
	clock   clockx.Clock
	cfg     Config
	events  map[string]struct{}
	enabled bool
	stopped bool

	gen          uint64
	warnTimer    clockx.Timer
	timeoutTimer clockx.Timer
	deadline     time.Time
}

type Option func(*Timer)

func WithClock(c clockx.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// New validates cfg and returns a Timer, armed if cfg.Enabled.
func New(cfg Config, opts ...Option) (*Timer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Events) == 0 {
		cfg.Events = DefaultEvents
	}

	t := &Timer{
		clock:  clockx.New(),
		cfg:    cfg,
		events: make(map[string]struct{}, len(cfg.Events)),
	}
	for _, o := range opts {
		o(t)
	}
	for _, e := range cfg.Events {
		t.events[e] = struct{}{}
	}

	if cfg.Enabled {
		t.SetEnabled(true)
	}
	return t, nil
}

// Tracks reports whether event resets the timer.
func (t *Timer) Tracks(event string) bool {
	_, ok := t.events[event]
	return ok
}

// Activity records an activity event. Untracked events and events arriving
// while the timer is disabled are ignored; the return value says whether
// the timer was re-armed.
func (t *Timer) Activity(event string) bool {
	if !t.Tracks(event) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled || t.stopped {
		return false
	}
	t.armLocked()
	return true
}

// Reset re-arms the timer as if activity had just happened.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enabled && !t.stopped {
		t.armLocked()
	}
}

// SetEnabled arms the timer when turned on and cancels it when turned off.
// Enabling an already enabled timer does not restart it.
func (t *Timer) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.enabled == on {
		return
	}
	t.enabled = on
	if on {
		t.armLocked()
	} else {
		t.cancelLocked()
	}
}

func (t *Timer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Remaining is the time left before the timeout fires, zero when disarmed.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled || t.deadline.IsZero() {
		return 0
	}
	if r := t.deadline.Sub(t.clock.Now()); r > 0 {
		return r
	}
	return 0
}

// Stop cancels both timers for good. Later calls to any method are no-ops.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.enabled = false
	t.cancelLocked()
}

func (t *Timer) armLocked() {
	t.cancelLocked()

	t.gen++
	gen := t.gen
	t.deadline = t.clock.Now().Add(t.cfg.Timeout)

	if t.cfg.WarningTime > 0 {
		t.warnTimer = t.clock.AfterFunc(t.cfg.Timeout-t.cfg.WarningTime, func() { t.fireWarning(gen) })
	}
	t.timeoutTimer = t.clock.AfterFunc(t.cfg.Timeout, func() { t.fireTimeout(gen) })
}

func (t *Timer) cancelLocked() {
	if t.warnTimer != nil {
		t.warnTimer.Stop()
		t.warnTimer = nil
	}
	if t.timeoutTimer != nil {
		t.timeoutTimer.Stop()
		t.timeoutTimer = nil
	}
	t.deadline = time.Time{}
	// a callback already past Stop sees a newer generation and bails out
	t.gen++
}

func (t *Timer) fireWarning(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.enabled {
		t.mu.Unlock()
		return
	}
	t.warnTimer = nil
	cb := t.cfg.OnWarning
	remaining := t.cfg.WarningTime
	t.mu.Unlock()

	if cb != nil {
		cb(remaining)
	}
}

func (t *Timer) fireTimeout(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.enabled {
		t.mu.Unlock()
		return
	}
	t.timeoutTimer = nil
	t.deadline = time.Time{}
	// the timer stays enabled but disarmed until the next activity
	t.gen++
	cb := t.cfg.OnTimeout
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
