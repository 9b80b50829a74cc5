package idle

import (
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/clockx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	timeouts []time.Time
	warnings []time.Duration
	warnedAt []time.Time
	clock    clockx.Clock
}

func (r *recorder) onTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts = append(r.timeouts, r.clock.Now())
}

func (r *recorder) onWarning(rem time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, rem)
	r.warnedAt = append(r.warnedAt, r.clock.Now())
}

func (r *recorder) timeoutTimes() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.timeouts...)
}

func (r *recorder) warningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings)
}

func (r *recorder) timeoutCount() int {
	return len(r.timeoutTimes())
}

// waitTimeouts waits for the asynchronously fired callbacks to land.
func (r *recorder) waitTimeouts(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.timeoutCount() == n }, time.Second, time.Millisecond)
}

func (r *recorder) neverMoreTimeoutsThan(t *testing.T, n int) {
	t.Helper()
	assert.Never(t, func() bool { return r.timeoutCount() > n }, 20*time.Millisecond, time.Millisecond)
}

func newTimer(t *testing.T, timeout, warning time.Duration) (*Timer, *clockx.Mock, *recorder) {
	t.Helper()
	clock := clockx.NewMock(epoch)
	rec := &recorder{clock: clock}
	tm, err := New(Config{
		Timeout:     timeout,
		WarningTime: warning,
		Enabled:     true,
		OnTimeout:   rec.onTimeout,
		OnWarning:   rec.onWarning,
	}, WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(tm.Stop)
	return tm, clock, rec
}

func TestActivityPostponesTimeout(t *testing.T) {
	tm, clock, rec := newTimer(t, 1000*time.Millisecond, 0)

	clock.Add(900 * time.Millisecond)
	require.True(t, tm.Activity("mousemove"))

	clock.Add(999 * time.Millisecond)
	rec.neverMoreTimeoutsThan(t, 0)

	clock.Add(time.Millisecond)
	rec.waitTimeouts(t, 1)
	assert.Equal(t, epoch.Add(1900*time.Millisecond), rec.timeoutTimes()[0])

	clock.Add(time.Hour)
	rec.neverMoreTimeoutsThan(t, 1)
}

func TestWarningThenTimeout(t *testing.T) {
	_, clock, rec := newTimer(t, 15*time.Minute, time.Minute)

	clock.Add(14 * time.Minute)
	require.Eventually(t, func() bool { return rec.warningCount() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, rec.timeoutCount())

	rec.mu.Lock()
	assert.Equal(t, time.Minute, rec.warnings[0])
	assert.Equal(t, epoch.Add(14*time.Minute), rec.warnedAt[0])
	rec.mu.Unlock()

	clock.Add(time.Minute)
	rec.waitTimeouts(t, 1)
	assert.Equal(t, epoch.Add(15*time.Minute), rec.timeoutTimes()[0])
}

func TestRepeatedActivityDoesNotStack(t *testing.T) {
	tm, clock, rec := newTimer(t, 10*time.Second, 2*time.Second)

	for i := 0; i < 50; i++ {
		clock.Add(100 * time.Millisecond)
		tm.Activity("keypress")
	}
	assert.Zero(t, rec.warningCount())

	clock.Add(10 * time.Second)
	rec.waitTimeouts(t, 1)
	rec.neverMoreTimeoutsThan(t, 1)
	assert.Equal(t, 1, rec.warningCount(), "exactly one warning armed")
}

func TestUntrackedEventIgnored(t *testing.T) {
	tm, clock, rec := newTimer(t, time.Second, 0)

	clock.Add(900 * time.Millisecond)
	assert.False(t, tm.Activity("resize"))

	clock.Add(100 * time.Millisecond)
	rec.waitTimeouts(t, 1)
}

func TestDisabledTimerNeverFires(t *testing.T) {
	tm, clock, rec := newTimer(t, time.Second, 0)

	tm.SetEnabled(false)
	assert.False(t, tm.Activity("click"))
	clock.Add(time.Minute)
	rec.neverMoreTimeoutsThan(t, 0)
	assert.Zero(t, tm.Remaining())

	tm.SetEnabled(true)
	clock.Add(time.Second)
	rec.waitTimeouts(t, 1)
}

func TestSetEnabledTwiceDoesNotRestart(t *testing.T) {
	tm, clock, rec := newTimer(t, time.Second, 0)

	clock.Add(600 * time.Millisecond)
	tm.SetEnabled(true)
	clock.Add(400 * time.Millisecond)
	rec.waitTimeouts(t, 1)
}

func TestStopCancelsEverything(t *testing.T) {
	tm, clock, rec := newTimer(t, time.Second, 500*time.Millisecond)

	tm.Stop()
	assert.False(t, tm.Activity("click"))
	tm.SetEnabled(true)
	tm.Reset()

	clock.Add(time.Hour)
	rec.neverMoreTimeoutsThan(t, 0)
	assert.Zero(t, rec.warningCount())
	assert.Zero(t, tm.Remaining())
}

func TestRemaining(t *testing.T) {
	tm, clock, _ := newTimer(t, 10*time.Second, 0)

	clock.Add(4 * time.Second)
	assert.Equal(t, 6*time.Second, tm.Remaining())

	tm.Reset()
	assert.Equal(t, 10*time.Second, tm.Remaining())
}

func TestActivityAfterTimeoutRearms(t *testing.T) {
	tm, clock, rec := newTimer(t, time.Second, 0)

	clock.Add(time.Second)
	rec.waitTimeouts(t, 1)

	require.True(t, tm.Activity("scroll"))
	clock.Add(time.Second)
	rec.waitTimeouts(t, 2)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero timeout", Config{Timeout: 0}, true},
		{"negative warning", Config{Timeout: time.Minute, WarningTime: -time.Second}, true},
		{"warning equals timeout", Config{Timeout: time.Minute, WarningTime: time.Minute}, true},
		{"warning exceeds timeout", Config{Timeout: time.Second, WarningTime: DefaultWarningTime}, true},
		{"no warning", Config{Timeout: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				_, err := New(tt.cfg)
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDefaultsAndCustomEvents(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 15*time.Minute, cfg.Timeout)
	assert.Equal(t, 60*time.Second, cfg.WarningTime)
	assert.True(t, cfg.Enabled)

	tm, err := New(Config{Timeout: time.Second, Events: []string{"command"}}, WithClock(clockx.NewMock(epoch)))
	require.NoError(t, err)
	defer tm.Stop()

	assert.True(t, tm.Tracks("command"))
	assert.False(t, tm.Tracks("click"))
	assert.False(t, tm.Enabled(), "Enabled=false leaves the timer disarmed")
}
