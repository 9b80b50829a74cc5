package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/fetch"
	"github.com/dmitrijs2005/gophadmin/internal/client/idle"
	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/session"
	"github.com/dmitrijs2005/gophadmin/internal/client/token"
	"github.com/dmitrijs2005/gophadmin/internal/clockx"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
)

// DefaultRevalidateInterval is how often an active session re-checks the
// expiry of its token.
const DefaultRevalidateInterval = 5 * time.Minute

// User-facing messages.
const (
	MsgLoginInProgress   = "Login already in progress"
	MsgNetwork           = "Unable to reach the server. Please try again."
	MsgAdminRequired     = "Admin access required"
	MsgNotAuthenticated  = "Please sign in to continue"
	MsgSessionInvalid    = "Your session is no longer valid. Please sign in again."
	MsgSessionExpired    = "Your session has expired. Please sign in again."
	MsgIdleTimeout       = "Your session has expired due to inactivity. Please sign in again."
	MsgDataMismatch      = "Session data was out of sync. Please sign in again."
	MsgSessionSaveFailed = "Login failed: the session could not be saved locally"
	MsgCancelled         = "Request cancelled"
)

// ErrorCode classifies a failed Result so callers can pick a UI affordance
// without parsing messages.
type ErrorCode string

const (
	CodeInProgress       ErrorCode = "in_progress"
	CodeNetwork          ErrorCode = "network"
	CodeAuth             ErrorCode = "auth"
	CodeAdminRequired    ErrorCode = "admin_required"
	CodeLocalValidation  ErrorCode = "local_validation"
	CodeConsistency      ErrorCode = "consistency"
	CodeStorage          ErrorCode = "storage"
	CodeServer           ErrorCode = "server"
	CodeNotAuthenticated ErrorCode = "not_authenticated"
	CodeSuperseded       ErrorCode = "superseded"
	CodeInternal         ErrorCode = "internal"
)

// Result is returned by every session action. Failures never escape as
// errors or panics.
type Result struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}

var succeeded = Result{Success: true}

func fail(code ErrorCode, msg string) Result {
	return Result{Error: msg, Code: code}
}

// EndReason says why a session ended.
type EndReason string

const (
	ReasonUserLogout   EndReason = "user logout"
	ReasonIdleTimeout  EndReason = "idle timeout"
	ReasonTokenExpired EndReason = "token expired"
	ReasonDataMismatch EndReason = "data mismatch"
)

// Notifier receives the notices the operator must see.
type Notifier interface {
	IdleWarning(remaining time.Duration)
	SessionEnded(reason EndReason, message string)
}

type nopNotifier struct{}

func (nopNotifier) IdleWarning(time.Duration)        {}
func (nopNotifier) SessionEnded(EndReason, string) {}

// State is a snapshot of the session.
type State struct {
	User      *models.User `json:"user"`
	IsLoading bool         `json:"isLoading"`
}

// SessionManager owns the operator session: who is signed in, whether the
// startup check is still running, the idle timer and the periodic token
// check. It is the only writer of that state.
type SessionManager struct {
	auth     AuthService
	store    session.Store
	clock    clockx.Clock
	log      logging.Logger
	notifier Notifier

	revalidateEvery time.Duration
	idleCfg         idle.Config
	idle            *idle.Timer

	mu         sync.RWMutex
	user       *models.User
	loading    bool
	closed     bool
	revalidate clockx.Timer
	revalGen   uint64

	// userWrites orders store writes of the user record against endSession
	// so a sign-out always clears after them.
	userWrites sync.Mutex

	loginBusy atomic.Bool
	refresh   fetch.Latest[*models.User]
	startOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
}

type ManagerOption func(*SessionManager)

func WithClock(c clockx.Clock) ManagerOption {
	return func(m *SessionManager) { m.clock = c }
}

func WithLogger(l logging.Logger) ManagerOption {
	return func(m *SessionManager) { m.log = l }
}

func WithNotifier(n Notifier) ManagerOption {
	return func(m *SessionManager) { m.notifier = n }
}

func WithRevalidateInterval(d time.Duration) ManagerOption {
	return func(m *SessionManager) { m.revalidateEvery = d }
}

// WithIdleConfig sets the idle timer. cfg.Enabled switches the feature on or
// off; the manager arms the timer only while someone is signed in. The
// callbacks are owned by the manager and overwritten.
func WithIdleConfig(cfg idle.Config) ManagerOption {
	return func(m *SessionManager) { m.idleCfg = cfg }
}

// NewSessionManager builds a manager in the loading state. Call Start to
// restore a previous session.
func NewSessionManager(auth AuthService, store session.Store, opts ...ManagerOption) (*SessionManager, error) {
	m := &SessionManager{
		auth:            auth,
		store:           store,
		clock:           clockx.New(),
		log:             logging.NewNop(),
		notifier:        nopNotifier{},
		revalidateEvery: DefaultRevalidateInterval,
		idleCfg:         idle.DefaultConfig(),
		loading:         true,
		ready:           make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}

	if m.revalidateEvery <= 0 {
		return nil, fmt.Errorf("revalidate interval must be positive, got %s", m.revalidateEvery)
	}

	if m.idleCfg.Enabled {
		cfg := m.idleCfg
		cfg.Enabled = false
		cfg.OnTimeout = m.onIdleTimeout
		cfg.OnWarning = m.onIdleWarning
		t, err := idle.New(cfg, idle.WithClock(m.clock))
		if err != nil {
			return nil, err
		}
		m.idle = t
	}
	return m, nil
}

// Start restores the session persisted by a previous run. It returns once
// the local checks are done; the backend check of a restored session runs in
// the background and Ready is closed when it settles.
func (m *SessionManager) Start(ctx context.Context) {
	m.startOnce.Do(func() { m.initialize(ctx) })
}

// Ready is closed when the manager leaves the loading state.
func (m *SessionManager) Ready() <-chan struct{} {
	return m.ready
}

func (m *SessionManager) initialize(ctx context.Context) {
	tok, err := m.store.Token(ctx)
	if err != nil {
		m.log.Error(ctx, "cannot read stored token", "error", err)
		m.finishLoading()
		return
	}
	cached, err := m.store.User(ctx)
	if err != nil {
		m.log.Error(ctx, "cannot read stored user", "error", err)
		m.finishLoading()
		return
	}

	switch {
	case tok == "" || cached == nil:
		m.finishLoading()
		return
	case !token.IsValidFormat(tok):
		m.clearStore(ctx, "malformed token on startup")
		m.finishLoading()
		return
	case token.IsExpiredAt(tok, m.clock.Now()):
		m.clearStore(ctx, "token expired on startup")
		m.finishLoading()
		return
	}

	// trust the cache until the backend answers
	m.mu.Lock()
	m.user = cached
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.finishLoading()
		m.validateRestored(ctx)
	}()
}

// validateRestored asks the backend who the token belongs to.
func (m *SessionManager) validateRestored(ctx context.Context) {
	_, err := m.refresh.Do(ctx, m.auth.CurrentUser, m.adoptFetchedUser(ctx))
	switch {
	case err == nil, errors.Is(err, fetch.ErrSuperseded):
	case errors.Is(err, client.ErrInvalidLocalToken):
		m.setUser(nil)
	default:
		m.keepCachedUser(ctx, err)
	}
}

// keepCachedUser is the availability-over-freshness policy: when the backend
// can't confirm a restored session, the operator keeps working with the
// cached user until something local proves the session invalid. A token the
// server rejects lands here too; the periodic expiry check or the next
// authenticated call ends that session.
func (m *SessionManager) keepCachedUser(ctx context.Context, err error) {
	m.log.Warn(ctx, "could not confirm restored session, keeping cached user", "error", err)
}

func (m *SessionManager) finishLoading() {
	m.mu.Lock()
	m.loading = false
	m.syncLocked()
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
}

// adoptFetchedUser returns the commit for a user fetch. It runs only for the
// newest fetch, so a response that lost to a logout or a login never reaches
// the store.
func (m *SessionManager) adoptFetchedUser(ctx context.Context) func(*models.User) {
	return func(u *models.User) {
		if u == nil {
			return
		}
		m.userWrites.Lock()
		defer m.userWrites.Unlock()

		if !m.IsAuthenticated() {
			return
		}
		if err := m.store.SetUser(ctx, u); err != nil {
			m.log.Warn(ctx, "failed to cache fetched user", "user_id", u.ID, "error", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.user != nil {
			m.user = u
		}
	}
}

func (m *SessionManager) setUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
	m.syncLocked()
}

// syncLocked arms the idle timer and the periodic check while a settled
// session exists and disarms both otherwise.
func (m *SessionManager) syncLocked() {
	active := m.user != nil && !m.loading && !m.closed

	if m.idle != nil {
		m.idle.SetEnabled(active)
	}

	switch {
	case active && m.revalidate == nil:
		m.scheduleRevalidationLocked()
	case !active && m.revalidate != nil:
		m.revalidate.Stop()
		m.revalidate = nil
		m.revalGen++
	}
}

func (m *SessionManager) scheduleRevalidationLocked() {
	m.revalGen++
	gen := m.revalGen
	m.revalidate = m.clock.AfterFunc(m.revalidateEvery, func() { m.revalidateTick(gen) })
}

func (m *SessionManager) revalidateTick(gen uint64) {
	m.mu.Lock()
	if gen != m.revalGen || m.closed || m.user == nil {
		m.mu.Unlock()
		return
	}
	m.revalidate = nil
	m.mu.Unlock()

	ctx := context.Background()
	tok, err := m.store.Token(ctx)
	if err != nil {
		m.log.Warn(ctx, "periodic token check could not read the store", "error", err)
	} else if token.IsExpiredAt(tok, m.clock.Now()) {
		m.log.Info(ctx, "token expired during session")
		_ = m.endSession(ctx, ReasonTokenExpired, MsgSessionExpired)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && m.user != nil && m.revalidate == nil {
		m.scheduleRevalidationLocked()
	}
}

func (m *SessionManager) onIdleWarning(remaining time.Duration) {
	if m.isClosed() {
		return
	}
	m.notifier.IdleWarning(remaining)
}

func (m *SessionManager) onIdleTimeout() {
	if m.isClosed() {
		return
	}
	ctx := context.Background()
	m.log.Info(ctx, "signing out after inactivity")
	_ = m.endSession(ctx, ReasonIdleTimeout, MsgIdleTimeout)
}

// endSession is the single path every sign-out takes. It is idempotent;
// notice, when non-empty, goes to the notifier if a session actually ended.
func (m *SessionManager) endSession(ctx context.Context, reason EndReason, notice string) error {
	m.refresh.Cancel()

	m.userWrites.Lock()

	m.mu.Lock()
	user := m.user
	m.user = nil
	m.syncLocked()
	m.mu.Unlock()

	if user == nil {
		defer m.userWrites.Unlock()
		return m.store.Clear(ctx, string(reason))
	}

	err := m.auth.Logout(ctx, string(reason))
	if perr := m.store.ClearProfileData(ctx, user.ID); perr != nil {
		m.log.Warn(ctx, "failed to clear profile data", "user_id", user.ID, "error", perr)
	}
	m.userWrites.Unlock()

	m.log.Info(ctx, "session ended", "reason", string(reason), "user_id", user.ID)

	if notice != "" {
		m.notifier.SessionEnded(reason, notice)
	}
	return err
}

func (m *SessionManager) clearStore(ctx context.Context, reason string) {
	if err := m.store.Clear(ctx, reason); err != nil {
		m.log.Error(ctx, "failed to clear session", "reason", reason, "error", err)
	}
}

// failure turns a gateway error into a Result.
func (m *SessionManager) failure(ctx context.Context, op string, err error) Result {
	var apiErr *client.APIError

	switch {
	case errors.Is(err, context.Canceled):
		return fail(CodeInternal, MsgCancelled)
	case client.IsAdminDenied(err):
		errors.As(err, &apiErr)
		return fail(CodeAdminRequired, apiErr.Message)
	case errors.Is(err, client.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		m.log.Warn(ctx, op+" failed: backend unreachable", "error", err)
		return fail(CodeNetwork, MsgNetwork)
	case errors.Is(err, client.ErrInvalidLocalToken):
		return fail(CodeLocalValidation, MsgSessionInvalid)
	case errors.As(err, &apiErr):
		if errors.Is(apiErr, client.ErrUnauthorized) {
			return fail(CodeAuth, apiErr.Message)
		}
		return fail(CodeServer, apiErr.Message)
	case errors.Is(err, client.ErrLocalDataNotAvailable):
		m.log.Error(ctx, op+" failed: local storage", "error", err)
		return fail(CodeStorage, "Local session storage is unavailable")
	default:
		m.log.Error(ctx, op+" failed", "error", err)
		return fail(CodeInternal, err.Error())
	}
}

// Login signs an operator in. Only one login runs at a time; a second call
// while one is in flight fails without touching the network. Once issued the
// backend call is not cancelled with ctx.
func (m *SessionManager) Login(ctx context.Context, identifier, password string) Result {
	if !m.loginBusy.CompareAndSwap(false, true) {
		return fail(CodeInProgress, MsgLoginInProgress)
	}
	defer m.loginBusy.Store(false)

	m.refresh.Cancel()

	ctx = context.WithoutCancel(ctx)
	if _, err := m.auth.Login(ctx, identifier, password); err != nil {
		return m.failure(ctx, "login", err)
	}
	return m.adoptStoredSession(ctx, "login")
}

// Register creates an account and signs it in when the backend returns a
// session.
func (m *SessionManager) Register(ctx context.Context, req client.RegisterRequest) Result {
	ctx = context.WithoutCancel(ctx)
	resp, err := m.auth.Register(ctx, req)
	if err != nil {
		return m.failure(ctx, "register", err)
	}
	if !resp.HasSession() {
		return succeeded
	}
	m.refresh.Cancel()
	return m.adoptStoredSession(ctx, "register")
}

// adoptStoredSession reads back what the gateway just wrote and makes it the
// current session. A store that doesn't hold both halves fails the action.
func (m *SessionManager) adoptStoredSession(ctx context.Context, op string) Result {
	tok, terr := m.store.Token(ctx)
	user, uerr := m.store.User(ctx)
	if terr != nil || uerr != nil || tok == "" || user == nil {
		m.log.Error(ctx, op+": session missing from store after write",
			"token_present", tok != "", "user_present", user != nil, "token_err", terr, "user_err", uerr)
		m.clearStore(ctx, op+" read-back failed")
		return fail(CodeConsistency, MsgSessionSaveFailed)
	}

	m.setUser(user)
	m.log.Info(ctx, "operator signed in", "user_id", user.ID, "role", string(user.Role))
	return succeeded
}

// Logout signs the operator out. Calling it without a session is harmless.
func (m *SessionManager) Logout(ctx context.Context) Result {
	if err := m.endSession(ctx, ReasonUserLogout, ""); err != nil {
		m.log.Error(ctx, "logout could not clear local storage", "error", err)
		return fail(CodeStorage, "Signed out, but local session data could not be removed")
	}
	return succeeded
}

// UpdateUser merges patch into the current user locally, without calling
// the backend.
func (m *SessionManager) UpdateUser(ctx context.Context, patch models.UserPatch) bool {
	m.userWrites.Lock()
	defer m.userWrites.Unlock()

	cur := m.User()
	if cur == nil {
		return false
	}
	next := patch.Apply(cur)
	if err := m.store.SetUser(ctx, next); err != nil {
		m.log.Error(ctx, "failed to persist user update", "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil || m.user.ID != next.ID {
		return false
	}
	m.user = next
	return true
}

// UpdateUserProfile sends patch to the backend and adopts the user it returns.
func (m *SessionManager) UpdateUserProfile(ctx context.Context, patch models.UserPatch) Result {
	if !m.IsAuthenticated() {
		return fail(CodeNotAuthenticated, MsgNotAuthenticated)
	}
	user, err := m.auth.UpdateProfile(ctx, patch)
	if err != nil {
		return m.failure(ctx, "update profile", err)
	}
	m.replaceUserIfSignedIn(user)
	return succeeded
}

func (m *SessionManager) ChangePassword(ctx context.Context, current, next string) Result {
	if !m.IsAuthenticated() {
		return fail(CodeNotAuthenticated, MsgNotAuthenticated)
	}
	resp, err := m.auth.ChangePassword(ctx, current, next)
	if err != nil {
		return m.failure(ctx, "change password", err)
	}
	if resp.HasSession() {
		m.replaceUserIfSignedIn(resp.Data.User)
	}
	return succeeded
}

// CreateAdmin asks the backend to create another admin. Only admins may.
func (m *SessionManager) CreateAdmin(ctx context.Context, req client.RegisterRequest) Result {
	if !m.IsAuthenticated() {
		return fail(CodeNotAuthenticated, MsgNotAuthenticated)
	}
	if !m.IsAdmin() {
		return fail(CodeAdminRequired, MsgAdminRequired)
	}
	if _, err := m.auth.CreateAdmin(ctx, req); err != nil {
		return m.failure(ctx, "create admin", err)
	}
	return succeeded
}

// Refresh re-fetches the current user. A newer Refresh, a login or a logout
// supersedes one still in flight.
func (m *SessionManager) Refresh(ctx context.Context) Result {
	if !m.IsAuthenticated() {
		return fail(CodeNotAuthenticated, MsgNotAuthenticated)
	}

	_, err := m.refresh.Do(ctx, m.auth.CurrentUser, m.adoptFetchedUser(ctx))
	switch {
	case err == nil:
		return succeeded
	case errors.Is(err, fetch.ErrSuperseded):
		return fail(CodeSuperseded, "Superseded by a newer request")
	case errors.Is(err, client.ErrInvalidLocalToken):
		_ = m.endSession(ctx, ReasonTokenExpired, MsgSessionExpired)
		return fail(CodeLocalValidation, MsgSessionInvalid)
	default:
		return m.failure(ctx, "refresh", err)
	}
}

func (m *SessionManager) replaceUserIfSignedIn(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil || u == nil {
		return
	}
	m.user = u
}

// ProfileData returns the current user's profile extension, nil when none
// is stored or nobody is signed in.
func (m *SessionManager) ProfileData(ctx context.Context) *models.ProfileData {
	u := m.User()
	if u == nil {
		return nil
	}
	d, err := m.store.ProfileData(ctx, u.ID)
	if err != nil {
		m.log.Warn(ctx, "failed to read profile data", "error", err)
		return nil
	}
	return d
}

func (m *SessionManager) SaveProfileData(ctx context.Context, d *models.ProfileData) bool {
	u := m.User()
	if u == nil || d == nil {
		return false
	}
	if err := m.store.SetProfileData(ctx, u.ID, d); err != nil {
		m.log.Error(ctx, "failed to save profile data", "error", err)
		return false
	}
	return true
}

// ClearProfileData removes the current user's profile extension.
func (m *SessionManager) ClearProfileData(ctx context.Context) bool {
	u := m.User()
	if u == nil {
		return false
	}
	if err := m.store.ClearProfileData(ctx, u.ID); err != nil {
		m.log.Error(ctx, "failed to clear profile data", "error", err)
		return false
	}
	return true
}

// CheckConsistency signs the operator out when the store no longer holds
// the session the manager believes in. It reports whether the session (or
// its absence) is consistent.
func (m *SessionManager) CheckConsistency(ctx context.Context) bool {
	m.mu.RLock()
	user, loading := m.user, m.loading
	m.mu.RUnlock()

	if user == nil || loading {
		return true
	}

	tok, terr := m.store.Token(ctx)
	stored, uerr := m.store.User(ctx)
	if terr != nil || uerr != nil {
		// unreadable is not the same as missing
		m.log.Warn(ctx, "consistency check could not read the store", "token_err", terr, "user_err", uerr)
		return true
	}

	if tok == "" || stored == nil || stored.ID != user.ID {
		m.log.Warn(ctx, "stored session does not match memory, signing out",
			"token_present", tok != "", "user_present", stored != nil)
		_ = m.endSession(ctx, ReasonDataMismatch, MsgDataMismatch)
		return false
	}
	return true
}

// RecordActivity feeds an activity event to the idle timer.
func (m *SessionManager) RecordActivity(event string) bool {
	if m.idle == nil {
		return false
	}
	return m.idle.Activity(event)
}

// IdleRemaining is the time left before the idle timeout, zero when the
// timer is not armed.
func (m *SessionManager) IdleRemaining() time.Duration {
	if m.idle == nil {
		return 0
	}
	return m.idle.Remaining()
}

func (m *SessionManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{User: m.user.Clone(), IsLoading: m.loading}
}

func (m *SessionManager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone()
}

func (m *SessionManager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

func (m *SessionManager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.IsAdmin()
}

func (m *SessionManager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// SelfTest proxies the storage self-test for diagnostics.
func (m *SessionManager) SelfTest(ctx context.Context) session.SelfTestResult {
	return m.store.SelfTest(ctx)
}

func (m *SessionManager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close stops every timer the manager owns and waits for the background
// startup check. Late timer callbacks become no-ops.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.syncLocked()
	m.mu.Unlock()

	if m.idle != nil {
		m.idle.Stop()
	}
	m.refresh.Cancel()
	m.wg.Wait()
}
