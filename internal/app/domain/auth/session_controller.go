package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roamly-app/roamly/internal/app/models"
)

// State is the lifecycle phase of the session controller.
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Controller owns the authoritative session state for the process. It
// hydrates once on startup, tracks provider auth events afterwards, and
// never stays stuck in a loading phase: a watchdog forces the logged-out
// ready state when hydration takes too long.
type Controller struct {
	logger   *zap.Logger
	provider Provider

	signOutTimeout  time.Duration
	hydrateDeadline time.Duration

	hydrateGroup singleflight.Group

	mu      sync.RWMutex
	state   State
	session *models.Session

	// onChange fires after every session transition, outside the lock.
	// A nil session means logged out.
	onChange func(session *models.Session)

	unsubscribe UnsubscribeFunc
}

func NewController(provider Provider, signOutTimeout, hydrateDeadline time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		logger:          logger,
		provider:        provider,
		signOutTimeout:  signOutTimeout,
		hydrateDeadline: hydrateDeadline,
		state:           StateUninitialized,
	}
}

// SetOnChange installs the transition hook. Must be called before Start.
func (c *Controller) SetOnChange(fn func(session *models.Session)) {
	c.onChange = fn
}

// Start subscribes to provider events and hydrates the initial session.
func (c *Controller) Start(ctx context.Context) {
	c.unsubscribe = c.provider.OnAuthStateChange(c.handleEvent)
	c.Hydrate(ctx)
}

// Stop detaches from the provider event stream.
func (c *Controller) Stop() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Hydrate restores the persisted session. Concurrent callers share one
// in-flight restore. Whatever happens, the controller reaches the ready
// state within the hydration deadline.
func (c *Controller) Hydrate(ctx context.Context) {
	c.hydrateGroup.Do("hydrate", func() (any, error) {
		c.setState(StateHydrating)

		type result struct {
			session *models.Session
			err     error
		}
		done := make(chan result, 1)
		hctx, cancel := context.WithTimeout(ctx, c.hydrateDeadline)
		defer cancel()

		go func() {
			session, err := c.provider.GetSession(hctx)
			done <- result{session, err}
		}()

		select {
		case res := <-done:
			if res.err != nil {
				c.logger.Warn("Session hydration failed, starting logged out", zap.Error(res.err))
				c.applySession(nil)
				return nil, nil
			}
			c.applySession(res.session)
		case <-hctx.Done():
			c.logger.Warn("Session hydration timed out, starting logged out",
				zap.Duration("deadline", c.hydrateDeadline))
			c.applySession(nil)
		}
		return nil, nil
	})
}

// Logout races the remote sign-out against its timeout. The local session
// is cleared no matter how the remote call ends.
func (c *Controller) Logout(ctx context.Context) {
	done := make(chan error, 1)
	sctx, cancel := context.WithTimeout(ctx, c.signOutTimeout)
	defer cancel()

	go func() {
		done <- c.provider.SignOut(sctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("Remote sign out failed, cleared locally anyway", zap.Error(err))
		}
	case <-sctx.Done():
		c.logger.Warn("Remote sign out timed out, cleared locally anyway",
			zap.Duration("timeout", c.signOutTimeout))
	}

	c.applySession(nil)
}

// CurrentSession returns a copy of the active session, or nil when logged
// out or not yet hydrated.
func (c *Controller) CurrentSession() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	session := *c.session
	return &session
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) handleEvent(event models.AuthEvent, session *models.Session) {
	switch event {
	case models.AuthSignedIn, models.AuthTokenRefreshed:
		if session == nil {
			return
		}
		c.mu.RLock()
		current := c.session
		c.mu.RUnlock()
		// Token refreshes and duplicate sign-in events for the same account
		// must not retrigger downstream re-synchronization.
		if current != nil && current.Email == session.Email {
			c.logger.Debug("Ignoring auth event for already-active session",
				zap.String("event", string(event)))
			return
		}
		c.applySession(session)
	case models.AuthSignedOut:
		c.applySession(nil)
	}
}

func (c *Controller) applySession(session *models.Session) {
	c.mu.Lock()
	// Hydration may see the same session twice: once through the provider's
	// token-refresh event and once from the restore result. Applying it again
	// would re-fire onChange for an unchanged account.
	if c.state == StateReady && sameAccount(c.session, session) {
		c.mu.Unlock()
		return
	}
	c.state = StateReady
	c.session = session
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(session)
	}
}

func sameAccount(a, b *models.Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Email == b.Email
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
