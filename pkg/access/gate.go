// Package access decides whether a request may proceed and how much demo
// quota it has left.
//
// A caller is either privileged (presents the shared admin password) or a
// demo caller identified by a session id and capped by a Ledger. A
// password, when present, always takes precedence over a session id.
package access

import (
	"context"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/ledger"
	"github.com/otherjamesbrown/minutes/pkg/logging"
)

// Unlimited is the Remaining value reported for privileged callers.
const Unlimited = -1

// DefaultDemoLimit is the number of free requests per demo session.
const DefaultDemoLimit = 5

// Caller-visible messages.
const (
	MsgInvalidPassword  = "Invalid password"
	MsgAuthRequired     = "Authentication required. Please provide sessionId or password."
	DefaultLimitMessage = "Demo limit reached. Please use admin password for unlimited access."
)

// Credentials are the authentication fields a request may carry.
type Credentials struct {
	Password  string
	SessionID string
	// MalformedPassword is set when a password was supplied with a
	// non-string value. It never matches the admin secret.
	MalformedPassword bool
}

// Grant is the outcome of a successful authorization.
type Grant struct {
	Privileged bool
	// Remaining is the number of demo uses left, or Unlimited.
	Remaining int
	// SessionID is set for demo callers.
	SessionID string
}

// Config configures a Gate.
type Config struct {
	// AdminPassword is the shared secret for privileged callers.
	AdminPassword string
	// AdminPasswordHash is a bcrypt hash of the secret. When set it is
	// used instead of AdminPassword.
	AdminPasswordHash string
	// DemoLimit caps demo sessions (default DefaultDemoLimit).
	DemoLimit int
	// LimitMessage is returned when a session is out of quota.
	LimitMessage string
}

// Gate authorizes requests against the admin secret and a usage ledger.
type Gate struct {
	config Config
	ledger ledger.Ledger
	logger logging.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

// NewGate creates a Gate. The ledger is only consulted for demo callers.
func NewGate(config Config, l ledger.Ledger, opts ...Option) *Gate {
	if config.DemoLimit <= 0 {
		config.DemoLimit = DefaultDemoLimit
	}
	if config.LimitMessage == "" {
		config.LimitMessage = DefaultLimitMessage
	}
	g := &Gate{
		config: config,
		ledger: l,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DemoLimit returns the configured quota per demo session.
func (g *Gate) DemoLimit() int {
	return g.config.DemoLimit
}

// Authorize checks creds and, for demo callers, consumes one use.
//
// A wrong password fails with Unauthorized without touching the ledger,
// even if a valid session id is also present. A demo session at its limit
// fails with RateLimited and its record is left unchanged.
func (g *Gate) Authorize(ctx context.Context, creds Credentials) (Grant, error) {
	log := g.logger.WithContext(ctx)

	if creds.Password != "" || creds.MalformedPassword {
		if creds.MalformedPassword || !g.passwordMatches(creds.Password) {
			log.Warn("admin password rejected")
			return Grant{}, mnerrors.Unauthorized(MsgInvalidPassword)
		}
		return Grant{Privileged: true, Remaining: Unlimited}, nil
	}

	if creds.SessionID == "" {
		return Grant{}, mnerrors.Unauthorized(MsgAuthRequired)
	}

	rec, err := g.ledger.Consume(ctx, creds.SessionID, g.config.DemoLimit)
	if errors.Is(err, ledger.ErrLimitReached) {
		log.Info("demo limit reached",
			logging.F("session_id", creds.SessionID),
			logging.F("usage_count", rec.UsageCount),
		)
		return Grant{}, mnerrors.RateLimited(g.config.LimitMessage)
	}
	if err != nil {
		return Grant{}, mnerrors.Internal("usage ledger unavailable", err)
	}

	return Grant{
		Remaining: rec.Remaining(g.config.DemoLimit),
		SessionID: creds.SessionID,
	}, nil
}

// passwordMatches reports whether password equals the configured secret.
// With no secret configured nothing matches.
func (g *Gate) passwordMatches(password string) bool {
	if g.config.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(g.config.AdminPasswordHash), []byte(password)) == nil
	}
	if g.config.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(g.config.AdminPassword)) == 1
}
