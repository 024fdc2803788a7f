// Package session issues, rotates and revokes sessions. A session is a short
// lived signed access credential plus an opaque refresh credential persisted
// by the credential store.
//
// Rotation relies on the store alone for mutual exclusion: of two requests
// presenting the same refresh secret, only the one whose conditional revoke
// flips the row gets a successor.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kochabx/portal/core/auth/jwt"
	"github.com/kochabx/portal/core/rate"
	"github.com/kochabx/portal/credential"
	"github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/log"
)

type Manager struct {
	cfg      Config
	store    credential.Store
	users    UserStore
	issuer   *jwt.Issuer
	limiter  *rate.Limiter
	notifier Notifier
	onRevoke func(ctx context.Context, subjectID string)
	observe  func(op, outcome string)
	now      func() time.Time
	logger   *log.Logger
}

type Option func(*Manager)

func WithLimiter(l *rate.Limiter) Option {
	return func(m *Manager) {
		m.limiter = l
	}
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithRevokeHook runs after RevokeAll, e.g. to drop cached user views.
func WithRevokeHook(fn func(ctx context.Context, subjectID string)) Option {
	return func(m *Manager) {
		m.onRevoke = fn
	}
}

// WithObserver receives the outcome of every operation, for metrics.
func WithObserver(fn func(op, outcome string)) Option {
	return func(m *Manager) {
		m.observe = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(cfg Config, store credential.Store, users UserStore, issuer *jwt.Issuer, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		users:  users,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrGlobal(m.logger).Component("session")
	return m
}

type LoginInput struct {
	Email         string
	Password      string
	Remember      bool
	DeviceLabel   string
	OriginAddress string
	DeviceID      string
}

type RefreshInput struct {
	Secret        string
	DeviceLabel   string
	OriginAddress string
	DeviceID      string
}

// Result of a login or refresh. RefreshSecret goes into the cookie and is
// never logged.
type Result struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshSecret   string
	RefreshTTL      time.Duration
	User            *User
}

// TokenStatus describes a presented access credential.
type TokenStatus struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Reason    string    `json:"reason,omitempty"`
}

// Session is the public view of an active refresh credential.
type Session struct {
	ID            string     `json:"id"`
	DeviceLabel   string     `json:"deviceLabel,omitempty"`
	OriginAddress string     `json:"originAddress,omitempty"`
	IssuedAt      time.Time  `json:"issuedAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
}

// dummyHash keeps unknown emails as slow as wrong passwords.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("portal-timing-equalizer"), bcrypt.DefaultCost)
	return h
})

func (m *Manager) consume(ctx context.Context, id rate.Identity, bucket string) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Consume(ctx, id, bucket).Err()
}

func (m *Manager) record(op string, err error) {
	if m.observe == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = errors.Reason(err)
	}
	m.observe(op, outcome)
}

// fail logs infrastructure failures at error and everything else at debug.
func (m *Manager) fail(op string, err error) error {
	m.record(op, err)
	if errors.Code(err) >= 500 {
		m.logger.Error().Err(err).Str("op", op).Msg("session operation failed")
	} else {
		m.logger.Debug().Str("op", op).Str("reason", errors.Reason(err)).Msg("session operation rejected")
	}
	return err
}

// Login verifies the password and opens a new session.
func (m *Manager) Login(ctx context.Context, in LoginInput) (*Result, error) {
	const op = "login"
	if err := m.consume(ctx, rate.Identity{IP: in.OriginAddress, DeviceID: in.DeviceID}, rate.BucketLogin); err != nil {
		return nil, m.fail(op, err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, m.fail(op, ErrInvalidCredentials)
	}

	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(in.Password))
		return nil, m.fail(op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, m.fail(op, storageError(err))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, m.fail(op, ErrInvalidCredentials)
	}
	if !user.CanSignIn() {
		return nil, m.fail(op, ErrAccountDisabled)
	}

	if m.cfg.SingleSession {
		n, err := m.store.RevokeAllForSubject(ctx, user.ID)
		if err != nil {
			return nil, m.fail(op, storageError(err))
		}
		if n > 0 {
			m.logger.Debug().Str("user_id", user.ID).Int64("revoked", n).Msg("previous sessions revoked")
		}
	}

	res, err := m.open(ctx, user, m.cfg.refreshTTL(in.Remember), in.DeviceLabel, in.OriginAddress)
	if err != nil {
		return nil, m.fail(op, err)
	}

	if m.cfg.NotifyOnLogin {
		m.notify(ctx, user, in)
	}
	m.record(op, nil)
	m.logger.Info().Str("user_id", user.ID).Str("ip", in.OriginAddress).Msg("user logged in")
	return res, nil
}

func (m *Manager) open(ctx context.Context, user *User, ttl time.Duration, device, origin string) (*Result, error) {
	access, exp, err := m.issuer.Issue(jwt.Subject{ID: user.ID, Role: user.Role, Email: user.Email})
	if err != nil {
		return nil, errors.Internal("issue access token").WithCause(err)
	}
	secret, err := credential.NewSecret()
	if err != nil {
		return nil, errors.Internal("generate refresh secret").WithCause(err)
	}

	if _, err := m.store.Create(ctx, credential.CreateParams{
		SubjectID:     user.ID,
		Secret:        secret,
		Kind:          credential.KindRefresh,
		TTL:           ttl,
		DeviceLabel:   device,
		OriginAddress: origin,
	}); err != nil {
		return nil, storageError(err)
	}

	return &Result{
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshSecret:   secret,
		RefreshTTL:      ttl,
		User:            user,
	}, nil
}

func (m *Manager) notify(ctx context.Context, user *User, in LoginInput) {
	if m.notifier == nil {
		return
	}
	args := map[string]string{
		"name":   user.Name,
		"device": in.DeviceLabel,
		"ip":     in.OriginAddress,
		"time":   m.now().UTC().Format(time.RFC3339),
	}
	if err := m.notifier.Send(context.WithoutCancel(ctx), user.Email, TemplateNewLogin, args); err != nil {
		m.logger.Warn().Err(err).Str("user_id", user.ID).Msg("login notification not sent")
	}
}

// Refresh exchanges a refresh secret for a new one and a new access
// credential. The successor keeps the lifetime the predecessor was issued
// with. A secret that was already rotated, revoked or has expired yields
// ErrInvalidSession, including for the loser of a concurrent refresh.
func (m *Manager) Refresh(ctx context.Context, in RefreshInput) (*Result, error) {
	const op = "refresh"
	if err := m.consume(ctx, rate.Identity{IP: in.OriginAddress, DeviceID: in.DeviceID}, rate.BucketRefresh); err != nil {
		return nil, m.fail(op, err)
	}
	if in.Secret == "" {
		return nil, m.fail(op, ErrNoToken)
	}

	prev, err := m.store.FindActiveBySecret(ctx, in.Secret, credential.KindRefresh)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, m.fail(op, ErrInvalidSession)
	}
	if err != nil {
		return nil, m.fail(op, storageError(err))
	}

	user, err := m.users.FindByID(ctx, prev.SubjectID)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !user.CanSignIn()) {
		if _, rerr := m.store.Revoke(ctx, in.Secret); rerr != nil {
			m.logger.Warn().Err(rerr).Str("user_id", prev.SubjectID).Msg("revoke session of unavailable account")
		}
		return nil, m.fail(op, ErrInvalidSession)
	}
	if err != nil {
		return nil, m.fail(op, storageError(err))
	}

	access, exp, err := m.issuer.Issue(jwt.Subject{ID: user.ID, Role: user.Role, Email: user.Email})
	if err != nil {
		return nil, m.fail(op, errors.Internal("issue access token").WithCause(err))
	}
	secret, err := credential.NewSecret()
	if err != nil {
		return nil, m.fail(op, errors.Internal("generate refresh secret").WithCause(err))
	}

	device := in.DeviceLabel
	if device == "" {
		device = prev.DeviceLabel
	}
	next, err := m.store.Rotate(ctx, in.Secret, credential.CreateParams{
		Secret:        secret,
		DeviceLabel:   device,
		OriginAddress: in.OriginAddress,
	})
	if errors.Is(err, credential.ErrNotFound) {
		return nil, m.fail(op, ErrInvalidSession)
	}
	if err != nil {
		return nil, m.fail(op, storageError(err))
	}

	if err := m.store.Touch(ctx, prev.ID, m.now()); err != nil {
		m.logger.Warn().Err(err).Str("credential_id", prev.ID).Msg("last use not recorded")
	}

	m.record(op, nil)
	return &Result{
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshSecret:   secret,
		RefreshTTL:      next.TTL(),
		User:            user,
	}, nil
}

// Logout revokes the presented refresh secret. Unknown or already revoked
// secrets are not an error; the caller clears the cookie either way.
func (m *Manager) Logout(ctx context.Context, secret string) error {
	const op = "logout"
	if secret == "" {
		m.record(op, nil)
		return nil
	}
	revoked, err := m.store.Revoke(ctx, secret)
	if err != nil {
		return m.fail(op, storageError(err))
	}
	m.logger.Debug().Bool("revoked", revoked).Msg("logout")
	m.record(op, nil)
	return nil
}

// RevokeAll ends every session of subjectID, e.g. after a password change.
func (m *Manager) RevokeAll(ctx context.Context, subjectID string) (int64, error) {
	const op = "revoke_all"
	if subjectID == "" {
		return 0, m.fail(op, errors.BadRequest("subject id is required"))
	}
	n, err := m.store.RevokeAllForSubject(ctx, subjectID)
	if err != nil {
		return 0, m.fail(op, storageError(err))
	}
	if m.onRevoke != nil {
		m.onRevoke(ctx, subjectID)
	}
	m.record(op, nil)
	m.logger.Info().Str("user_id", subjectID).Int64("revoked", n).Msg("all sessions revoked")
	return n, nil
}

// Sessions lists the active sessions of subjectID, newest first.
func (m *Manager) Sessions(ctx context.Context, subjectID string) ([]Session, error) {
	const op = "sessions"
	if subjectID == "" {
		return nil, m.fail(op, errors.BadRequest("subject id is required"))
	}
	recs, err := m.store.ListActive(ctx, subjectID)
	if err != nil {
		return nil, m.fail(op, storageError(err))
	}
	out := make([]Session, 0, len(recs))
	for _, r := range recs {
		if r.Kind != credential.KindRefresh {
			continue
		}
		out = append(out, Session{
			ID:            r.ID,
			DeviceLabel:   r.DeviceLabel,
			OriginAddress: r.OriginAddress,
			IssuedAt:      r.IssuedAt,
			ExpiresAt:     r.ExpiresAt,
			LastUsedAt:    r.LastUsedAt,
		})
	}
	m.record(op, nil)
	return out, nil
}

// VerifyAccess checks an access credential without touching storage, so an
// account disabled after issuance keeps access until the credential expires.
func (m *Manager) VerifyAccess(token string) (*jwt.Claims, error) {
	claims, err := m.issuer.Verify(token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrEmptyToken):
		return nil, ErrNoToken
	case errors.Is(err, jwt.ErrExpiredToken):
		return nil, ErrTokenExpired
	default:
		return nil, ErrInvalidToken
	}
}

// TokenStatus reports whether token is currently accepted. Only the rate
// limit is returned as an error.
func (m *Manager) TokenStatus(ctx context.Context, id rate.Identity, token string) (*TokenStatus, error) {
	if err := m.consume(ctx, id, rate.BucketTokenStatus); err != nil {
		return nil, m.fail("token_status", err)
	}
	claims, err := m.VerifyAccess(token)
	if err != nil {
		return &TokenStatus{Reason: errors.FromError(err).Reason}, nil
	}
	return &TokenStatus{Valid: true, ExpiresAt: claims.Expiry()}, nil
}
