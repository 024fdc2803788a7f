// Package user is the account table behind the session layer. Accounts are
// managed elsewhere; the portal reads them and only the CLI writes.
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kochabx/portal/cache"
	"github.com/kochabx/portal/core/util/id"
	perrors "github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/session"
	"github.com/kochabx/portal/store/db"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	minPassword = 8
)

var (
	ErrEmailTaken   = perrors.Conflict("email already registered").WithReason("EMAIL_TAKEN")
	ErrWeakPassword = perrors.BadRequest("password must have at least %d characters", minPassword).WithReason("WEAK_PASSWORD")
	ErrInvalidEmail = perrors.BadRequest("invalid email").WithReason("INVALID_EMAIL")
	ErrInvalidRole  = perrors.BadRequest("unknown role").WithReason("INVALID_ROLE")
)

// Account is a row of the users table.
type Account struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	Name         string `gorm:"size:128"`
	Role         string `gorm:"size:32;not null;default:user"`
	PasswordHash string `gorm:"size:72;not null"`
	Active       bool   `gorm:"not null"`
	Approved     bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Account) TableName() string {
	return "users"
}

func (a *Account) view() *session.User {
	return &session.User{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Role:         a.Role,
		PasswordHash: a.PasswordHash,
		Active:       a.Active,
		Approved:     a.Approved,
	}
}

// cached is what goes into the cache: everything but the password hash.
type cached struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
	Approved bool   `json:"approved"`
}

func (c cached) user() *session.User {
	return &session.User{ID: c.ID, Email: c.Email, Name: c.Name, Role: c.Role, Active: c.Active, Approved: c.Approved}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	if len(password) < minPassword {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

var _ session.UserStore = (*Repository)(nil)

type Repository struct {
	db      *gorm.DB
	retry   db.RetryConfig
	timeout time.Duration
	views   *cache.Loader[cached]
	logger  *log.Logger

	cache    cache.Cache
	cacheTTL time.Duration
}

type Option func(*Repository)

// WithCache serves FindByID from c for ttl. Writes through this repository
// invalidate the entry; other writers must call Invalidate.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Repository) {
		r.cache, r.cacheTTL = c, ttl
	}
}

func WithRetry(cfg db.RetryConfig) Option {
	return func(r *Repository) {
		r.retry = cfg
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func NewRepository(client *db.Client, opts ...Option) *Repository {
	r := &Repository{
		db:      client.DB(),
		retry:   db.RetryConfig{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.OrGlobal(r.logger).Component("user")
	if r.cache != nil && r.cacheTTL > 0 {
		r.views = cache.NewLoader[cached](r.cache, r.cacheTTL, r.logger)
	}
	return r
}

func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Account{})
}

func (r *Repository) exec(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.Retry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return fn(r.db.WithContext(ctx))
	})
}

func (r *Repository) take(ctx context.Context, query string, arg any) (*Account, error) {
	var a Account
	err := r.exec(ctx, func(tx *gorm.DB) error {
		return tx.Where(query, arg).Take(&a).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func cacheKey(id string) string {
	return "user:" + id
}

// FindByID returns the account without its password hash.
func (r *Repository) FindByID(ctx context.Context, id string) (*session.User, error) {
	if id == "" {
		return nil, session.ErrUserNotFound
	}
	load := func(ctx context.Context) (cached, error) {
		a, err := r.take(ctx, "id = ?", id)
		if err != nil {
			return cached{}, err
		}
		return cached{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role, Active: a.Active, Approved: a.Approved}, nil
	}

	if r.views == nil {
		c, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return c.user(), nil
	}
	c, err := r.views.Get(ctx, cacheKey(id), load)
	if err != nil {
		return nil, err
	}
	return c.user(), nil
}

// FindByEmail always reads the table; it is the only lookup that returns
// the password hash.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*session.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, session.ErrUserNotFound
	}
	a, err := r.take(ctx, "email = ?", email)
	if err != nil {
		return nil, err
	}
	return a.view(), nil
}

type CreateParams struct {
	Email    string
	Name     string
	Password string
	Role     string
	Approved bool
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (*session.User, error) {
	email := NormalizeEmail(p.Email)
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if p.Role == "" {
		p.Role = RoleUser
	}
	if p.Role != RoleUser && p.Role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		ID:           id.New(),
		Email:        email,
		Name:         p.Name,
		Role:         p.Role,
		PasswordHash: hash,
		Active:       true,
		Approved:     p.Approved,
	}
	err = r.exec(ctx, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&Account{}).Where("email = ?", email).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrEmailTaken
			}
			return tx.Create(a).Error
		})
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("user_id", a.ID).Str("role", a.Role).Msg("account created")
	return a.view(), nil
}

// SetStatus changes the sign-in flags of an account. The caller revokes the
// sessions of a disabled account.
func (r *Repository) SetStatus(ctx context.Context, id string, active, approved bool) error {
	err := r.exec(ctx, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			var a Account
			if err := tx.Select("id").Where("id = ?", id).Take(&a).Error; err != nil {
				return err
			}
			return tx.Model(&a).Updates(map[string]any{"active": active, "approved": approved}).Error
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	r.Invalidate(ctx, id)
	return nil
}

// Invalidate drops the cached view of id.
func (r *Repository) Invalidate(ctx context.Context, id string) {
	if r.views != nil {
		r.views.Invalidate(ctx, cacheKey(id))
	}
}
