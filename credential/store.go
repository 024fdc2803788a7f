package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kochabx/portal/core/util/id"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/store/db"
)

type Store interface {
	Create(ctx context.Context, p CreateParams) (*Record, error)
	FindActiveBySecret(ctx context.Context, secret string, kind Kind) (*Record, error)
	Revoke(ctx context.Context, secret string) (bool, error)
	RevokeAllForSubject(ctx context.Context, subjectID string) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
	Rotate(ctx context.Context, oldSecret string, p CreateParams) (*Record, error)
	Touch(ctx context.Context, id string, at time.Time) error
	ListActive(ctx context.Context, subjectID string) ([]Record, error)
}

// CreateParams describes a credential to persist. Rotate fills SubjectID,
// Kind and RotatedFrom from the predecessor and inherits its TTL when TTL
// is zero.
type CreateParams struct {
	SubjectID     string
	Secret        string
	Kind          Kind
	TTL           time.Duration
	DeviceLabel   string
	OriginAddress string
	RotatedFrom   string
}

var _ Store = (*DBStore)(nil)

// DBStore is the gorm backed Store. Each call runs under its own timeout and
// transient failures are retried with backoff.
type DBStore struct {
	db      *gorm.DB
	retry   db.RetryConfig
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger
}

type Option func(*DBStore)

func WithRetry(cfg db.RetryConfig) Option {
	return func(s *DBStore) {
		s.retry = cfg
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *DBStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *DBStore) {
		s.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *DBStore) {
		s.logger = l
	}
}

func NewStore(client *db.Client, opts ...Option) *DBStore {
	s := &DBStore{
		db:      client.DB(),
		retry:   db.RetryConfig{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrGlobal(s.logger).Component("credential")
	return s
}

// Migrate creates or updates the credentials table.
func (s *DBStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Record{})
}

func (s *DBStore) exec(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.Retry(ctx, s.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(s.db.WithContext(ctx))
	})
}

func (s *DBStore) clock() time.Time {
	return s.now().UTC()
}

func (s *DBStore) newRecord(p CreateParams, now time.Time) (*Record, error) {
	switch {
	case p.Secret == "":
		return nil, ErrEmptySecret
	case p.SubjectID == "":
		return nil, ErrEmptySubject
	case p.TTL <= 0:
		return nil, ErrInvalidTTL
	}
	if p.Kind == "" {
		p.Kind = KindRefresh
	}

	r := &Record{
		ID:            id.New(),
		SubjectID:     p.SubjectID,
		SecretHash:    HashSecret(p.Secret),
		Kind:          p.Kind,
		IssuedAt:      now,
		ExpiresAt:     now.Add(p.TTL),
		DeviceLabel:   p.DeviceLabel,
		OriginAddress: p.OriginAddress,
	}
	if p.RotatedFrom != "" {
		from := p.RotatedFrom
		r.RotatedFrom = &from
	}
	return r, nil
}

func (s *DBStore) Create(ctx context.Context, p CreateParams) (*Record, error) {
	r, err := s.newRecord(p, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.exec(ctx, func(tx *gorm.DB) error {
		return tx.Create(r).Error
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// FindActiveBySecret evaluates the usability predicate in the query itself.
func (s *DBStore) FindActiveBySecret(ctx context.Context, secret string, kind Kind) (*Record, error) {
	if secret == "" {
		return nil, ErrNotFound
	}
	if kind == "" {
		kind = KindRefresh
	}

	var r Record
	err := s.exec(ctx, func(tx *gorm.DB) error {
		return tx.Where("secret_hash = ? AND kind = ? AND revoked = ? AND expires_at > ?",
			HashSecret(secret), kind, false, s.clock()).Take(&r).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Revoke flips revoked for secret. Only the call that performed the flip
// gets true; revoking an unknown or already revoked secret is not an error.
func (s *DBStore) Revoke(ctx context.Context, secret string) (bool, error) {
	if secret == "" {
		return false, nil
	}

	var affected int64
	err := s.exec(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&Record{}).
			Where("secret_hash = ? AND revoked = ?", HashSecret(secret), false).
			Updates(map[string]any{"revoked": true, "revoked_at": s.clock()})
		affected = res.RowsAffected
		return res.Error
	})
	return affected == 1, err
}

func (s *DBStore) RevokeAllForSubject(ctx context.Context, subjectID string) (int64, error) {
	if subjectID == "" {
		return 0, ErrEmptySubject
	}

	var affected int64
	err := s.exec(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&Record{}).
			Where("subject_id = ? AND revoked = ?", subjectID, false).
			Updates(map[string]any{"revoked": true, "revoked_at": s.clock()})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

// PurgeExpired deletes expired rows whether or not they were revoked.
// Revoked rows that have not expired yet are kept for audit.
func (s *DBStore) PurgeExpired(ctx context.Context) (int64, error) {
	var affected int64
	err := s.exec(ctx, func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", s.clock()).Delete(&Record{})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

// Rotate revokes the active record for oldSecret and inserts its successor
// in one transaction. When another caller already revoked it, nothing is
// inserted and ErrNotFound is returned. Failures before the commit are
// retried; a failed commit is not, since it may have been applied, and is
// reported as db.ErrUnavailable.
func (s *DBStore) Rotate(ctx context.Context, oldSecret string, p CreateParams) (*Record, error) {
	if oldSecret == "" {
		return nil, ErrNotFound
	}
	if p.Secret == "" {
		return nil, ErrEmptySecret
	}
	hash := HashSecret(oldSecret)

	var next *Record
	err := s.exec(ctx, func(tx *gorm.DB) error {
		committing := false
		err := tx.Transaction(func(tx *gorm.DB) error {
			now := s.clock()

			var prev Record
			err := tx.Where("secret_hash = ? AND revoked = ? AND expires_at > ?", hash, false, now).Take(&prev).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			res := tx.Model(&Record{}).
				Where("id = ? AND revoked = ?", prev.ID, false).
				Updates(map[string]any{"revoked": true, "revoked_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}

			params := p
			params.SubjectID = prev.SubjectID
			params.Kind = prev.Kind
			params.RotatedFrom = prev.ID
			if params.TTL <= 0 {
				params.TTL = prev.TTL()
			}
			r, err := s.newRecord(params, now)
			if err != nil {
				return err
			}
			if err := tx.Create(r).Error; err != nil {
				return err
			}
			next = r
			committing = true
			return nil
		})
		if err != nil && committing {
			return db.Final(fmt.Errorf("%w: rotate commit: %w", db.ErrUnavailable, err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *DBStore) Touch(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return ErrInvalidParams
	}
	return s.exec(ctx, func(tx *gorm.DB) error {
		return tx.Model(&Record{}).Where("id = ?", id).Update("last_used_at", at.UTC()).Error
	})
}

// ListActive returns the usable records of subject, newest first.
func (s *DBStore) ListActive(ctx context.Context, subjectID string) ([]Record, error) {
	var out []Record
	err := s.exec(ctx, func(tx *gorm.DB) error {
		return tx.Where("subject_id = ? AND revoked = ? AND expires_at > ?", subjectID, false, s.clock()).
			Order("issued_at DESC").Find(&out).Error
	})
	return out, err
}
