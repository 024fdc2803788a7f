// Package credential persists refresh credentials. Secrets are never stored
// raw: rows are keyed by the SHA-256 of the opaque secret.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Record is one issued credential. Revoked only ever goes from false to true.
type Record struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SubjectID     string     `gorm:"type:varchar(64);index;not null" json:"subject_id"`
	SecretHash    string     `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	Kind          Kind       `gorm:"type:varchar(16);not null" json:"kind"`
	IssuedAt      time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	Revoked       bool       `gorm:"not null" json:"revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	DeviceLabel   string     `gorm:"type:varchar(255)" json:"device_label,omitempty"`
	OriginAddress string     `gorm:"type:varchar(64)" json:"origin_address,omitempty"`
	RotatedFrom   *string    `gorm:"type:varchar(36)" json:"rotated_from,omitempty"`
}

func (Record) TableName() string {
	return "credentials"
}

// Usable reports whether the record may still be exchanged at now.
func (r *Record) Usable(now time.Time) bool {
	return !r.Revoked && r.ExpiresAt.After(now)
}

// TTL is the lifetime the record was issued with.
func (r *Record) TTL() time.Duration {
	return r.ExpiresAt.Sub(r.IssuedAt)
}

// HashSecret returns the hex SHA-256 stored in place of secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewSecret returns 32 random bytes, base64url encoded without padding.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
