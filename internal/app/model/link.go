package model

import "time"

// Link describes the core short-link entity stored in Postgres.
//
// Code is generated, Alias is owner-chosen; both resolve the link and both
// are unique case-insensitively. That uniqueness is enforced by functional
// indexes on LOWER(code)/LOWER(alias) created in the postgres migration;
// GORM tags cannot express it, so the tags below only declare the plain
// lookup indexes. ClickCount, UniqueVisitors and LastClickedAt are
// denormalized fast-read counters maintained by the analytics aggregator so
// list views never touch the analytics tables.
type Link struct {
	ID           string     `db:"id" gorm:"primaryKey;size:36"`
	Code         string     `db:"code" gorm:"size:32;index;not null"`
	Alias        string     `db:"alias" gorm:"size:32;index"`
	URL          string     `db:"url" gorm:"type:text;not null"`
	OwnerID      string     `db:"owner_id" gorm:"size:36;index;not null"`
	CollectionID *string    `db:"collection_id" gorm:"size:36;index"`
	PasswordHash string     `db:"password_hash" gorm:"size:72"`
	Active       bool       `db:"active" gorm:"not null;default:true"`
	ExpiresAt    *time.Time `db:"expires_at" gorm:"index"`

	ClickCount     int64      `db:"click_count" gorm:"not null;default:0"`
	UniqueVisitors int64      `db:"unique_visitors" gorm:"not null;default:0"`
	LastClickedAt  *time.Time `db:"last_clicked_at"`

	CreatedAt time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// Protected reports whether resolving this link requires a password.
func (l *Link) Protected() bool {
	return l.PasswordHash != ""
}

// ExpiredAt reports whether the link's expiry (when set) has passed.
func (l *Link) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
