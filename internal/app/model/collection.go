package model

import "time"

// Collection groups links for a single owner. Membership is recorded on the
// link side (Link.CollectionID); the collection weakly references members and
// never owns their lifetime.
type Collection struct {
	ID        string    `db:"id" gorm:"primaryKey;size:36"`
	OwnerID   string    `db:"owner_id" gorm:"size:36;index;not null"`
	Name      string    `db:"name" gorm:"size:128;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}
