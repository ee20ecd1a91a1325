package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/linkpulse/linkpulse/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrKeyTaken signals a code/alias uniqueness violation on insert.
	ErrKeyTaken = errors.New("code or alias already taken")
)

const pgUniqueViolation = "23505"

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	// GetByKey resolves a lookup key against code first, then alias,
	// case-insensitively, in a single snapshot read per call.
	GetByKey(ctx context.Context, key string) (*model.Link, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	AllKeys(ctx context.Context) ([]string, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	ListByCollection(ctx context.Context, collectionID string) ([]model.Link, error)
	Update(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, id string) error
	// BumpCounters applies the denormalized fast-read counters as targeted
	// increments so concurrent clicks never lose updates.
	BumpCounters(ctx context.Context, linkID string, newVisitor bool, at time.Time) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrKeyTaken
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) GetByKey(ctx context.Context, key string) (*model.Link, error) {
	lowered := strings.ToLower(key)

	var link model.Link
	err := r.db.WithContext(ctx).Where("LOWER(code) = ?", lowered).First(&link).Error
	if err == nil {
		return &link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("alias <> '' AND LOWER(alias) = ?", lowered).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	lowered := strings.ToLower(key)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("LOWER(code) = ? OR (alias <> '' AND LOWER(alias) = ?)", lowered, lowered).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *linkRepository) AllKeys(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Pluck("LOWER(code)", &codes).Error; err != nil {
		return nil, err
	}

	var aliases []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("alias <> ''").
		Pluck("LOWER(alias)", &aliases).Error; err != nil {
		return nil, err
	}

	return append(codes, aliases...), nil
}

func (r *linkRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) ListByCollection(ctx context.Context, collectionID string) ([]model.Link, error) {
	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("created_at ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"alias":         link.Alias,
			"url":           link.URL,
			"collection_id": link.CollectionID,
			"password_hash": link.PasswordHash,
			"active":        link.Active,
			"expires_at":    link.ExpiresAt,
		})

	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrKeyTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", link.ID).First(link).Error
}

func (r *linkRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) BumpCounters(ctx context.Context, linkID string, newVisitor bool, at time.Time) error {
	updates := map[string]interface{}{
		"click_count":     gorm.Expr("click_count + 1"),
		"last_clicked_at": at,
	}
	if newVisitor {
		updates["unique_visitors"] = gorm.Expr("unique_visitors + 1")
	}

	return r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", linkID).
		Updates(updates).Error
}
