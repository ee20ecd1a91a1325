package repository

import (
	"context"
	"errors"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"gorm.io/gorm"
)

// ErrCollectionNotFound signals that the requested collection does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// CollectionRepository defines the data access contract for collections.
// Membership lives on the link row and is flipped through the link
// repository, so cached link snapshots get invalidated; this repository only
// manages the collection rows themselves.
type CollectionRepository interface {
	Create(ctx context.Context, collection *model.Collection) error
	GetByID(ctx context.Context, id string) (*model.Collection, error)
	List(ctx context.Context, ownerID string) ([]model.Collection, error)
	Delete(ctx context.Context, id string) error
}

type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository returns a GORM-backed CollectionRepository.
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Create(ctx context.Context, collection *model.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *collectionRepository) GetByID(ctx context.Context, id string) (*model.Collection, error) {
	var collection model.Collection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return &collection, nil
}

func (r *collectionRepository) List(ctx context.Context, ownerID string) ([]model.Collection, error) {
	var result []model.Collection
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *collectionRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Collection{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCollectionNotFound
	}
	return nil
}
