package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
)

// CollectionService defines behaviour-level operations on collections.
type CollectionService interface {
	CreateCollection(ctx context.Context, ownerID, name string) (*model.Collection, error)
	GetCollection(ctx context.Context, id string) (*model.Collection, error)
	ListCollections(ctx context.Context, ownerID string) ([]model.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	AddLink(ctx context.Context, collectionID, linkID string) error
	RemoveLink(ctx context.Context, linkID string) error
}

type collectionService struct {
	repo      repository.CollectionRepository
	links     repository.LinkRepository
	analytics repository.AnalyticsRepository
}

// NewCollectionService returns a service implementation backed by the given
// repositories. Membership flips run through links so cached link snapshots
// are invalidated along with the collection_id change.
func NewCollectionService(repo repository.CollectionRepository, links repository.LinkRepository, analytics repository.AnalyticsRepository) CollectionService {
	return &collectionService{repo: repo, links: links, analytics: analytics}
}

func (s *collectionService) CreateCollection(ctx context.Context, ownerID, name string) (*model.Collection, error) {
	collection := &model.Collection{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Name:    name,
	}
	if err := s.repo.Create(ctx, collection); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return collection, nil
}

func (s *collectionService) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	collection, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return collection, nil
}

func (s *collectionService) ListCollections(ctx context.Context, ownerID string) ([]model.Collection, error) {
	collections, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

// DeleteCollection detaches member links, removes the collection row, and
// drops the rollup rows so the reconciler stops sweeping a dead collection.
// Links survive their collection.
func (s *collectionService) DeleteCollection(ctx context.Context, id string) error {
	members, err := s.links.ListByCollection(ctx, id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	for i := range members {
		if err := s.detach(ctx, &members[i]); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if err := s.analytics.DeleteCollection(ctx, id); err != nil {
		return fmt.Errorf("delete collection analytics: %w", err)
	}
	return nil
}

// AddLink puts a link into a collection and eagerly creates the rollup so
// the collection gains analytics as soon as it gains a member.
func (s *collectionService) AddLink(ctx context.Context, collectionID, linkID string) error {
	if _, err := s.repo.GetByID(ctx, collectionID); err != nil {
		return fmt.Errorf("add link: %w", err)
	}

	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("add link: %w", err)
	}
	link.CollectionID = &collectionID
	if err := s.links.Update(ctx, link); err != nil {
		return fmt.Errorf("add link: %w", err)
	}

	if err := s.analytics.EnsureCollection(ctx, collectionID); err != nil {
		return fmt.Errorf("add link analytics: %w", err)
	}
	return nil
}

func (s *collectionService) RemoveLink(ctx context.Context, linkID string) error {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("remove link: %w", err)
	}
	if err := s.detach(ctx, link); err != nil {
		return fmt.Errorf("remove link: %w", err)
	}
	return nil
}

func (s *collectionService) detach(ctx context.Context, link *model.Link) error {
	link.CollectionID = nil
	return s.links.Update(ctx, link)
}
