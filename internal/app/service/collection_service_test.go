package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
)

type mockCollectionRepository struct {
	createFn  func(ctx context.Context, collection *model.Collection) error
	getByIDFn func(ctx context.Context, id string) (*model.Collection, error)
	listFn    func(ctx context.Context, ownerID string) ([]model.Collection, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockCollectionRepository) Create(ctx context.Context, collection *model.Collection) error {
	if m.createFn != nil {
		return m.createFn(ctx, collection)
	}
	return nil
}

func (m *mockCollectionRepository) GetByID(ctx context.Context, id string) (*model.Collection, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Collection{ID: id}, nil
}

func (m *mockCollectionRepository) List(ctx context.Context, ownerID string) ([]model.Collection, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockCollectionRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func TestCollectionService_CreateCollection(t *testing.T) {
	var created *model.Collection
	repo := &mockCollectionRepository{
		createFn: func(_ context.Context, collection *model.Collection) error {
			created = collection
			return nil
		},
	}
	svc := NewCollectionService(repo, &mockLinkRepository{}, &mockAnalyticsRepository{})

	collection, err := svc.CreateCollection(context.Background(), "owner-1", "Launch links")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, collection.ID)
	assert.Equal(t, "owner-1", collection.OwnerID)
	assert.Equal(t, "Launch links", collection.Name)
}

// Adding a link must flip collection_id through the link repository's Update
// path, because the cached decorator hangs its invalidation there. A flip
// that dodges Update would leave a stale snapshot in Redis for a full TTL.
func TestCollectionService_AddLink_FlipsThroughLinkUpdate(t *testing.T) {
	var updated *model.Link
	ensured := ""
	links := &mockLinkRepository{
		getByIDFn: func(_ context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, Code: "abc1234"}, nil
		},
		updateFn: func(_ context.Context, link *model.Link) error {
			updated = link
			return nil
		},
	}
	analytics := &mockAnalyticsRepository{
		ensureCollectionFn: func(_ context.Context, collectionID string) error {
			ensured = collectionID
			return nil
		},
	}
	svc := NewCollectionService(&mockCollectionRepository{}, links, analytics)

	err := svc.AddLink(context.Background(), "coll-1", "link-1")
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.NotNil(t, updated.CollectionID)
	assert.Equal(t, "coll-1", *updated.CollectionID)
	assert.Equal(t, "coll-1", ensured)
}

func TestCollectionService_AddLink_CollectionMissing(t *testing.T) {
	repo := &mockCollectionRepository{
		getByIDFn: func(_ context.Context, _ string) (*model.Collection, error) {
			return nil, repository.ErrCollectionNotFound
		},
	}
	links := &mockLinkRepository{
		updateFn: func(_ context.Context, _ *model.Link) error {
			t.Fatal("link must not be touched when the collection does not exist")
			return nil
		},
	}
	svc := NewCollectionService(repo, links, &mockAnalyticsRepository{})

	err := svc.AddLink(context.Background(), "missing", "link-1")
	assert.ErrorIs(t, err, repository.ErrCollectionNotFound)
}

func TestCollectionService_RemoveLink_ClearsMembership(t *testing.T) {
	collID := "coll-1"
	var updated *model.Link
	links := &mockLinkRepository{
		getByIDFn: func(_ context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, CollectionID: &collID}, nil
		},
		updateFn: func(_ context.Context, link *model.Link) error {
			updated = link
			return nil
		},
	}
	svc := NewCollectionService(&mockCollectionRepository{}, links, &mockAnalyticsRepository{})

	err := svc.RemoveLink(context.Background(), "link-1")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Nil(t, updated.CollectionID)
}

// Deleting a collection detaches every member and drops the rollup rows, so
// the reconciler stops sweeping a collection that no longer exists.
func TestCollectionService_DeleteCollection(t *testing.T) {
	collID := "coll-1"
	members := []model.Link{
		{ID: "link-1", CollectionID: &collID, CreatedAt: time.Now()},
		{ID: "link-2", CollectionID: &collID, CreatedAt: time.Now()},
	}
	detached := map[string]bool{}
	links := &mockLinkRepository{
		listByCollFn: func(_ context.Context, _ string) ([]model.Link, error) {
			return members, nil
		},
		updateFn: func(_ context.Context, link *model.Link) error {
			assert.Nil(t, link.CollectionID)
			detached[link.ID] = true
			return nil
		},
	}
	rowDeleted := false
	repo := &mockCollectionRepository{
		deleteFn: func(_ context.Context, id string) error {
			assert.Equal(t, collID, id)
			rowDeleted = true
			return nil
		},
	}
	analyticsDropped := ""
	analytics := &mockAnalyticsRepository{
		deleteCollFn: func(_ context.Context, collectionID string) error {
			analyticsDropped = collectionID
			return nil
		},
	}
	svc := NewCollectionService(repo, links, analytics)

	err := svc.DeleteCollection(context.Background(), collID)
	require.NoError(t, err)
	assert.True(t, detached["link-1"])
	assert.True(t, detached["link-2"])
	assert.True(t, rowDeleted)
	assert.Equal(t, collID, analyticsDropped)
}

func TestCollectionService_DeleteCollection_NotFound(t *testing.T) {
	repo := &mockCollectionRepository{
		deleteFn: func(_ context.Context, _ string) error {
			return repository.ErrCollectionNotFound
		},
	}
	analytics := &mockAnalyticsRepository{
		deleteCollFn: func(_ context.Context, _ string) error {
			t.Fatal("rollups must not be dropped when the collection row is missing")
			return nil
		},
	}
	svc := NewCollectionService(repo, &mockLinkRepository{}, analytics)

	err := svc.DeleteCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrCollectionNotFound)
}
