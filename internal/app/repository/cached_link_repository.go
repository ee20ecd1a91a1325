package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	linkCacheKeyPrefix = "link:key:"
	linkCacheTTL       = 30 * time.Second
)

// cachedLinkRepository wraps a LinkRepository with a Redis read-through cache
// on the hot resolution path (GetByKey). Cache failures fall through to the
// database; mutations invalidate eagerly, everything else ages out via TTL.
type cachedLinkRepository struct {
	inner  LinkRepository
	client *redis.Client
	logger *zap.Logger
}

// NewCachedLinkRepository decorates repo with a Redis cache for key lookups.
func NewCachedLinkRepository(repo LinkRepository, client *redis.Client, logger *zap.Logger) LinkRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedLinkRepository{inner: repo, client: client, logger: logger}
}

func cacheKey(key string) string {
	return linkCacheKeyPrefix + strings.ToLower(key)
}

func (r *cachedLinkRepository) GetByKey(ctx context.Context, key string) (*model.Link, error) {
	ck := cacheKey(key)

	payload, err := r.client.Get(ctx, ck).Bytes()
	if err == nil {
		var link model.Link
		if jsonErr := json.Unmarshal(payload, &link); jsonErr == nil {
			return &link, nil
		}
		// Corrupt entry: drop it and fall through to the database.
		r.client.Del(ctx, ck)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("link cache read failed", zap.Error(err))
	}

	link, err := r.inner.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(link); jsonErr == nil {
		if setErr := r.client.Set(ctx, ck, payload, linkCacheTTL).Err(); setErr != nil {
			r.logger.Warn("link cache write failed", zap.Error(setErr))
		}
	}

	return link, nil
}

func (r *cachedLinkRepository) invalidate(ctx context.Context, link *model.Link) {
	keys := []string{cacheKey(link.Code)}
	if link.Alias != "" {
		keys = append(keys, cacheKey(link.Alias))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("link cache invalidation failed", zap.Error(err))
	}
}

func (r *cachedLinkRepository) Create(ctx context.Context, link *model.Link) error {
	return r.inner.Create(ctx, link)
}

func (r *cachedLinkRepository) Update(ctx context.Context, link *model.Link) error {
	if err := r.inner.Update(ctx, link); err != nil {
		return err
	}
	r.invalidate(ctx, link)
	return nil
}

func (r *cachedLinkRepository) Delete(ctx context.Context, id string) error {
	if link, err := r.inner.GetByID(ctx, id); err == nil {
		defer r.invalidate(ctx, link)
	}
	return r.inner.Delete(ctx, id)
}

func (r *cachedLinkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *cachedLinkRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	return r.inner.KeyExists(ctx, key)
}

func (r *cachedLinkRepository) AllKeys(ctx context.Context) ([]string, error) {
	return r.inner.AllKeys(ctx)
}

func (r *cachedLinkRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	return r.inner.List(ctx, ownerID, limit, offset)
}

func (r *cachedLinkRepository) ListByCollection(ctx context.Context, collectionID string) ([]model.Link, error) {
	return r.inner.ListByCollection(ctx, collectionID)
}

func (r *cachedLinkRepository) BumpCounters(ctx context.Context, linkID string, newVisitor bool, at time.Time) error {
	// Fast counters are not part of the resolution decision, so cached
	// snapshots are allowed to lag until the TTL expires.
	return r.inner.BumpCounters(ctx, linkID, newVisitor, at)
}
