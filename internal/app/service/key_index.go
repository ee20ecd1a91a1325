package service

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/linkpulse/linkpulse/internal/app/repository"
)

const (
	keyIndexCapacity      = 1_000_000
	keyIndexFalsePositive = 0.001
)

// KeyIndex answers "is this code/alias already in use" without hitting the
// database for the common negative case. A bloom miss is authoritative; a hit
// is confirmed against the repository, so false positives only cost a query.
type KeyIndex struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	links  repository.LinkRepository
}

// NewKeyIndex builds an index over the given repository.
func NewKeyIndex(links repository.LinkRepository) *KeyIndex {
	return &KeyIndex{
		filter: bloom.NewWithEstimates(keyIndexCapacity, keyIndexFalsePositive),
		links:  links,
	}
}

// Seed loads every existing code and alias into the filter. Call once at
// startup; Add keeps the filter current afterwards.
func (idx *KeyIndex) Seed(ctx context.Context) error {
	keys, err := idx.links.AllKeys(ctx)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, key := range keys {
		idx.filter.AddString(strings.ToLower(key))
	}
	return nil
}

// Add records a newly claimed key.
func (idx *KeyIndex) Add(key string) {
	if key == "" {
		return
	}
	idx.mu.Lock()
	idx.filter.AddString(strings.ToLower(key))
	idx.mu.Unlock()
}

// Contains reports whether the key is taken.
func (idx *KeyIndex) Contains(ctx context.Context, key string) (bool, error) {
	lowered := strings.ToLower(key)

	idx.mu.RLock()
	maybe := idx.filter.TestString(lowered)
	idx.mu.RUnlock()

	if !maybe {
		return false, nil
	}
	return idx.links.KeyExists(ctx, lowered)
}
