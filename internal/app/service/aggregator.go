package service

import (
	"context"
	"fmt"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
	infraprom "github.com/linkpulse/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Aggregator folds normalized clicks into the per-link rollup, the owning
// collection's rollup and the link's denormalized fast-read counters.
//
// Apply expects at-most-one delivery per resolved click; it is not replay
// tolerant. Dimensions are applied independently: one failing dimension is
// logged and counted but never blocks the others or the total click count.
type Aggregator struct {
	analytics repository.AnalyticsRepository
	links     repository.LinkRepository
	logger    *zap.Logger
}

// NewAggregator builds an aggregator over the given repositories.
func NewAggregator(analytics repository.AnalyticsRepository, links repository.LinkRepository, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{analytics: analytics, links: links, logger: logger}
}

// Apply records one click across every applicable dimension. The returned
// error reports only a total-count failure; everything else degrades to a
// logged, per-dimension miss.
func (a *Aggregator) Apply(ctx context.Context, click model.NormalizedClick) error {
	// The rollup row is created lazily on first click when link creation
	// predates the analytics schema.
	if err := a.analytics.EnsureLink(ctx, click.LinkID); err != nil {
		return fmt.Errorf("apply click: %w", err)
	}

	newVisitor, err := a.analytics.RecordVisitor(ctx, click.LinkID, click.Fingerprint)
	if err != nil {
		a.dimensionFailed("dedup", click.LinkID, err)
		newVisitor = false
	}

	if err := a.analytics.ApplyTotals(ctx, click.LinkID, click.Timestamp); err != nil {
		return fmt.Errorf("apply click totals: %w", err)
	}

	if err := a.analytics.ApplyTimeBuckets(ctx, click.LinkID, click.Hour, click.DayOfWeek); err != nil {
		a.dimensionFailed("time", click.LinkID, err)
	}
	if err := a.analytics.ApplyDaily(ctx, click.LinkID, click.Date, newVisitor); err != nil {
		a.dimensionFailed("daily", click.LinkID, err)
	}
	if err := a.analytics.ApplyDevice(ctx, click.LinkID, click.Device); err != nil {
		a.dimensionFailed("device", click.LinkID, err)
	}
	a.applyCounter(ctx, click.LinkID, repository.DimBrowser, click.Browser)
	a.applyCounter(ctx, click.LinkID, repository.DimOS, click.OS)
	a.applyCounter(ctx, click.LinkID, repository.DimCountry, click.Country)
	a.applyCounter(ctx, click.LinkID, repository.DimCity, click.City)
	a.applyCounter(ctx, click.LinkID, repository.DimReferrer, click.ReferrerDomain)
	a.applyCounter(ctx, click.LinkID, repository.DimSocial, click.SocialPlatform)

	// Dual-write: the fast-read counters on the link row keep list views off
	// the analytics tables entirely.
	if err := a.links.BumpCounters(ctx, click.LinkID, newVisitor, click.Timestamp); err != nil {
		a.dimensionFailed("fast_counters", click.LinkID, err)
	}

	if click.CollectionID != "" {
		a.applyCollection(ctx, click, newVisitor)
	}

	infraprom.ClicksApplied.Inc()
	return nil
}

// applyCollection rolls the click up into the owning collection. The rollup
// is eventual relative to the per-link record; it converges once ingestion
// quiesces.
func (a *Aggregator) applyCollection(ctx context.Context, click model.NormalizedClick, newVisitor bool) {
	id := click.CollectionID

	if err := a.analytics.EnsureCollection(ctx, id); err != nil {
		a.dimensionFailed("collection", id, err)
		return
	}

	if err := a.analytics.CollectionApplyTotals(ctx, id, click.Timestamp, newVisitor); err != nil {
		a.dimensionFailed("collection_totals", id, err)
	}
	if err := a.analytics.CollectionApplyTimeBuckets(ctx, id, click.Hour, click.DayOfWeek); err != nil {
		a.dimensionFailed("collection_time", id, err)
	}
	if err := a.analytics.CollectionApplyDaily(ctx, id, click.Date, newVisitor); err != nil {
		a.dimensionFailed("collection_daily", id, err)
	}
	if err := a.analytics.CollectionApplyDevice(ctx, id, click.Device); err != nil {
		a.dimensionFailed("collection_device", id, err)
	}
	if click.Country != "" {
		if err := a.analytics.CollectionApplyCounter(ctx, id, repository.DimCountry, click.Country); err != nil {
			a.dimensionFailed("collection_country", id, err)
		}
	}
	if click.ReferrerDomain != "" {
		if err := a.analytics.CollectionApplyCounter(ctx, id, repository.DimReferrer, click.ReferrerDomain); err != nil {
			a.dimensionFailed("collection_referrer", id, err)
		}
	}

	if err := a.analytics.UpsertLinkPerformance(ctx, id, click.LinkID, click.LinkCode, newVisitor, click.Timestamp); err != nil {
		a.dimensionFailed("collection_performance", id, err)
	}
}

func (a *Aggregator) applyCounter(ctx context.Context, linkID, dimension, key string) {
	if key == "" {
		return
	}
	if err := a.analytics.ApplyCounter(ctx, linkID, dimension, key); err != nil {
		a.dimensionFailed(dimension, linkID, err)
	}
}

func (a *Aggregator) dimensionFailed(dimension, id string, err error) {
	infraprom.IngestErrors.WithLabelValues(dimension).Inc()
	a.logger.Warn("analytics dimension update failed",
		zap.String("dimension", dimension),
		zap.String("id", id),
		zap.Error(err))
}
