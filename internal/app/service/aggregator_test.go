package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/linkpulse/linkpulse/internal/app/model"
)

type mockAnalyticsRepository struct {
	ensureLinkFn       func(ctx context.Context, linkID string) error
	ensureCollectionFn func(ctx context.Context, collectionID string) error
	applyTotalsFn      func(ctx context.Context, linkID string, at time.Time) error
	recordVisitorFn    func(ctx context.Context, linkID, fingerprint string) (bool, error)
	applyTimeFn        func(ctx context.Context, linkID string, hour, dayOfWeek int) error
	applyDailyFn       func(ctx context.Context, linkID, date string, newVisitor bool) error
	applyDeviceFn      func(ctx context.Context, linkID, device string) error
	applyCounterFn     func(ctx context.Context, linkID, dimension, key string) error

	collTotalsFn  func(ctx context.Context, collectionID string, at time.Time, newVisitor bool) error
	collTimeFn    func(ctx context.Context, collectionID string, hour, dayOfWeek int) error
	collDailyFn   func(ctx context.Context, collectionID, date string, newVisitor bool) error
	collDeviceFn  func(ctx context.Context, collectionID, device string) error
	collCounterFn func(ctx context.Context, collectionID, dimension, key string) error
	upsertPerfFn  func(ctx context.Context, collectionID, linkID, code string, newVisitor bool, at time.Time) error
	reconcileFn   func(ctx context.Context, collectionID string) error
	listCollFn    func(ctx context.Context) ([]string, error)
	deleteCollFn  func(ctx context.Context, collectionID string) error

	getLinkFn       func(ctx context.Context, linkID string) (*model.LinkAnalytics, error)
	getCollectionFn func(ctx context.Context, collectionID string) (*model.CollectionAnalytics, error)
}

func (m *mockAnalyticsRepository) EnsureLink(ctx context.Context, linkID string) error {
	if m.ensureLinkFn != nil {
		return m.ensureLinkFn(ctx, linkID)
	}
	return nil
}

func (m *mockAnalyticsRepository) EnsureCollection(ctx context.Context, collectionID string) error {
	if m.ensureCollectionFn != nil {
		return m.ensureCollectionFn(ctx, collectionID)
	}
	return nil
}

func (m *mockAnalyticsRepository) ApplyTotals(ctx context.Context, linkID string, at time.Time) error {
	if m.applyTotalsFn != nil {
		return m.applyTotalsFn(ctx, linkID, at)
	}
	return nil
}

func (m *mockAnalyticsRepository) RecordVisitor(ctx context.Context, linkID, fingerprint string) (bool, error) {
	if m.recordVisitorFn != nil {
		return m.recordVisitorFn(ctx, linkID, fingerprint)
	}
	return false, nil
}

func (m *mockAnalyticsRepository) ApplyTimeBuckets(ctx context.Context, linkID string, hour, dayOfWeek int) error {
	if m.applyTimeFn != nil {
		return m.applyTimeFn(ctx, linkID, hour, dayOfWeek)
	}
	return nil
}

func (m *mockAnalyticsRepository) ApplyDaily(ctx context.Context, linkID, date string, newVisitor bool) error {
	if m.applyDailyFn != nil {
		return m.applyDailyFn(ctx, linkID, date, newVisitor)
	}
	return nil
}

func (m *mockAnalyticsRepository) ApplyDevice(ctx context.Context, linkID, device string) error {
	if m.applyDeviceFn != nil {
		return m.applyDeviceFn(ctx, linkID, device)
	}
	return nil
}

func (m *mockAnalyticsRepository) ApplyCounter(ctx context.Context, linkID, dimension, key string) error {
	if m.applyCounterFn != nil {
		return m.applyCounterFn(ctx, linkID, dimension, key)
	}
	return nil
}

func (m *mockAnalyticsRepository) CollectionApplyTotals(ctx context.Context, collectionID string, at time.Time, newVisitor bool) error {
	if m.collTotalsFn != nil {
		return m.collTotalsFn(ctx, collectionID, at, newVisitor)
	}
	return nil
}

func (m *mockAnalyticsRepository) CollectionApplyTimeBuckets(ctx context.Context, collectionID string, hour, dayOfWeek int) error {
	if m.collTimeFn != nil {
		return m.collTimeFn(ctx, collectionID, hour, dayOfWeek)
	}
	return nil
}

func (m *mockAnalyticsRepository) CollectionApplyDaily(ctx context.Context, collectionID, date string, newVisitor bool) error {
	if m.collDailyFn != nil {
		return m.collDailyFn(ctx, collectionID, date, newVisitor)
	}
	return nil
}

func (m *mockAnalyticsRepository) CollectionApplyDevice(ctx context.Context, collectionID, device string) error {
	if m.collDeviceFn != nil {
		return m.collDeviceFn(ctx, collectionID, device)
	}
	return nil
}

func (m *mockAnalyticsRepository) CollectionApplyCounter(ctx context.Context, collectionID, dimension, key string) error {
	if m.collCounterFn != nil {
		return m.collCounterFn(ctx, collectionID, dimension, key)
	}
	return nil
}

func (m *mockAnalyticsRepository) UpsertLinkPerformance(ctx context.Context, collectionID, linkID, code string, newVisitor bool, at time.Time) error {
	if m.upsertPerfFn != nil {
		return m.upsertPerfFn(ctx, collectionID, linkID, code, newVisitor, at)
	}
	return nil
}

func (m *mockAnalyticsRepository) ReconcileCollection(ctx context.Context, collectionID string) error {
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx, collectionID)
	}
	return nil
}

func (m *mockAnalyticsRepository) DeleteCollection(ctx context.Context, collectionID string) error {
	if m.deleteCollFn != nil {
		return m.deleteCollFn(ctx, collectionID)
	}
	return nil
}

func (m *mockAnalyticsRepository) ListCollectionIDs(ctx context.Context) ([]string, error) {
	if m.listCollFn != nil {
		return m.listCollFn(ctx)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) GetLinkAnalytics(ctx context.Context, linkID string) (*model.LinkAnalytics, error) {
	if m.getLinkFn != nil {
		return m.getLinkFn(ctx, linkID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAnalyticsRepository) GetCollectionAnalytics(ctx context.Context, collectionID string) (*model.CollectionAnalytics, error) {
	if m.getCollectionFn != nil {
		return m.getCollectionFn(ctx, collectionID)
	}
	return nil, errors.New("not implemented")
}

func sampleClick() model.NormalizedClick {
	return model.NormalizedClick{
		LinkID:         "l1",
		LinkCode:       "abc1234",
		Fingerprint:    "fp-1",
		Timestamp:      time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC),
		Date:           "2026-03-14",
		Hour:           15,
		DayOfWeek:      6,
		Device:         model.DeviceDesktop,
		Browser:        "Firefox",
		OS:             "Linux",
		Country:        "DE",
		City:           "Berlin",
		ReferrerDomain: "news.example.org",
	}
}

func TestAggregator_Apply(t *testing.T) {
	counters := map[string]string{}
	var totalsAt time.Time
	var bumpedNew bool
	bumped := false

	analytics := &mockAnalyticsRepository{
		recordVisitorFn: func(ctx context.Context, linkID, fingerprint string) (bool, error) {
			if fingerprint != "fp-1" {
				t.Fatalf("unexpected fingerprint %q", fingerprint)
			}
			return true, nil
		},
		applyTotalsFn: func(ctx context.Context, linkID string, at time.Time) error {
			totalsAt = at
			return nil
		},
		applyTimeFn: func(ctx context.Context, linkID string, hour, dayOfWeek int) error {
			if hour != 15 || dayOfWeek != 6 {
				t.Fatalf("unexpected buckets hour=%d dow=%d", hour, dayOfWeek)
			}
			return nil
		},
		applyCounterFn: func(ctx context.Context, linkID, dimension, key string) error {
			counters[dimension] = key
			return nil
		},
	}
	links := &mockLinkRepository{
		bumpFn: func(ctx context.Context, linkID string, newVisitor bool, at time.Time) error {
			bumped = true
			bumpedNew = newVisitor
			return nil
		},
	}

	agg := NewAggregator(analytics, links, nil)
	click := sampleClick()
	if err := agg.Apply(context.Background(), click); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if !totalsAt.Equal(click.Timestamp) {
		t.Fatal("expected totals to carry the click timestamp")
	}
	if counters["browser"] != "Firefox" || counters["os"] != "Linux" {
		t.Fatalf("unexpected counters %v", counters)
	}
	if counters["country"] != "DE" || counters["city"] != "Berlin" {
		t.Fatalf("unexpected geo counters %v", counters)
	}
	if counters["referrer"] != "news.example.org" {
		t.Fatalf("unexpected referrer counter %v", counters)
	}
	if _, ok := counters["social"]; ok {
		t.Fatal("empty social platform must not be counted")
	}
	if !bumped || !bumpedNew {
		t.Fatal("expected fast counters to be bumped with newVisitor=true")
	}
}

func TestAggregator_Apply_DedupFailureDegrades(t *testing.T) {
	var dailyNew *bool
	analytics := &mockAnalyticsRepository{
		recordVisitorFn: func(ctx context.Context, linkID, fingerprint string) (bool, error) {
			return false, errors.New("dedup store down")
		},
		applyDailyFn: func(ctx context.Context, linkID, date string, newVisitor bool) error {
			dailyNew = &newVisitor
			return nil
		},
	}

	agg := NewAggregator(analytics, &mockLinkRepository{}, nil)
	if err := agg.Apply(context.Background(), sampleClick()); err != nil {
		t.Fatalf("expected dedup failure to degrade, got %v", err)
	}
	if dailyNew == nil || *dailyNew {
		t.Fatal("dedup failure must count the click as a repeat visitor")
	}
}

func TestAggregator_Apply_TotalsFailureIsFatal(t *testing.T) {
	analytics := &mockAnalyticsRepository{
		applyTotalsFn: func(ctx context.Context, linkID string, at time.Time) error {
			return errors.New("write failed")
		},
	}

	agg := NewAggregator(analytics, &mockLinkRepository{}, nil)
	if err := agg.Apply(context.Background(), sampleClick()); err == nil {
		t.Fatal("expected error when the total count cannot be applied")
	}
}

func TestAggregator_Apply_DimensionFailureIsIsolated(t *testing.T) {
	deviceApplied := false
	analytics := &mockAnalyticsRepository{
		applyTimeFn: func(ctx context.Context, linkID string, hour, dayOfWeek int) error {
			return errors.New("bucket write failed")
		},
		applyDeviceFn: func(ctx context.Context, linkID, device string) error {
			deviceApplied = true
			return nil
		},
	}

	agg := NewAggregator(analytics, &mockLinkRepository{}, nil)
	if err := agg.Apply(context.Background(), sampleClick()); err != nil {
		t.Fatalf("dimension failure must not fail the click: %v", err)
	}
	if !deviceApplied {
		t.Fatal("later dimensions must still be applied after an earlier failure")
	}
}

func TestAggregator_Apply_Collection(t *testing.T) {
	ensured := ""
	var perfCode string
	analytics := &mockAnalyticsRepository{
		recordVisitorFn: func(ctx context.Context, linkID, fingerprint string) (bool, error) {
			return true, nil
		},
		ensureCollectionFn: func(ctx context.Context, collectionID string) error {
			ensured = collectionID
			return nil
		},
		upsertPerfFn: func(ctx context.Context, collectionID, linkID, code string, newVisitor bool, at time.Time) error {
			perfCode = code
			if !newVisitor {
				t.Fatal("expected newVisitor to propagate into link performance")
			}
			return nil
		},
	}

	agg := NewAggregator(analytics, &mockLinkRepository{}, nil)
	click := sampleClick()
	click.CollectionID = "col-1"
	if err := agg.Apply(context.Background(), click); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if ensured != "col-1" {
		t.Fatalf("expected collection rollup to be ensured, got %q", ensured)
	}
	if perfCode != "abc1234" {
		t.Fatalf("expected link performance for code abc1234, got %q", perfCode)
	}
}

// cappedVisitorSet mirrors the repository's RecordVisitor contract: an unseen
// fingerprint is accepted only while the set has room, everything else counts
// as a repeat.
type cappedVisitorSet struct {
	cap  int
	seen map[string]struct{}
}

func (s *cappedVisitorSet) record(fingerprint string) bool {
	if _, ok := s.seen[fingerprint]; ok {
		return false
	}
	if len(s.seen) >= s.cap {
		return false
	}
	s.seen[fingerprint] = struct{}{}
	return true
}

func TestAggregator_UniqueVisitorCapLaw(t *testing.T) {
	const capSize = 5

	set := &cappedVisitorSet{cap: capSize, seen: map[string]struct{}{}}
	uniques := 0
	analytics := &mockAnalyticsRepository{
		recordVisitorFn: func(ctx context.Context, linkID, fingerprint string) (bool, error) {
			return set.record(fingerprint), nil
		},
	}
	links := &mockLinkRepository{
		bumpFn: func(ctx context.Context, linkID string, newVisitor bool, at time.Time) error {
			if newVisitor {
				uniques++
			}
			return nil
		},
	}

	agg := NewAggregator(analytics, links, nil)

	// Twice the cap in distinct fingerprints, each clicking twice.
	for i := 0; i < 2*capSize; i++ {
		click := sampleClick()
		click.Fingerprint = fmt.Sprintf("fp-%d", i)
		for j := 0; j < 2; j++ {
			if err := agg.Apply(context.Background(), click); err != nil {
				t.Fatalf("Apply error: %v", err)
			}
		}
	}

	if uniques != capSize {
		t.Fatalf("expected exactly %d unique visitors once the set is full, got %d", capSize, uniques)
	}
	if len(set.seen) != capSize {
		t.Fatalf("seen set grew past the cap: %d", len(set.seen))
	}
}

func TestAggregator_Apply_NoCollection(t *testing.T) {
	analytics := &mockAnalyticsRepository{
		ensureCollectionFn: func(ctx context.Context, collectionID string) error {
			t.Fatal("collection rollup must not run without a collection")
			return nil
		},
	}

	agg := NewAggregator(analytics, &mockLinkRepository{}, nil)
	if err := agg.Apply(context.Background(), sampleClick()); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
}
