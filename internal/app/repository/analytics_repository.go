package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkpulse/linkpulse/internal/app/model"
)

// ErrAnalyticsNotFound signals that no rollup exists for the requested id.
var ErrAnalyticsNotFound = errors.New("analytics record not found")

// Dimension names accepted by the open-ended counter methods. Each maps to a
// jsonb column; the whitelist keeps column names out of caller control.
const (
	DimBrowser  = "browser"
	DimOS       = "os"
	DimCountry  = "country"
	DimCity     = "city"
	DimReferrer = "referrer"
	DimSocial   = "social"
)

var linkCounterColumns = map[string]string{
	DimBrowser:  "browsers",
	DimOS:       "os",
	DimCountry:  "countries",
	DimCity:     "cities",
	DimReferrer: "referrers",
	DimSocial:   "social",
}

var collectionCounterColumns = map[string]string{
	DimCountry:  "countries",
	DimReferrer: "referrers",
}

var deviceColumns = map[string]string{
	model.DeviceMobile:  "device_mobile",
	model.DeviceDesktop: "device_desktop",
	model.DeviceTablet:  "device_tablet",
	model.DeviceOther:   "device_other",
}

// AnalyticsRepository persists click rollups. Every write is a single
// targeted UPDATE/UPSERT so concurrent increments to the same record converge
// without document-level locking; there is no read-modify-write anywhere on
// the write path.
type AnalyticsRepository interface {
	EnsureLink(ctx context.Context, linkID string) error
	EnsureCollection(ctx context.Context, collectionID string) error

	ApplyTotals(ctx context.Context, linkID string, at time.Time) error
	// RecordVisitor returns true when the fingerprint was unseen and the
	// capped set accepted it. A full set or a seen fingerprint returns false.
	RecordVisitor(ctx context.Context, linkID, fingerprint string) (bool, error)
	ApplyTimeBuckets(ctx context.Context, linkID string, hour, dayOfWeek int) error
	ApplyDaily(ctx context.Context, linkID, date string, newVisitor bool) error
	ApplyDevice(ctx context.Context, linkID, device string) error
	ApplyCounter(ctx context.Context, linkID, dimension, key string) error

	CollectionApplyTotals(ctx context.Context, collectionID string, at time.Time, newVisitor bool) error
	CollectionApplyTimeBuckets(ctx context.Context, collectionID string, hour, dayOfWeek int) error
	CollectionApplyDaily(ctx context.Context, collectionID, date string, newVisitor bool) error
	CollectionApplyDevice(ctx context.Context, collectionID, device string) error
	CollectionApplyCounter(ctx context.Context, collectionID, dimension, key string) error
	UpsertLinkPerformance(ctx context.Context, collectionID, linkID, code string, newVisitor bool, at time.Time) error
	ReconcileCollection(ctx context.Context, collectionID string) error
	ListCollectionIDs(ctx context.Context) ([]string, error)
	// DeleteCollection drops every rollup row belonging to the collection so
	// the reconciler stops sweeping it.
	DeleteCollection(ctx context.Context, collectionID string) error

	GetLinkAnalytics(ctx context.Context, linkID string) (*model.LinkAnalytics, error)
	GetCollectionAnalytics(ctx context.Context, collectionID string) (*model.CollectionAnalytics, error)
}

type analyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns a pgx-backed AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepository{pool: pool}
}

func (r *analyticsRepository) EnsureLink(ctx context.Context, linkID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO link_analytics (link_id) VALUES ($1) ON CONFLICT (link_id) DO NOTHING`,
		linkID)
	if err != nil {
		return fmt.Errorf("ensure link analytics: %w", err)
	}
	return nil
}

func (r *analyticsRepository) EnsureCollection(ctx context.Context, collectionID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO collection_analytics (collection_id) VALUES ($1) ON CONFLICT (collection_id) DO NOTHING`,
		collectionID)
	if err != nil {
		return fmt.Errorf("ensure collection analytics: %w", err)
	}
	return nil
}

func (r *analyticsRepository) ApplyTotals(ctx context.Context, linkID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE link_analytics
		 SET total_clicks = total_clicks + 1,
		     last_clicked_at = GREATEST(coalesce(last_clicked_at, 'epoch'::timestamptz), $2),
		     updated_at = now()
		 WHERE link_id = $1`,
		linkID, at)
	if err != nil {
		return fmt.Errorf("apply totals: %w", err)
	}
	return nil
}

func (r *analyticsRepository) RecordVisitor(ctx context.Context, linkID, fingerprint string) (bool, error) {
	// Membership check, cap guard and insert in one statement: the row lock
	// taken by UPDATE makes the check-then-insert atomic per link.
	tag, err := r.pool.Exec(ctx,
		`UPDATE link_analytics
		 SET seen_visitors = seen_visitors || to_jsonb($2::text),
		     unique_visitors = unique_visitors + 1,
		     updated_at = now()
		 WHERE link_id = $1
		   AND NOT seen_visitors ? $2
		   AND jsonb_array_length(seen_visitors) < $3`,
		linkID, fingerprint, model.SeenVisitorCap)
	if err != nil {
		return false, fmt.Errorf("record visitor: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *analyticsRepository) ApplyTimeBuckets(ctx context.Context, linkID string, hour, dayOfWeek int) error {
	if hour < 0 || hour > 23 || dayOfWeek < 0 || dayOfWeek > 6 {
		return fmt.Errorf("apply time buckets: hour %d / day %d out of range", hour, dayOfWeek)
	}
	// Postgres arrays are 1-based.
	_, err := r.pool.Exec(ctx,
		`UPDATE link_analytics
		 SET clicks_by_hour[$2] = clicks_by_hour[$2] + 1,
		     clicks_by_dow[$3] = clicks_by_dow[$3] + 1,
		     updated_at = now()
		 WHERE link_id = $1`,
		linkID, hour+1, dayOfWeek+1)
	if err != nil {
		return fmt.Errorf("apply time buckets: %w", err)
	}
	return nil
}

func (r *analyticsRepository) ApplyDaily(ctx context.Context, linkID, date string, newVisitor bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO link_daily_stats (link_id, date, clicks, unique_visitors)
		 VALUES ($1, $2::date, 1, $3)
		 ON CONFLICT (link_id, date) DO UPDATE
		 SET clicks = link_daily_stats.clicks + 1,
		     unique_visitors = link_daily_stats.unique_visitors + $3`,
		linkID, date, boolToCount(newVisitor))
	if err != nil {
		return fmt.Errorf("apply daily: %w", err)
	}
	return nil
}

func (r *analyticsRepository) ApplyDevice(ctx context.Context, linkID, device string) error {
	column, ok := deviceColumns[device]
	if !ok {
		column = deviceColumns[model.DeviceOther]
	}
	query := fmt.Sprintf(
		`UPDATE link_analytics SET %s = %s + 1, updated_at = now() WHERE link_id = $1`,
		column, column)
	if _, err := r.pool.Exec(ctx, query, linkID); err != nil {
		return fmt.Errorf("apply device: %w", err)
	}
	return nil
}

func (r *analyticsRepository) ApplyCounter(ctx context.Context, linkID, dimension, key string) error {
	column, ok := linkCounterColumns[dimension]
	if !ok {
		return fmt.Errorf("apply counter: unknown dimension %q", dimension)
	}
	return r.bumpJSONCounter(ctx, "link_analytics", "link_id", column, linkID, key)
}

func (r *analyticsRepository) CollectionApplyTotals(ctx context.Context, collectionID string, at time.Time, newVisitor bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE collection_analytics
		 SET total_clicks = total_clicks + 1,
		     unique_visitors = unique_visitors + $3,
		     last_clicked_at = GREATEST(coalesce(last_clicked_at, 'epoch'::timestamptz), $2),
		     updated_at = now()
		 WHERE collection_id = $1`,
		collectionID, at, boolToCount(newVisitor))
	if err != nil {
		return fmt.Errorf("collection apply totals: %w", err)
	}
	return nil
}

func (r *analyticsRepository) CollectionApplyTimeBuckets(ctx context.Context, collectionID string, hour, dayOfWeek int) error {
	if hour < 0 || hour > 23 || dayOfWeek < 0 || dayOfWeek > 6 {
		return fmt.Errorf("collection apply time buckets: hour %d / day %d out of range", hour, dayOfWeek)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE collection_analytics
		 SET clicks_by_hour[$2] = clicks_by_hour[$2] + 1,
		     clicks_by_dow[$3] = clicks_by_dow[$3] + 1,
		     updated_at = now()
		 WHERE collection_id = $1`,
		collectionID, hour+1, dayOfWeek+1)
	if err != nil {
		return fmt.Errorf("collection apply time buckets: %w", err)
	}
	return nil
}

func (r *analyticsRepository) CollectionApplyDaily(ctx context.Context, collectionID, date string, newVisitor bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO collection_daily_stats (collection_id, date, clicks, unique_visitors)
		 VALUES ($1, $2::date, 1, $3)
		 ON CONFLICT (collection_id, date) DO UPDATE
		 SET clicks = collection_daily_stats.clicks + 1,
		     unique_visitors = collection_daily_stats.unique_visitors + $3`,
		collectionID, date, boolToCount(newVisitor))
	if err != nil {
		return fmt.Errorf("collection apply daily: %w", err)
	}
	return nil
}

func (r *analyticsRepository) CollectionApplyDevice(ctx context.Context, collectionID, device string) error {
	column, ok := deviceColumns[device]
	if !ok {
		column = deviceColumns[model.DeviceOther]
	}
	query := fmt.Sprintf(
		`UPDATE collection_analytics SET %s = %s + 1, updated_at = now() WHERE collection_id = $1`,
		column, column)
	if _, err := r.pool.Exec(ctx, query, collectionID); err != nil {
		return fmt.Errorf("collection apply device: %w", err)
	}
	return nil
}

func (r *analyticsRepository) CollectionApplyCounter(ctx context.Context, collectionID, dimension, key string) error {
	column, ok := collectionCounterColumns[dimension]
	if !ok {
		return fmt.Errorf("collection apply counter: unknown dimension %q", dimension)
	}
	return r.bumpJSONCounter(ctx, "collection_analytics", "collection_id", column, collectionID, key)
}

func (r *analyticsRepository) UpsertLinkPerformance(ctx context.Context, collectionID, linkID, code string, newVisitor bool, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO collection_link_performance (collection_id, link_id, code, clicks, unique_visitors, last_clicked_at)
		 VALUES ($1, $2, $3, 1, $4, $5)
		 ON CONFLICT (collection_id, link_id) DO UPDATE
		 SET clicks = collection_link_performance.clicks + 1,
		     unique_visitors = collection_link_performance.unique_visitors + $4,
		     last_clicked_at = GREATEST(coalesce(collection_link_performance.last_clicked_at, 'epoch'::timestamptz), $5),
		     code = EXCLUDED.code`,
		collectionID, linkID, code, boolToCount(newVisitor), at)
	if err != nil {
		return fmt.Errorf("upsert link performance: %w", err)
	}
	return nil
}

// ReconcileCollection resets the collection's aggregate totals to the sums of
// its per-link performance rows. The rollup is eventual by design; this sweep
// closes the gap left by events dropped between the two write targets.
func (r *analyticsRepository) ReconcileCollection(ctx context.Context, collectionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE collection_analytics ca
		 SET total_clicks = s.clicks,
		     unique_visitors = s.uniques,
		     updated_at = now()
		 FROM (
		     SELECT coalesce(sum(clicks), 0) AS clicks,
		            coalesce(sum(unique_visitors), 0) AS uniques
		     FROM collection_link_performance
		     WHERE collection_id = $1
		 ) s
		 WHERE ca.collection_id = $1`,
		collectionID)
	if err != nil {
		return fmt.Errorf("reconcile collection: %w", err)
	}
	return nil
}

func (r *analyticsRepository) ListCollectionIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT collection_id FROM collection_analytics`)
	if err != nil {
		return nil, fmt.Errorf("list collection ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list collection ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *analyticsRepository) DeleteCollection(ctx context.Context, collectionID string) error {
	for _, table := range []string{
		"collection_link_performance",
		"collection_daily_stats",
		"collection_analytics",
	} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE collection_id = $1`, table)
		if _, err := r.pool.Exec(ctx, query, collectionID); err != nil {
			return fmt.Errorf("delete collection analytics: %w", err)
		}
	}
	return nil
}

func (r *analyticsRepository) GetLinkAnalytics(ctx context.Context, linkID string) (*model.LinkAnalytics, error) {
	a := &model.LinkAnalytics{LinkID: linkID}

	row := r.pool.QueryRow(ctx,
		`SELECT total_clicks, unique_visitors, last_clicked_at,
		        clicks_by_hour, clicks_by_dow,
		        device_mobile, device_desktop, device_tablet, device_other,
		        browsers, os, countries, cities, referrers, social,
		        conversions, revenue
		 FROM link_analytics WHERE link_id = $1`,
		linkID)

	err := row.Scan(
		&a.TotalClicks, &a.UniqueVisitors, &a.LastClickedAt,
		&a.ClicksByHour, &a.ClicksByDayOfWeek,
		&a.Devices.Mobile, &a.Devices.Desktop, &a.Devices.Tablet, &a.Devices.Other,
		&a.Browsers, &a.OS, &a.Countries, &a.Cities, &a.Referrers, &a.Social,
		&a.Conversions, &a.Revenue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalyticsNotFound
		}
		return nil, fmt.Errorf("get link analytics: %w", err)
	}

	a.ClicksByHour = padHistogram(a.ClicksByHour, 24)
	a.ClicksByDayOfWeek = padHistogram(a.ClicksByDayOfWeek, 7)
	if a.TotalClicks > 0 {
		a.ConversionRate = float64(a.Conversions) / float64(a.TotalClicks)
	}

	daily, err := r.dailyStats(ctx, "link_daily_stats", "link_id", linkID)
	if err != nil {
		return nil, err
	}
	a.ClicksByDate = daily

	return a, nil
}

func (r *analyticsRepository) GetCollectionAnalytics(ctx context.Context, collectionID string) (*model.CollectionAnalytics, error) {
	a := &model.CollectionAnalytics{CollectionID: collectionID}

	row := r.pool.QueryRow(ctx,
		`SELECT total_clicks, unique_visitors, last_clicked_at,
		        clicks_by_hour, clicks_by_dow,
		        device_mobile, device_desktop, device_tablet, device_other,
		        countries, referrers
		 FROM collection_analytics WHERE collection_id = $1`,
		collectionID)

	err := row.Scan(
		&a.TotalClicks, &a.UniqueVisitors, &a.LastClickedAt,
		&a.ClicksByHour, &a.ClicksByDayOfWeek,
		&a.Devices.Mobile, &a.Devices.Desktop, &a.Devices.Tablet, &a.Devices.Other,
		&a.Countries, &a.Referrers,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalyticsNotFound
		}
		return nil, fmt.Errorf("get collection analytics: %w", err)
	}

	a.ClicksByHour = padHistogram(a.ClicksByHour, 24)
	a.ClicksByDayOfWeek = padHistogram(a.ClicksByDayOfWeek, 7)

	daily, err := r.dailyStats(ctx, "collection_daily_stats", "collection_id", collectionID)
	if err != nil {
		return nil, err
	}
	a.ClicksByDate = daily

	rows, err := r.pool.Query(ctx,
		`SELECT link_id, code, clicks, unique_visitors, last_clicked_at
		 FROM collection_link_performance
		 WHERE collection_id = $1
		 ORDER BY clicks DESC, link_id`,
		collectionID)
	if err != nil {
		return nil, fmt.Errorf("get link performance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.LinkPerformance
		if err := rows.Scan(&p.LinkID, &p.Code, &p.Clicks, &p.UniqueVisitors, &p.LastClickedAt); err != nil {
			return nil, fmt.Errorf("get link performance: %w", err)
		}
		a.LinkPerformance = append(a.LinkPerformance, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get link performance: %w", err)
	}

	return a, nil
}

func (r *analyticsRepository) dailyStats(ctx context.Context, table, idColumn, id string) ([]model.DailyStat, error) {
	query := fmt.Sprintf(
		`SELECT to_char(date, 'YYYY-MM-DD'), clicks, unique_visitors FROM %s WHERE %s = $1 ORDER BY date`,
		table, idColumn)

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer rows.Close()

	var stats []model.DailyStat
	for rows.Next() {
		var s model.DailyStat
		if err := rows.Scan(&s.Date, &s.Clicks, &s.UniqueVisitors); err != nil {
			return nil, fmt.Errorf("daily stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *analyticsRepository) bumpJSONCounter(ctx context.Context, table, idColumn, column, id, key string) error {
	query := fmt.Sprintf(
		`UPDATE %s
		 SET %s = jsonb_set(%s, ARRAY[$2], to_jsonb(coalesce((%s->>$2)::bigint, 0) + 1)),
		     updated_at = now()
		 WHERE %s = $1`,
		table, column, column, column, idColumn)
	if _, err := r.pool.Exec(ctx, query, id, key); err != nil {
		return fmt.Errorf("bump %s counter: %w", column, err)
	}
	return nil
}

func padHistogram(values []int64, size int) []int64 {
	if len(values) == size {
		return values
	}
	padded := make([]int64, size)
	copy(padded, values)
	return padded
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
