package model

import "time"

// Device classes produced by user-agent classification.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
	DeviceOther   = "other"
)

// SeenVisitorCap bounds the per-link fingerprint set. Once the set is full,
// unseen fingerprints are counted as non-unique instead of growing storage.
const SeenVisitorCap = 10000

// CounterMap is an open-ended string-keyed tally (browser, OS, country, city,
// referrer domain, social platform). Unseen values become new keys.
type CounterMap map[string]int64

// DailyStat is one calendar-day entry of the per-link time series.
type DailyStat struct {
	Date           string `json:"date"` // YYYY-MM-DD, UTC
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// DeviceTally is the fixed device-class breakdown.
type DeviceTally struct {
	Mobile  int64 `json:"mobile"`
	Desktop int64 `json:"desktop"`
	Tablet  int64 `json:"tablet"`
	Other   int64 `json:"other"`
}

// LinkAnalytics is the full per-link rollup, assembled from the analytics
// tables. ClicksByHour always has 24 entries and ClicksByDayOfWeek always 7
// (0=Sunday), regardless of how many updates have been applied.
type LinkAnalytics struct {
	LinkID         string     `json:"link_id"`
	TotalClicks    int64      `json:"total_clicks"`
	UniqueVisitors int64      `json:"unique_visitors"`
	LastClickedAt  *time.Time `json:"last_clicked_at,omitempty"`

	ClicksByDate      []DailyStat `json:"clicks_by_date"`
	ClicksByHour      []int64     `json:"clicks_by_hour"`
	ClicksByDayOfWeek []int64     `json:"clicks_by_day_of_week"`

	Devices   DeviceTally `json:"devices"`
	Browsers  CounterMap  `json:"browsers"`
	OS        CounterMap  `json:"os"`
	Countries CounterMap  `json:"countries"`
	Cities    CounterMap  `json:"cities"`
	Referrers CounterMap  `json:"referrers"`
	Social    CounterMap  `json:"social"`

	// Derived metrics maintained by the same pipeline.
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	Revenue        float64 `json:"revenue"`
}

// LinkPerformance is one entry of a collection's per-link breakdown,
// refreshed whenever a member link records a click.
type LinkPerformance struct {
	LinkID         string     `json:"link_id"`
	Code           string     `json:"code"`
	Clicks         int64      `json:"clicks"`
	UniqueVisitors int64      `json:"unique_visitors"`
	LastClickedAt  *time.Time `json:"last_clicked_at,omitempty"`
}

// CollectionAnalytics mirrors the aggregate/time/device/geo/referrer subset of
// LinkAnalytics at the collection level. The rollup is eventual, not
// transactional: it converges with the per-link records once ingestion
// quiesces.
type CollectionAnalytics struct {
	CollectionID   string     `json:"collection_id"`
	TotalClicks    int64      `json:"total_clicks"`
	UniqueVisitors int64      `json:"unique_visitors"`
	LastClickedAt  *time.Time `json:"last_clicked_at,omitempty"`

	ClicksByDate      []DailyStat `json:"clicks_by_date"`
	ClicksByHour      []int64     `json:"clicks_by_hour"`
	ClicksByDayOfWeek []int64     `json:"clicks_by_day_of_week"`

	Devices   DeviceTally `json:"devices"`
	Countries CounterMap  `json:"countries"`
	Referrers CounterMap  `json:"referrers"`

	LinkPerformance []LinkPerformance `json:"link_performance"`
}

// NormalizedClick is the ingestion pipeline's output: one click event with
// every dimension already classified, ready for the aggregator to apply.
// Empty dimension fields mean "nothing to increment" for that dimension.
type NormalizedClick struct {
	LinkID       string
	LinkCode     string
	CollectionID string
	Fingerprint  string
	Timestamp    time.Time

	Date      string // YYYY-MM-DD, UTC
	Hour      int    // 0-23
	DayOfWeek int    // 0=Sunday .. 6=Saturday

	Device  string
	Browser string
	OS      string

	Country string
	City    string

	ReferrerDomain string
	SocialPlatform string
}
