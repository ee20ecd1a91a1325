package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Analytics tables are written with targeted single-statement increments, so
// their schema lives outside GORM: fixed-size bigint arrays for the hour and
// day-of-week histograms and jsonb counter maps for the open-ended breakdowns.
var analyticsDDL = []string{
	`CREATE TABLE IF NOT EXISTS link_analytics (
		link_id          text PRIMARY KEY,
		total_clicks     bigint NOT NULL DEFAULT 0,
		unique_visitors  bigint NOT NULL DEFAULT 0,
		last_clicked_at  timestamptz,
		clicks_by_hour   bigint[] NOT NULL DEFAULT array_fill(0::bigint, ARRAY[24]),
		clicks_by_dow    bigint[] NOT NULL DEFAULT array_fill(0::bigint, ARRAY[7]),
		device_mobile    bigint NOT NULL DEFAULT 0,
		device_desktop   bigint NOT NULL DEFAULT 0,
		device_tablet    bigint NOT NULL DEFAULT 0,
		device_other     bigint NOT NULL DEFAULT 0,
		browsers         jsonb NOT NULL DEFAULT '{}'::jsonb,
		os               jsonb NOT NULL DEFAULT '{}'::jsonb,
		countries        jsonb NOT NULL DEFAULT '{}'::jsonb,
		cities           jsonb NOT NULL DEFAULT '{}'::jsonb,
		referrers        jsonb NOT NULL DEFAULT '{}'::jsonb,
		social           jsonb NOT NULL DEFAULT '{}'::jsonb,
		seen_visitors    jsonb NOT NULL DEFAULT '[]'::jsonb,
		conversions      bigint NOT NULL DEFAULT 0,
		revenue          double precision NOT NULL DEFAULT 0,
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS link_daily_stats (
		link_id          text NOT NULL,
		date             date NOT NULL,
		clicks           bigint NOT NULL DEFAULT 0,
		unique_visitors  bigint NOT NULL DEFAULT 0,
		PRIMARY KEY (link_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS collection_analytics (
		collection_id    text PRIMARY KEY,
		total_clicks     bigint NOT NULL DEFAULT 0,
		unique_visitors  bigint NOT NULL DEFAULT 0,
		last_clicked_at  timestamptz,
		clicks_by_hour   bigint[] NOT NULL DEFAULT array_fill(0::bigint, ARRAY[24]),
		clicks_by_dow    bigint[] NOT NULL DEFAULT array_fill(0::bigint, ARRAY[7]),
		device_mobile    bigint NOT NULL DEFAULT 0,
		device_desktop   bigint NOT NULL DEFAULT 0,
		device_tablet    bigint NOT NULL DEFAULT 0,
		device_other     bigint NOT NULL DEFAULT 0,
		countries        jsonb NOT NULL DEFAULT '{}'::jsonb,
		referrers        jsonb NOT NULL DEFAULT '{}'::jsonb,
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS collection_daily_stats (
		collection_id    text NOT NULL,
		date             date NOT NULL,
		clicks           bigint NOT NULL DEFAULT 0,
		unique_visitors  bigint NOT NULL DEFAULT 0,
		PRIMARY KEY (collection_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS collection_link_performance (
		collection_id    text NOT NULL,
		link_id          text NOT NULL,
		code             text NOT NULL DEFAULT '',
		clicks           bigint NOT NULL DEFAULT 0,
		unique_visitors  bigint NOT NULL DEFAULT 0,
		last_clicked_at  timestamptz,
		PRIMARY KEY (collection_id, link_id)
	)`,
}

// MigrateAnalytics creates the analytics tables if they do not exist.
func MigrateAnalytics(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range analyticsDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: migrate analytics: %w", err)
		}
	}
	return nil
}

// Codes and aliases are unique case-insensitively, which GORM's column tags
// cannot express. These functional indexes are the authoritative constraint:
// they make a case-variant insert fail with 23505 so the repository's
// key-taken mapping fires for aliases as well as codes.
var linkKeyDDL = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS links_code_lower_key
		ON links (LOWER(code))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS links_alias_lower_key
		ON links (LOWER(alias)) WHERE alias <> ''`,
}

// MigrateLinkKeys enforces case-insensitive key uniqueness on the links
// table. Run after AutoMigrate has created the table.
func MigrateLinkKeys(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range linkKeyDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: migrate link keys: %w", err)
		}
	}
	return nil
}
