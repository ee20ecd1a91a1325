package model

import "time"

// ClickEvent is the raw visit record published after a successful resolution.
// CollectionID is captured at publish time so the consumer does not have to
// re-read the link to find the rollup target.
type ClickEvent struct {
	ID           string    `json:"id"`
	LinkID       string    `json:"link_id"`
	LinkCode     string    `json:"link_code"`
	CollectionID string    `json:"collection_id,omitempty"`
	VisitorID    string    `json:"visitor_id,omitempty"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"user_agent"`
	Referrer     string    `json:"referrer,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-aggregator"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
