package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/infra/geoip"
	infraprom "github.com/linkpulse/linkpulse/internal/infra/prometheus"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

// socialPlatforms maps referrer domains to the fixed social tally. Anything
// not listed here falls into the generic referrer-domain tally instead.
var socialPlatforms = map[string]string{
	"twitter.com":    "twitter",
	"x.com":          "twitter",
	"t.co":           "twitter",
	"facebook.com":   "facebook",
	"fb.com":         "facebook",
	"m.facebook.com": "facebook",
	"instagram.com":  "instagram",
	"linkedin.com":   "linkedin",
	"lnkd.in":        "linkedin",
	"reddit.com":     "reddit",
	"youtube.com":    "youtube",
	"youtu.be":       "youtube",
	"tiktok.com":     "tiktok",
	"pinterest.com":  "pinterest",
	"wa.me":          "whatsapp",
	"whatsapp.com":   "whatsapp",
	"t.me":           "telegram",
	"telegram.org":   "telegram",
}

// Normalizer turns raw click events into fully classified clicks. Every
// dimension is individually best-effort: a failed geo lookup or an
// unparseable referrer leaves that dimension empty and the rest intact.
type Normalizer struct {
	geo    geoip.Resolver
	logger *zap.Logger
}

// NewNormalizer builds a normalizer. geo may be nil to disable geography.
func NewNormalizer(geo geoip.Resolver, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{geo: geo, logger: logger}
}

// Normalize classifies one event. It never fails: dimensions it cannot fill
// stay empty and increment nothing downstream.
func (n *Normalizer) Normalize(ctx context.Context, event model.ClickEvent) model.NormalizedClick {
	click := model.NormalizedClick{
		LinkID:       event.LinkID,
		LinkCode:     event.LinkCode,
		CollectionID: event.CollectionID,
		Fingerprint:  Fingerprint(event.VisitorID, event.IP, event.UserAgent),
		Timestamp:    event.Timestamp,
	}

	// Calendar bucketing uses UTC as the fixed reference timezone.
	utc := event.Timestamp.UTC()
	click.Date = utc.Format("2006-01-02")
	click.Hour = utc.Hour()
	click.DayOfWeek = int(utc.Weekday())

	click.Device, click.Browser, click.OS = classifyUserAgent(event.UserAgent)

	if n.geo != nil && event.IP != "" {
		loc, err := n.geo.Lookup(ctx, event.IP)
		if err != nil {
			infraprom.IngestErrors.WithLabelValues("geo").Inc()
			n.logger.Warn("geo lookup failed", zap.Error(err), zap.String("link_id", event.LinkID))
		} else if !loc.Unknown() {
			// Unknown results increment nothing rather than an
			// "unknown" bucket, to avoid skewing totals.
			click.Country = loc.Country
			click.City = loc.City
		}
	}

	click.ReferrerDomain, click.SocialPlatform = classifyReferrer(event.Referrer)

	return click
}

// Fingerprint derives the unique-visitor identifier: the explicit visitor id
// when present, otherwise a hash of IP and user agent.
func Fingerprint(visitorID, ip, userAgent string) string {
	if visitorID != "" {
		return visitorID
	}
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:16])
}

func classifyUserAgent(raw string) (device, browser, os string) {
	if raw == "" {
		return model.DeviceOther, "", ""
	}

	ua := useragent.Parse(raw)
	switch {
	case ua.Tablet:
		device = model.DeviceTablet
	case ua.Mobile:
		device = model.DeviceMobile
	case ua.Desktop:
		device = model.DeviceDesktop
	default:
		device = model.DeviceOther
	}

	return device, ua.Name, ua.OS
}

// classifyReferrer buckets a referrer into either the fixed social tally or
// the generic referrer-domain tally. An empty referrer is direct traffic and
// lands in neither.
func classifyReferrer(referrer string) (domain, social string) {
	if referrer == "" {
		return "", ""
	}

	host := referrer
	if parsed, err := url.Parse(referrer); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	host = strings.ToLower(host)
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	host = strings.TrimPrefix(host, "www.")

	if platform, ok := socialPlatforms[host]; ok {
		return "", platform
	}
	return host, ""
}
