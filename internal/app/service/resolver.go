package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
	infraprom "github.com/linkpulse/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Outcome is a terminal state of the resolution state machine.
type Outcome string

const (
	OutcomeResolved         Outcome = "resolved"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeExpired          Outcome = "expired"
	OutcomePasswordRequired Outcome = "password_required"
	OutcomePasswordInvalid  Outcome = "password_invalid"
)

// Resolution is the decision for one inbound request. Destination and
// Permanent are meaningful only for OutcomeResolved: protected links get a
// temporary, non-cacheable redirect so the password check cannot be bypassed
// by an HTTP cache; open links get a cacheable permanent redirect.
type Resolution struct {
	Outcome     Outcome
	Destination string
	Permanent   bool
	Link        *model.Link
}

// ClickEmitter hands a click event to the ingestion stream. Implementations
// are best-effort; the resolver never fails a redirect over an emit error.
type ClickEmitter interface {
	Publish(event model.ClickEvent) error
}

// Resolver is the short-link resolution state machine.
type Resolver struct {
	links   repository.LinkRepository
	emitter ClickEmitter
	logger  *zap.Logger
}

// NewResolver builds a resolver over the given registry. emitter may be nil,
// in which case resolved clicks are not recorded.
func NewResolver(links repository.LinkRepository, emitter ClickEmitter, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{links: links, emitter: emitter, logger: logger}
}

// Resolve runs Lookup → ActiveCheck → ExpiryCheck → PasswordCheck → Resolved
// against a single snapshot read of the link. An inactive link is reported as
// not found so callers cannot distinguish disabled links from absent ones, and
// expiry is checked before the password so a dead link never prompts.
func (r *Resolver) Resolve(ctx context.Context, key, suppliedPassword string, now time.Time) (Resolution, error) {
	link, err := r.links.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return r.terminal(Resolution{Outcome: OutcomeNotFound}), nil
		}
		return Resolution{}, fmt.Errorf("resolve %q: %w", key, err)
	}

	if !link.Active {
		return r.terminal(Resolution{Outcome: OutcomeNotFound, Link: link}), nil
	}

	if link.ExpiredAt(now) {
		return r.terminal(Resolution{Outcome: OutcomeExpired, Link: link}), nil
	}

	if link.Protected() {
		if suppliedPassword == "" {
			return r.terminal(Resolution{Outcome: OutcomePasswordRequired, Link: link}), nil
		}
		if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(suppliedPassword)) != nil {
			return r.terminal(Resolution{Outcome: OutcomePasswordInvalid, Link: link}), nil
		}
		return r.terminal(Resolution{
			Outcome:     OutcomeResolved,
			Destination: link.URL,
			Permanent:   false,
			Link:        link,
		}), nil
	}

	return r.terminal(Resolution{
		Outcome:     OutcomeResolved,
		Destination: link.URL,
		Permanent:   true,
		Link:        link,
	}), nil
}

func (r *Resolver) terminal(res Resolution) Resolution {
	infraprom.Resolutions.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

// Visit carries the request metadata recorded alongside a resolved click.
type Visit struct {
	IP        string
	UserAgent string
	Referrer  string
	VisitorID string
}

// RecordVisit publishes a click event for a resolved link. Call it from a
// goroutine: it is fire-and-forget telemetry and only logs on failure.
func (r *Resolver) RecordVisit(link *model.Link, visit Visit, at time.Time) {
	if r.emitter == nil || link == nil {
		return
	}

	event := model.ClickEvent{
		LinkID:    link.ID,
		LinkCode:  link.Code,
		VisitorID: visit.VisitorID,
		IP:        visit.IP,
		UserAgent: visit.UserAgent,
		Referrer:  visit.Referrer,
		Timestamp: at,
	}
	if link.CollectionID != nil {
		event.CollectionID = *link.CollectionID
	}

	if err := r.emitter.Publish(event); err != nil {
		r.logger.Error("failed to publish click event",
			zap.Error(err),
			zap.String("code", link.Code))
		return
	}
	infraprom.ClicksPublished.Inc()
}
