package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
	"github.com/linkpulse/linkpulse/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubLinkRepository struct {
	link *model.Link
}

func (s *stubLinkRepository) Create(ctx context.Context, link *model.Link) error { return nil }

func (s *stubLinkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	return nil, repository.ErrLinkNotFound
}

func (s *stubLinkRepository) GetByKey(ctx context.Context, key string) (*model.Link, error) {
	if s.link != nil && (key == s.link.Code || key == s.link.Alias) {
		return s.link, nil
	}
	return nil, repository.ErrLinkNotFound
}

func (s *stubLinkRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (s *stubLinkRepository) AllKeys(ctx context.Context) ([]string, error) { return nil, nil }

func (s *stubLinkRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	return nil, nil
}

func (s *stubLinkRepository) ListByCollection(ctx context.Context, collectionID string) ([]model.Link, error) {
	return nil, nil
}

func (s *stubLinkRepository) Update(ctx context.Context, link *model.Link) error { return nil }

func (s *stubLinkRepository) Delete(ctx context.Context, id string) error { return nil }

func (s *stubLinkRepository) BumpCounters(ctx context.Context, linkID string, newVisitor bool, at time.Time) error {
	return nil
}

func newRedirectApp(link *model.Link) *fiber.App {
	app := fiber.New()
	h := NewRedirectHandler(RedirectDeps{
		Resolver: service.NewResolver(&stubLinkRepository{link: link}, nil, nil),
	})
	h.Register(app)
	return app
}

func TestRedirectHandler_OpenLink(t *testing.T) {
	app := newRedirectApp(&model.Link{
		ID:     "l1",
		Code:   "abc1234",
		URL:    "https://example.com/page",
		Active: true,
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/abc1234", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "https://example.com/page", resp.Header.Get("Location"))
}

func TestRedirectHandler_NotFound(t *testing.T) {
	app := newRedirectApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRedirectHandler_InactiveIsNotFound(t *testing.T) {
	app := newRedirectApp(&model.Link{
		ID:     "l1",
		Code:   "abc1234",
		URL:    "https://example.com",
		Active: false,
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/abc1234", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRedirectHandler_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	app := newRedirectApp(&model.Link{
		ID:        "l1",
		Code:      "abc1234",
		URL:       "https://example.com",
		Active:    true,
		ExpiresAt: &past,
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/abc1234", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
}

func TestRedirectHandler_PasswordFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	app := newRedirectApp(&model.Link{
		ID:           "l1",
		Code:         "abc1234",
		URL:          "https://example.com/gated",
		Active:       true,
		PasswordHash: string(hash),
	})

	// No password: challenge redirect, never cacheable.
	resp, err := app.Test(httptest.NewRequest("GET", "/abc1234", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/password/abc1234", resp.Header.Get("Location"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	// Wrong password: back to the form with the error flag.
	resp, err = app.Test(httptest.NewRequest("GET", "/abc1234?password=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/password/abc1234?error=1", resp.Header.Get("Location"))

	// Correct password: temporary redirect to the destination, never cacheable.
	resp, err = app.Test(httptest.NewRequest("GET", "/abc1234?password=secret", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/gated", resp.Header.Get("Location"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []model.ClickEvent
	done   chan struct{}
}

func (e *recordingEmitter) Publish(event model.ClickEvent) error {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
	e.done <- struct{}{}
	return nil
}

// Visit metadata is read on a goroutine after the handler has returned and
// fasthttp has recycled the request buffers for the next request. Each click
// event must still carry the metadata of the request that produced it.
func TestRedirectHandler_VisitMetadataSurvivesNextRequest(t *testing.T) {
	emitter := &recordingEmitter{done: make(chan struct{}, 2)}
	app := fiber.New()
	h := NewRedirectHandler(RedirectDeps{
		Resolver: service.NewResolver(&stubLinkRepository{link: &model.Link{
			ID:     "l1",
			Code:   "abc1234",
			URL:    "https://example.com",
			Active: true,
		}}, emitter, nil),
	})
	h.Register(app)

	uaFirst := strings.Repeat("A", 400)
	uaSecond := strings.Repeat("B", 400)

	for _, ua := range []string{uaFirst, uaSecond} {
		req := httptest.NewRequest("GET", "/abc1234", nil)
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Referer", "https://ref.example/"+ua[:1])
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusMovedPermanently, resp.StatusCode)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-emitter.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for click events")
		}
	}

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Len(t, emitter.events, 2)

	seen := map[string]int{}
	for _, event := range emitter.events {
		seen[event.UserAgent]++
	}
	assert.Equal(t, 1, seen[uaFirst], "first request's event lost its own user agent")
	assert.Equal(t, 1, seen[uaSecond], "second request's event lost its own user agent")
}

func TestRedirectHandler_PasswordPage(t *testing.T) {
	app := newRedirectApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/password/abc1234", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
