package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/linkpulse/linkpulse/internal/app/service"
	"github.com/linkpulse/linkpulse/internal/http/view"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver *service.Resolver
}

// RedirectHandler implements the public resolution flow: redirect, password
// challenge or not-found. Nothing here requires authentication.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver *service.Resolver
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/password/:code", h.PasswordPage)
	router.Get("/:code", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "linkpulse",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code (optionally ?password=...) and maps the
// resolution outcome onto the wire: permanent redirect for open links,
// non-cacheable temporary redirect for protected ones, password challenge or
// not-found. No resolution outcome ever becomes a 500; only a storage failure
// does.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()
	res, err := h.resolver.Resolve(ctx, code, c.Query("password"), now)
	if err != nil {
		h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	switch res.Outcome {
	case service.OutcomeResolved:
		// The request strings alias fasthttp's reusable buffers; they must
		// be copied before they outlive the handler.
		visit := service.Visit{
			IP:        utils.CopyString(c.IP()),
			UserAgent: utils.CopyString(c.Get("User-Agent")),
			Referrer:  utils.CopyString(c.Get("Referer")),
			VisitorID: utils.CopyString(c.Cookies("visitor_id")),
		}
		// The redirect never waits on analytics.
		go h.resolver.RecordVisit(res.Link, visit, now)

		if res.Permanent {
			return c.Redirect(res.Destination, fiber.StatusMovedPermanently)
		}
		// Caches must never retain a redirect gated behind a password.
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Redirect(res.Destination, fiber.StatusFound)

	case service.OutcomeExpired:
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "link expired",
		})

	case service.OutcomePasswordRequired:
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Redirect(fmt.Sprintf("/password/%s", res.Link.Code), fiber.StatusFound)

	case service.OutcomePasswordInvalid:
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Redirect(fmt.Sprintf("/password/%s?error=1", res.Link.Code), fiber.StatusFound)

	default:
		// NotFound covers both unknown keys and inactive links.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short link not found",
		})
	}
}

// PasswordPage renders the interactive password-entry surface. The form
// resubmits the original key so the retry lands back on Resolve.
func (h *RedirectHandler) PasswordPage(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	html, err := view.RenderPasswordPage(view.PasswordPageData{
		Code:     code,
		HasError: c.Query("error") != "",
	})
	if err != nil {
		h.logger.Error("failed to render password page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}

	return c.
		Type("html", "utf-8").
		SendString(html)
}
