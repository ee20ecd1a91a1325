package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
	"github.com/linkpulse/linkpulse/internal/app/service"
	"github.com/linkpulse/linkpulse/internal/http/middleware"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Collections service.CollectionService
	Analytics   repository.AnalyticsRepository
}

// APIHandler implements the owner-facing management and analytics endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	collections service.CollectionService
	analytics   repository.AnalyticsRepository
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		collections: deps.Collections,
		analytics:   deps.Analytics,
	}
}

// Register wires API routes onto the provided router. The caller is expected
// to have attached OwnerAuth in front of this group.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:id", h.GetLink)
			links.Patch("/:id", h.UpdateLink)
			links.Delete("/:id", h.DeleteLink)
			links.Get("/:id/analytics", h.LinkAnalytics)
		}

		collections := api.Group("/collections")
		{
			collections.Post("/", h.CreateCollection)
			collections.Get("/", h.ListCollections)
			collections.Get("/:id", h.GetCollection)
			collections.Delete("/:id", h.DeleteCollection)
			collections.Put("/:id/links/:linkId", h.AddLinkToCollection)
			collections.Delete("/:id/links/:linkId", h.RemoveLinkFromCollection)
			collections.Get("/:id/analytics", h.CollectionAnalytics)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	URL          string     `json:"url" validate:"required,url"`
	Alias        string     `json:"alias,omitempty"`
	Password     string     `json:"password,omitempty"`
	CollectionID *string    `json:"collection_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	URL          *string    `json:"url,omitempty"`
	Alias        *string    `json:"alias,omitempty"`
	Password     *string    `json:"password,omitempty"`
	CollectionID *string    `json:"collection_id,omitempty"`
	Active       *bool      `json:"active,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is the wire shape of a link. The password hash never leaves
// the server; only the protected flag does.
type LinkResponse struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Alias          string     `json:"alias,omitempty"`
	URL            string     `json:"url"`
	CollectionID   *string    `json:"collection_id,omitempty"`
	Protected      bool       `json:"protected"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClickCount     int64      `json:"click_count"`
	UniqueVisitors int64      `json:"unique_visitors"`
	LastClickedAt  *time.Time `json:"last_clicked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:             link.ID,
		Code:           link.Code,
		Alias:          link.Alias,
		URL:            link.URL,
		CollectionID:   link.CollectionID,
		Protected:      link.Protected(),
		Active:         link.Active,
		ExpiresAt:      link.ExpiresAt,
		ClickCount:     link.ClickCount,
		UniqueVisitors: link.UniqueVisitors,
		LastClickedAt:  link.LastClickedAt,
		CreatedAt:      link.CreatedAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	link, err := h.linkService.CreateLink(requestCtx(c), service.CreateLinkInput{
		URL:          req.URL,
		Alias:        req.Alias,
		OwnerID:      middleware.OwnerID(c),
		CollectionID: req.CollectionID,
		Password:     req.Password,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrInvalidAlias):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrAliasTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrGenerationExhausted):
			h.logger.Error("short code space exhausted", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to allocate short code"})
		default:
			h.logger.Error("failed to create link", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create link"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(linkResponse(link))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := 20
	offset := 0
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}

	links, err := h.linkService.ListLinks(requestCtx(c), middleware.OwnerID(c), limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = linkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, ok := h.ownedLink(c)
	if !ok {
		return nil
	}
	return c.JSON(linkResponse(link))
}

// UpdateLink handles PATCH /api/links/:id
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	link, ok := h.ownedLink(c)
	if !ok {
		return nil
	}

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	updated, err := h.linkService.UpdateLink(requestCtx(c), link.ID, service.UpdateLinkInput{
		URL:          req.URL,
		Alias:        req.Alias,
		Password:     req.Password,
		CollectionID: req.CollectionID,
		Active:       req.Active,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrInvalidAlias):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrAliasTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			h.logger.Error("failed to update link", zap.Error(err), zap.String("id", link.ID))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update link"})
		}
	}

	return c.JSON(linkResponse(updated))
}

// DeleteLink handles DELETE /api/links/:id
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	link, ok := h.ownedLink(c)
	if !ok {
		return nil
	}

	if err := h.linkService.DeleteLink(requestCtx(c), link.ID); err != nil {
		h.logger.Error("failed to delete link", zap.Error(err), zap.String("id", link.ID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete link",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LinkAnalytics handles GET /api/links/:id/analytics. The snapshot is
// returned verbatim; no extra transformation layer sits in front of it.
func (h *APIHandler) LinkAnalytics(c *fiber.Ctx) error {
	link, ok := h.ownedLink(c)
	if !ok {
		return nil
	}

	snapshot, err := h.analytics.GetLinkAnalytics(requestCtx(c), link.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAnalyticsNotFound) {
			return c.JSON(&model.LinkAnalytics{
				LinkID:            link.ID,
				ClicksByHour:      make([]int64, 24),
				ClicksByDayOfWeek: make([]int64, 7),
			})
		}
		h.logger.Error("failed to load link analytics", zap.Error(err), zap.String("id", link.ID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load analytics",
		})
	}

	return c.JSON(snapshot)
}

// CreateCollectionRequest represents the request body for creating a collection.
type CreateCollectionRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateCollection handles POST /api/collections
func (h *APIHandler) CreateCollection(c *fiber.Ctx) error {
	var req CreateCollectionRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	collection, err := h.collections.CreateCollection(requestCtx(c), middleware.OwnerID(c), req.Name)
	if err != nil {
		h.logger.Error("failed to create collection", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create collection",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(collection)
}

// ListCollections handles GET /api/collections
func (h *APIHandler) ListCollections(c *fiber.Ctx) error {
	collections, err := h.collections.ListCollections(requestCtx(c), middleware.OwnerID(c))
	if err != nil {
		h.logger.Error("failed to list collections", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list collections",
		})
	}
	return c.JSON(fiber.Map{"collections": collections, "count": len(collections)})
}

// GetCollection handles GET /api/collections/:id
func (h *APIHandler) GetCollection(c *fiber.Ctx) error {
	collection, ok := h.ownedCollection(c)
	if !ok {
		return nil
	}
	return c.JSON(collection)
}

// DeleteCollection handles DELETE /api/collections/:id
func (h *APIHandler) DeleteCollection(c *fiber.Ctx) error {
	collection, ok := h.ownedCollection(c)
	if !ok {
		return nil
	}

	if err := h.collections.DeleteCollection(requestCtx(c), collection.ID); err != nil {
		h.logger.Error("failed to delete collection", zap.Error(err), zap.String("id", collection.ID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete collection",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddLinkToCollection handles PUT /api/collections/:id/links/:linkId
func (h *APIHandler) AddLinkToCollection(c *fiber.Ctx) error {
	collection, ok := h.ownedCollection(c)
	if !ok {
		return nil
	}

	link, err := h.linkService.GetLink(requestCtx(c), c.Params("linkId"))
	if err != nil || link.OwnerID != middleware.OwnerID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link not found"})
	}

	if err := h.collections.AddLink(requestCtx(c), collection.ID, link.ID); err != nil {
		h.logger.Error("failed to add link to collection", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to add link to collection",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveLinkFromCollection handles DELETE /api/collections/:id/links/:linkId
func (h *APIHandler) RemoveLinkFromCollection(c *fiber.Ctx) error {
	if _, ok := h.ownedCollection(c); !ok {
		return nil
	}

	link, err := h.linkService.GetLink(requestCtx(c), c.Params("linkId"))
	if err != nil || link.OwnerID != middleware.OwnerID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link not found"})
	}

	if err := h.collections.RemoveLink(requestCtx(c), link.ID); err != nil {
		h.logger.Error("failed to remove link from collection", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to remove link from collection",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CollectionAnalytics handles GET /api/collections/:id/analytics
func (h *APIHandler) CollectionAnalytics(c *fiber.Ctx) error {
	collection, ok := h.ownedCollection(c)
	if !ok {
		return nil
	}

	snapshot, err := h.analytics.GetCollectionAnalytics(requestCtx(c), collection.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAnalyticsNotFound) {
			return c.JSON(&model.CollectionAnalytics{
				CollectionID:      collection.ID,
				ClicksByHour:      make([]int64, 24),
				ClicksByDayOfWeek: make([]int64, 7),
			})
		}
		h.logger.Error("failed to load collection analytics", zap.Error(err), zap.String("id", collection.ID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load analytics",
		})
	}

	return c.JSON(snapshot)
}

// ownedLink loads the :id link and enforces ownership. When it returns
// ok=false the response has already been written.
func (h *APIHandler) ownedLink(c *fiber.Ctx) (*model.Link, bool) {
	id := c.Params("id")
	if id == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id is required"})
		return nil, false
	}

	link, err := h.linkService.GetLink(requestCtx(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link not found"})
			return nil, false
		}
		h.logger.Error("failed to load link", zap.Error(err), zap.String("id", id))
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		return nil, false
	}

	if link.OwnerID != middleware.OwnerID(c) {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link not found"})
		return nil, false
	}
	return link, true
}

func (h *APIHandler) ownedCollection(c *fiber.Ctx) (*model.Collection, bool) {
	id := c.Params("id")
	if id == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id is required"})
		return nil, false
	}

	collection, err := h.collections.GetCollection(requestCtx(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "collection not found"})
			return nil, false
		}
		h.logger.Error("failed to load collection", zap.Error(err), zap.String("id", id))
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		return nil, false
	}

	if collection.OwnerID != middleware.OwnerID(c) {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "collection not found"})
		return nil, false
	}
	return collection, true
}

func requestCtx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
