package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/linkpulse/linkpulse/internal/app/repository"
	"github.com/linkpulse/linkpulse/internal/app/service"
	"github.com/linkpulse/linkpulse/internal/http/handler"
	"github.com/linkpulse/linkpulse/internal/http/middleware"
	"github.com/linkpulse/linkpulse/internal/http/util"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs to register routes.
type Dependencies struct {
	Logger      *zap.Logger
	Redis       *redis.Client
	Resolver    *service.Resolver
	LinkService service.LinkService
	Collections service.CollectionService
	Analytics   repository.AnalyticsRepository
	TokenSigner *util.TokenSigner
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app, primarily for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())

	apiGroup := s.app.Group("/api")
	if s.deps.Redis != nil {
		apiGroup.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}
	apiGroup.Use(middleware.OwnerAuth(s.deps.TokenSigner))

	apiHandler := handler.NewAPIHandler(handler.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		Collections: s.deps.Collections,
		Analytics:   s.deps.Analytics,
	})
	apiHandler.Register(s.app)

	// Registered last so /:code does not shadow the API routes.
	redirectHandler := handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:   s.deps.Logger,
		Resolver: s.deps.Resolver,
	})
	redirectHandler.Register(s.app)
}
