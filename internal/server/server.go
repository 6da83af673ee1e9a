// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messiahverse/internal/cache"
	"messiahverse/internal/config"
	"messiahverse/internal/database"
	"messiahverse/internal/imagehost"
	"messiahverse/internal/middleware"
	"messiahverse/internal/models"
	"messiahverse/internal/notifications"
	"messiahverse/internal/repository"
	"messiahverse/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo repository.UserRepository
	postRepo repository.PostRepository
	moodRepo repository.MoodRepository

	notifier *notifications.Notifier
	moodHub  *notifications.Hub

	postService   *service.PostService
	userService   *service.UserService
	moodService   *service.MoodService
	uploadService *service.UploadService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	moodRepo := repository.NewMoodRepository(db)

	prom := middleware.InitMetrics("messiahverse-api")

	shutdownCtx, shutdownFn := context.WithCancel(context.Background())

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		shutdownCtx:    shutdownCtx,
		shutdownFn:     shutdownFn,
		userRepo:       userRepo,
		postRepo:       postRepo,
		moodRepo:       moodRepo,
	}

	server.moodHub = notifications.NewHub()
	server.notifier = notifications.NewNotifier(redisClient, server.moodHub)
	if err := server.notifier.StartSubscriber(shutdownCtx); err != nil {
		return nil, fmt.Errorf("mood subscriber failed: %w", err)
	}

	server.postService = service.NewPostService(postRepo)
	server.userService = service.NewUserService(userRepo, postRepo, cfg.JWTSecret)
	server.moodService = service.NewMoodService(moodRepo, cfg.AuthorizedEmail, server.notifier)
	server.uploadService = service.NewUploadService(imagehost.NewClient(cfg))

	return server, nil
}

// Shutdown stops background workers.
func (s *Server) Shutdown() {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Messiahverse Backend Metrics Dashboard",
	}))

	// Auth routes. Sign-in is only callable by the OAuth gateway.
	auth := api.Group("/auth")
	auth.Post("/signin", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "signin"), s.SignIn)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Post routes: reads are public, writes require auth.
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.AuthRequired(), s.UpdatePost)

	// Mood routes: the status is public; writes are gated to the single
	// authorized editor inside the service.
	mood := api.Group("/mood")
	mood.Get("/", s.GetMood)
	mood.Post("/", s.AuthRequired(), s.UpdateMood)
	mood.Get("/auth", s.OptionalAuth(), s.MoodAuth)
	mood.Get("/history", s.MoodHistory)

	// User routes
	user := api.Group("/user")
	user.Get("/profile", s.AuthRequired(), s.GetMyProfile)
	user.Post("/profile", s.AuthRequired(), s.UpdateMyProfile)
	user.Post("/delete/confirm", s.AuthRequired(), s.ConfirmDeletion)
	user.Delete("/delete", s.AuthRequired(), s.DeleteAccount)
	user.Get("/:id", s.OptionalAuth(), s.GetUserProfile)

	// Image upload
	api.Post("/upload", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, 15*time.Minute, "upload"), s.Upload)

	// Live mood updates
	api.Get("/ws/mood", s.WebSocketMoodHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The app degrades without Redis (no cache, no live updates) but
		// still serves requests.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  overallStatus,
		"version": "1.0.0",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns middleware that resolves the session token into an
// identity, rejecting the request when the token is missing or revoked.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := s.identityFromRequest(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		storeIdentity(c, identity)
		return c.Next()
	}
}

// OptionalAuth resolves the identity when a token is present but lets
// anonymous requests through.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		identity, err := s.identityFromRequest(c)
		if err != nil {
			// A bad token on an optional route is still rejected; silently
			// downgrading to anonymous hides client bugs.
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		storeIdentity(c, identity)
		return c.Next()
	}
}

func storeIdentity(c *fiber.Ctx, identity models.Identity) {
	c.Locals("identity", identity)
	c.Locals("userID", identity.UserID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, identity.UserID)
	c.SetUserContext(ctx)
}

// identityFromRequest parses and validates the Bearer token and returns the
// caller's identity.
func (s *Server) identityFromRequest(c *fiber.Ctx) (models.Identity, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return models.Identity{}, models.NewUnauthenticatedError("Authorization required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid authorization header format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid token claims")
	}
	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != "messiahverse-api" {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid token issuer")
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != "messiahverse-client" {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid token audience")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid subject claim")
	}
	uidClaim, ok := claims["uid"].(float64)
	if !ok || uidClaim <= 0 {
		return models.Identity{}, models.NewUnauthenticatedError("Invalid uid claim")
	}
	email, _ := claims["email"].(string)

	if jti, ok := claims["jti"].(string); ok && jti != "" {
		revoked, err := cache.IsTokenBlacklisted(c.Context(), jti)
		if err != nil {
			middleware.Logger.Warn("token blacklist check failed", "error", err)
		}
		if revoked {
			return models.Identity{}, models.NewUnauthenticatedError("Token has been revoked")
		}
	}

	return models.Identity{
		UserID:   uint(uidClaim),
		PublicID: sub,
		Email:    email,
	}, nil
}
