// Package server contains the HTTP handlers and routing for the application's API.
package server

import (
	"context"
	"fmt"
	"time"

	"bhabo/internal/config"
	"bhabo/internal/email"
	"bhabo/internal/middleware"
	"bhabo/internal/repository"
	"bhabo/internal/repository/filedb"
	"bhabo/internal/repository/mongodb"
	"bhabo/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	store          *repository.Store
	redis          *redis.Client
	fs             afero.Fs
	promMiddleware *fiberprometheus.FiberPrometheus
	validate       *validator.Validate
	mongoClient    *mongodb.Client

	authService    *service.AuthService
	profileService *service.ProfileService
	postService    *service.PostService
	chatService    *service.ChatService
	searchService  *service.SearchService
}

// NewServer creates a server instance, connecting the persistence backend
// named by DB_BACKEND.
func NewServer(cfg *config.Config) (*Server, error) {
	fs := afero.NewOsFs()

	var store *repository.Store
	var mongoClient *mongodb.Client
	switch cfg.DBBackend {
	case config.BackendMongo:
		client, err := mongodb.Connect(context.Background(), cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo backend: %w", err)
		}
		mongoClient = client
		store = client.Store()
	case config.BackendFile:
		s, err := filedb.Open(fs, cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("file backend: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown DB_BACKEND %q", cfg.DBBackend)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}

	srv, err := NewServerWithDeps(cfg, store, redisClient, email.NewSender(cfg), fs)
	if err != nil {
		return nil, err
	}
	srv.mongoClient = mongoClient
	return srv, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use this with an in-memory filesystem and a recording mailer.
func NewServerWithDeps(cfg *config.Config, store *repository.Store, redisClient *redis.Client, mailer service.Mailer, fs afero.Fs) (*Server, error) {
	middleware.InitMiddleware(cfg)

	if err := fs.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	srv := &Server{
		config:         cfg,
		store:          store,
		redis:          redisClient,
		fs:             fs,
		promMiddleware: fiberprometheus.New("bhabo-api"),
		validate:       validator.New(),
	}
	srv.authService = service.NewAuthService(store, mailer)
	srv.profileService = service.NewProfileService(store)
	srv.postService = service.NewPostService(store, fs, cfg.UploadDir)
	srv.chatService = service.NewChatService(store)
	srv.searchService = service.NewSearchService(store)
	return srv, nil
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS before middlewares that can short-circuit, so browser clients
	// still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Uploaded media
	app.Static("/uploads", s.config.UploadDir)

	// Auth routes
	auth := app.Group("/auth")
	auth.Post("/signup", middleware.Throttle(s.redis, "signup"), s.Signup)
	auth.Post("/login", middleware.Throttle(s.redis, "login"), s.Login)
	auth.Post("/verify", middleware.Throttle(s.redis, "verify"), s.Verify)
	auth.Post("/forgot-password", middleware.Throttle(s.redis, "forgot_password"), s.ForgotPassword)
	auth.Post("/reset-password", middleware.Throttle(s.redis, "reset_password"), s.ResetPassword)
	auth.Post("/logout", middleware.AuthRequired, s.Logout)

	api := app.Group("/api", middleware.AuthRequired)

	// Profile routes. Specific paths before the generic :username ones.
	profile := api.Group("/profile")
	profile.Get("/me", s.GetMyProfile)
	profile.Post("/update", s.UpdateProfile)
	profile.Post("/update-password", s.UpdatePassword)
	profile.Post("/:username/toggle-follow", s.ToggleFollow)
	profile.Get("/:username", s.GetProfile)

	// Post routes
	post := api.Group("/post")
	post.Post("/create", middleware.Throttle(s.redis, "create_post"), s.CreatePost)
	post.Get("/feed", s.GetFeed)
	post.Post("/:postId/like", s.ToggleLike)
	post.Post("/:postId/comment", middleware.Throttle(s.redis, "create_comment"), s.AddComment)
	post.Get("/:postId/comments", s.GetComments)
	post.Delete("/:postId", s.DeletePost)
	post.Get("/:postId", s.GetPost)

	// Chat routes
	chat := api.Group("/chat")
	chat.Get("/list", s.GetChatList)
	chat.Post("/start-chat", s.StartChat)
	chat.Get("/:chatId/messages", s.GetMessages)
	chat.Post("/:chatId/send", middleware.Throttle(s.redis, "send_chat"), s.SendMessage)
	chat.Post("/:chatId/send-media", middleware.Throttle(s.redis, "send_chat_media"), s.SendMediaMessage)
	chat.Post("/:chatId/mark-read", s.MarkRead)
	chat.Post("/:targetUsername/toggle-block", s.ToggleBlock)
	chat.Post("/:targetUsername/typing", s.SetTyping)
	chat.Get("/:targetUsername/typing-status", s.GetTypingStatus)

	// Search routes
	search := api.Group("/search")
	search.Get("/find-friends", s.FindFriends)
	search.Get("/", middleware.Throttle(s.redis, "search"), s.Search)
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	// A cheap facade round-trip verifies the backend is reachable; a missing
	// user is still a healthy answer.
	if _, err := s.store.Users.GetByHandle(ctx, "healthcheck"); err != nil {
		storeStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  overallStatus,
		"backend": s.config.DBBackend,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown releases server-owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.mongoClient != nil {
		if err := s.mongoClient.Close(ctx); err != nil {
			return err
		}
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
