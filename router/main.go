package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/agent-chat-api/config"
	"github.com/sahilchouksey/agent-chat-api/database"
	"github.com/sahilchouksey/agent-chat-api/handlers"
	session_handlers "github.com/sahilchouksey/agent-chat-api/handlers/session"
	"github.com/sahilchouksey/agent-chat-api/utils"
	"github.com/sahilchouksey/agent-chat-api/utils/auth"
	"github.com/sahilchouksey/agent-chat-api/utils/cache"
	"github.com/sahilchouksey/agent-chat-api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load environment:", err)
	}

	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "agent-chat-api"
	}

	// Initialize JWT manager with config
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: getEnv.JWT_SECRET,
		Expiry: 24 * time.Hour,
		Issuer: jwtIssuer,
	})

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis cache for session rankings. Optional: the API degrades to
	// uncached responses when Redis is unreachable.
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Rank caching will be disabled.", err)
		redisCache = nil
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	sessionHandler := session_handlers.NewSessionHandler(db, redisCache)

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// API v1 group
	api := app.Group("/api/v1")

	// Session routes (all protected - every operation is scoped to the
	// authenticated user)
	sessions := api.Group("/sessions", authMiddleware.Required())

	sessions.Get("/", sessionHandler.List)          // List sessions (inbox excluded)
	sessions.Post("/", sessionHandler.Create)       // Create session (+agent +link)
	sessions.Delete("/", sessionHandler.DeleteAll)  // Delete all sessions
	sessions.Get("/grouped", sessionHandler.Grouped) // Sessions with session groups
	sessions.Get("/search", sessionHandler.Search)   // Keyword search over agents
	sessions.Get("/rank", sessionHandler.Rank)       // Rank by topic count (cached)
	sessions.Get("/count", sessionHandler.Count)     // Count with optional date range

	sessions.Post("/batch", sessionHandler.BatchCreate)        // Bulk insert
	sessions.Post("/batch-delete", sessionHandler.BatchDelete) // Bulk delete

	// Default provisioning (idempotent)
	sessions.Post("/inbox", sessionHandler.CreateInbox)
	sessions.Post("/default-assistants", sessionHandler.CreateDefaultAssistants)

	sessions.Get("/:id", sessionHandler.Get)                    // Fetch by id or slug
	sessions.Patch("/:id", sessionHandler.Update)               // Update session fields
	sessions.Patch("/:id/config", sessionHandler.UpdateConfig)  // Update linked agent config
	sessions.Post("/:id/duplicate", sessionHandler.Duplicate)   // Copy session + agent
	sessions.Delete("/:id", sessionHandler.Delete)              // Delete with orphan cleanup
}
