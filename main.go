package main

import (
	"log"
	"net/http"
	"os"

	"tabforum/config"
	"tabforum/handlers"
	"tabforum/middleware"
	"tabforum/repositories"
	"tabforum/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize database
	db := config.InitDB()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	contentRepo := repositories.NewContentRepository(db)
	balanceRepo := repositories.NewBalanceRepository(db)
	prestigeRepo := repositories.NewPrestigeRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo)
	tabcoinService := services.NewTabcoinService(balanceRepo, prestigeRepo)
	contentService := services.NewContentService(db, contentRepo, balanceRepo, userRepo, tabcoinService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	contentHandler := handlers.NewContentHandler(contentService)

	// Setup router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Public content routes (published only)
		contents := v1.Group("/contents")
		{
			contents.GET("", contentHandler.List)
			contents.GET("/:username", contentHandler.ListByUser)
			contents.GET("/:username/:slug", contentHandler.Get)
			contents.GET("/:username/:slug/children", contentHandler.GetChildren)
			contents.GET("/:username/:slug/root", contentHandler.GetRoot)
			contents.GET("/:username/:slug/parent", contentHandler.GetParent)
		}

		// Protected routes
		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/profile", authHandler.GetProfile)
			protected.POST("/contents", contentHandler.Create)
			protected.PATCH("/contents/:id", contentHandler.Update)
		}
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
