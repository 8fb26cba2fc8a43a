package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/blsnider/invoice-parser/dedup"
	"github.com/blsnider/invoice-parser/extraction"
	"github.com/blsnider/invoice-parser/handlers"
	"github.com/blsnider/invoice-parser/service"
	"github.com/blsnider/invoice-parser/storage"
)

const (
	serviceName    = "document-parser"
	serviceVersion = "1.0.0"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	// Try current directory first, then project root
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	ctx := context.Background()

	// Initialize storage
	fileStorage, err := storage.NewStorageFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	// Initialize duplicate index
	index, err := dedup.NewIndexFromEnv(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize duplicate index: %v", err)
	}
	log.Println("Duplicate index initialized")

	// Initialize extraction client
	extractor, err := extraction.NewGeminiExtractorFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}
	log.Println("Gemini extraction client initialized")

	// Initialize services
	parseService := service.NewParseService(
		service.WithStorage(fileStorage),
		service.WithExtractor(extractor),
		service.WithIndex(index),
	)

	recordService := service.NewRecordService(
		service.RecordWithStorage(fileStorage),
		service.RecordWithIndex(index),
	)

	// Initialize handlers
	parseHandler := handlers.NewParseHandler(parseService)
	recordHandler := handlers.NewRecordHandler(recordService, parseService)

	// Setup Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
			"version": serviceVersion,
		})
	})

	// Service index
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": serviceVersion,
			"endpoints": gin.H{
				"health":      "/health",
				"parse":       "/api/v1/parse",
				"parse_batch": "/api/v1/parse-batch",
				"records":     "/api/v1/records",
			},
		})
	})

	// API routes
	api := r.Group("/api/v1")
	{
		// Parse endpoints
		api.POST("/parse", parseHandler.ParseDocument)
		api.POST("/parse-batch", parseHandler.ParseBatch)

		// Record endpoints
		api.GET("/records", recordHandler.ListRecords)
		api.GET("/records/:id", recordHandler.GetRecord)
		api.GET("/records/:id/preview", recordHandler.GetPreview)
		api.DELETE("/records/:id", recordHandler.DeleteRecord)
		api.POST("/records/:id/reprocess", recordHandler.ReprocessRecord)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
