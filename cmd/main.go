package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"propledger/internal/caching"
	"propledger/internal/handlers"
	"propledger/internal/jobs/background"
	"propledger/internal/middleware"
	"propledger/internal/repositories"
	"propledger/internal/services"
	"propledger/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret: %s", jwtSecret)
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration for the proof artifact store
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin" // Default for development
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin" // Default for development
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	proofSvc, err := services.NewProofService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize proof storage: %v", err)
	}
	if err := proofSvc.EnsureBucketExists(context.Background()); err != nil {
		log.Printf("WARNING: proof bucket check failed: %v", err)
	}

	// Sweep interval for offer expiry
	sweepInterval := 5 * time.Minute
	if s := os.Getenv("EXPIRY_SWEEP_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			sweepInterval = d
		}
	}

	// Repositories
	offerRepo := repositories.NewOfferRepo(pool)
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)

	// Cache and notifications
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)
	notifier := services.NewNotificationService(redisAddr, redisPassword, redisDB)

	// Services
	invoiceSvc := services.NewInvoiceService(pool, invoiceRepo, offerRepo)
	offerSvc := services.NewOfferService(pool, offerRepo, invoiceRepo, invoiceSvc, cacheSvc, notifier)
	paymentSvc := services.NewPaymentService(paymentRepo, offerRepo, cacheSvc)
	verificationSvc := services.NewVerificationService(paymentRepo, invoiceRepo, cacheSvc, notifier)
	progressSvc := services.NewProgressService(paymentRepo, offerRepo, cacheSvc)

	// Handlers
	offerHandlers := handlers.NewOfferHandlers(offerSvc, invoiceSvc, progressSvc)
	paymentHandlers := handlers.NewPaymentHandlers(paymentSvc, verificationSvc, notifier)
	proofHandlers := handlers.NewProofHandlers(proofSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, proofSvc)

	// Background sweeps
	scheduler := background.NewJobScheduler(offerSvc, paymentSvc, invoiceSvc, sweepInterval)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	// JWT middleware configuration
	jwtConfig := echojwt.Config{
		SigningKey: []byte(jwtSecret),
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(401, "Invalid token")
		},
	}

	// API routes
	v1 := e.Group("/v1")
	v1.Use(echojwt.WithConfig(jwtConfig))
	v1.Use(middleware.Principal())

	// Offer routes
	v1.POST("/offers", offerHandlers.SubmitOffer)
	v1.GET("/offers", offerHandlers.ListOffers, middleware.RequireAdmin())
	v1.GET("/offers/:id", offerHandlers.GetOffer)
	v1.PATCH("/offers/:id", offerHandlers.ReviewOffer, middleware.RequireAdmin())
	v1.POST("/offers/:id/withdraw", offerHandlers.WithdrawOffer)
	v1.GET("/offers/:id/progress", offerHandlers.GetProgress)
	v1.GET("/offers/:id/payments", paymentHandlers.ListOfferPayments)
	v1.GET("/invoices/:id", offerHandlers.GetInvoice, middleware.RequireAdmin())

	// Payment ledger routes
	v1.POST("/payments", paymentHandlers.SubmitPayment)
	v1.GET("/payments", paymentHandlers.ListPayments, middleware.RequireAdmin())
	v1.GET("/payments/export", paymentHandlers.ExportPayments, middleware.RequireAdmin())
	v1.GET("/payments/:id", paymentHandlers.GetPayment)
	v1.PATCH("/payments/:id", paymentHandlers.ReviewPayment, middleware.RequireAdmin())
	v1.POST("/payments/:id/cancel", paymentHandlers.CancelPayment)
	v1.GET("/payment-stats", paymentHandlers.GetStats, middleware.RequireAdmin())
	v1.GET("/activity", paymentHandlers.GetActivity, middleware.RequireAdmin())

	// Proof artifact routes
	v1.POST("/proofs", proofHandlers.UploadProof)
	v1.DELETE("/proofs", proofHandlers.DeleteProof)
	v1.GET("/proofs/signed-url", proofHandlers.GetSignedURL)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("propledger server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
