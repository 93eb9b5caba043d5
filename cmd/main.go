package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lending-ledger/internal/auth"
	"lending-ledger/internal/config"
	"lending-ledger/internal/custody"
	"lending-ledger/internal/database"
	"lending-ledger/internal/handlers"
	"lending-ledger/internal/jobs"
	"lending-ledger/internal/repository"
	"lending-ledger/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Custody bridge (only when a vault is configured)
	var verifier services.DepositVerifier
	if cfg.Solana.VaultAddress != "" {
		verifier = custody.NewClient(cfg.Solana.Network, cfg.Solana.VaultAddress)
	}

	// Initialize repository and services
	repo := repository.NewRepository(database.GetDB())
	authService := services.NewAuthService(database.GetDB())
	paramsService := services.NewParamsService(database.GetDB(), cfg.App.AdminWallet, cfg.Protocol)
	oracleService := services.NewOracleService(database.GetDB(), cfg.App.AdminWallet)
	loanService := services.NewLoanService(database.GetDB(), repo, verifier, cfg.Protocol.InterestRate)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	loanHandler := handlers.NewLoanHandler(loanService)
	adminHandler := handlers.NewAdminHandler(paramsService, oracleService, cfg.App.AdminWallet)

	// Background jobs: the external logical clock and the liquidation sweep
	clockFollower := jobs.NewClockFollower(paramsService, cfg.App.AdminWallet,
		time.Duration(cfg.Protocol.BlockIntervalSeconds)*time.Second)
	go clockFollower.Start()

	sweeper := jobs.NewLiquidationSweeper(loanService, repo,
		time.Duration(cfg.Protocol.SweepIntervalSeconds)*time.Second)
	go sweeper.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public read-only projections
	router.GET("/api/positions/:id", loanHandler.GetPosition)
	router.GET("/api/stats", loanHandler.GetStats)
	router.GET("/api/prices/:asset", adminHandler.GetPrice)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/positions", loanHandler.GetUserPositions)

		api.POST("/collateral/deposit", loanHandler.DepositCollateral)
		api.POST("/collateral/withdraw", loanHandler.WithdrawCollateral)

		api.POST("/loans", loanHandler.RequestLoan)
		api.POST("/loans/:id/repay", loanHandler.Repay)

		// Anyone may trigger a health check on any position
		api.POST("/liquidations/:id/check", loanHandler.CheckLiquidation)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	{
		admin.POST("/initialize", adminHandler.Initialize)
		admin.PUT("/params/minimum-ratio", adminHandler.SetMinimumRatio)
		admin.PUT("/params/liquidation-threshold", adminHandler.SetLiquidationThreshold)
		admin.PUT("/params/fee-rate", adminHandler.SetFeeRate)
		admin.POST("/oracle/price", adminHandler.SetPrice)
		admin.POST("/clock/advance", adminHandler.AdvanceClock)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	clockFollower.Stop()
	sweeper.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
