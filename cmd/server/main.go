// Command server runs the donation platform API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doefacil/doefacil-api/internal/alerts"
	"github.com/doefacil/doefacil-api/internal/api/donationapi"
	"github.com/doefacil/doefacil-api/internal/api/gamification"
	"github.com/doefacil/doefacil-api/internal/cache"
	"github.com/doefacil/doefacil-api/internal/config"
	"github.com/doefacil/doefacil-api/internal/payments"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/internal/service/achievements"
	"github.com/doefacil/doefacil-api/internal/service/campaigns"
	"github.com/doefacil/doefacil-api/internal/service/donations"
	"github.com/doefacil/doefacil-api/internal/service/leaderboard"
	"github.com/doefacil/doefacil-api/internal/service/points"
	"github.com/doefacil/doefacil-api/internal/service/scheduler"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.Get()

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if err := db.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	appCache := newCache(cfg, log)
	defer func() {
		if err := appCache.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close cache")
		}
	}()

	userRepo := repository.NewUserRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	donationRepo := repository.NewDonationRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)

	alertClient := alerts.NewClient(&cfg.Alerts, log)
	provider := payments.NewStripeProvider(&cfg.Stripe, log)

	pointsSvc := points.NewService(pointsRepo, log)
	achievementsSvc := achievements.NewService(achievementRepo, pointsRepo, userRepo, log)
	campaignsSvc := campaigns.NewService(campaignRepo, appCache, log)
	leaderboardSvc := leaderboard.NewService(pointsRepo, userRepo, achievementRepo, appCache, log)
	donationsSvc := donations.NewService(
		donationRepo,
		campaignRepo,
		pointsSvc,
		achievementsSvc,
		campaignsSvc,
		provider,
		alertClient,
		cfg.Stripe.GetCurrency(),
		log,
	)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := achievementsSvc.Seed(seedCtx, cfg.Achievements); err != nil {
		seedCancel()
		log.Fatal().Err(err).Msg("Failed to seed achievement catalog")
	}
	seedCancel()

	schedulerSvc := scheduler.NewService(cfg, campaignRepo, donationRepo, pointsSvc, achievementsSvc, appCache, alertClient, log)
	if err := schedulerSvc.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer schedulerSvc.Stop()

	router := setupRouter(cfg, db, appCache, donationsSvc, campaignsSvc, pointsSvc, achievementsSvc, leaderboardSvc, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
}

// newCache connects to Redis when enabled and degrades to a no-op cache
// otherwise. The service works without Redis, just without cached views and
// job locks.
func newCache(cfg *config.Config, log *logger.Logger) cache.Cache {
	if !cfg.Database.Redis.Enabled {
		log.Info().Msg("Redis is disabled, using no-op cache")
		return cache.NewNoop()
	}

	redisCache, err := cache.NewRedisCache(&cfg.Database.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using no-op cache")
		return cache.NewNoop()
	}
	return redisCache
}

func setupRouter(
	cfg *config.Config,
	db *repository.DB,
	appCache cache.Cache,
	donationsSvc *donations.Service,
	campaignsSvc *campaigns.Service,
	pointsSvc *points.Service,
	achievementsSvc *achievements.Service,
	leaderboardSvc *leaderboard.Service,
	log *logger.Logger,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
			return
		}
		status := gin.H{"status": "healthy"}
		if err := appCache.Health(c.Request.Context()); err != nil {
			status["cache"] = "unavailable"
		}
		c.JSON(http.StatusOK, status)
	})

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	donationHandler := donationapi.NewHandler(donationsSvc, log)
	gamificationHandler := gamification.NewHandler(campaignsSvc, pointsSvc, achievementsSvc, leaderboardSvc, log)

	api := router.Group("/api")
	api.POST("/create-payment-intent", donationHandler.CreatePaymentIntent)
	api.POST("/register-donation", donationHandler.RegisterDonation)
	api.POST("/verify-payment", donationHandler.VerifyPayment)
	api.POST("/webhook", donationHandler.Webhook)

	v1 := router.Group("/api/v1")
	v1.GET("/campaigns", gamificationHandler.ListCampaigns)
	v1.POST("/campaigns", gamificationHandler.CreateCampaign)
	v1.GET("/campaigns/:id", gamificationHandler.GetCampaign)
	v1.POST("/campaigns/:id/cancel", gamificationHandler.CancelCampaign)
	v1.GET("/users/:id/level", gamificationHandler.GetUserLevel)
	v1.GET("/users/:id/points", gamificationHandler.GetUserPoints)
	v1.GET("/users/:id/achievements", gamificationHandler.GetUserAchievements)
	v1.GET("/leaderboard", gamificationHandler.GetLeaderboard)

	return router
}
