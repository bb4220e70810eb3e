package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"busmate/internal/cache"
	"busmate/internal/config"
	"busmate/internal/controllers"
	"busmate/internal/events"
	"busmate/internal/logger"
	"busmate/internal/middleware"
	"busmate/internal/repositories"
	"busmate/internal/repositories/memory"
	"busmate/internal/repositories/postgres"
	"busmate/internal/routes"
	"busmate/internal/services"
	"busmate/internal/support"
)

func main() {
	cfg := config.Load()

	// Initialize structured logging to file
	rotator := logger.Setup(cfg.LogFile, cfg.LogLevel)
	defer rotator.Close()

	gin.SetMode(cfg.GinMode)

	repo, err := openRepository(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("could not open storage")
	}
	defer repo.Close()

	redisClient := config.InitRedis(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}
	routeCache := cache.NewCacheHelper(redisClient, "catalog:")

	wmLogger := events.NewLogrusAdapter(logrus.StandardLogger())
	var external message.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		external, err = events.NewKafkaPublisher(cfg.KafkaBrokers, wmLogger)
		if err != nil {
			logrus.WithError(err).Warn("kafka unavailable, status events stay in-process")
			external = nil
		}
	}
	bus := events.NewBus(wmLogger, external)
	defer bus.Close()

	httpClient := &http.Client{}
	responders := []support.Responder{
		support.NewOllamaResponder(cfg.Responders.OllamaURL, cfg.Responders.OllamaModel, httpClient),
	}
	if cfg.Responders.HuggingFaceKey != "" {
		responders = append(responders, support.NewHuggingFaceResponder(
			cfg.Responders.HuggingFaceURL,
			cfg.Responders.HuggingFaceModel,
			cfg.Responders.HuggingFaceKey,
			httpClient,
		))
	}
	chain := support.NewChain(cfg.Responders.Timeout, responders...)

	catalog := services.NewCatalogService(repo, routeCache)
	directory := services.NewDirectoryService(repo, services.NewValidator(), cfg.UploadDir)
	workflow := services.NewWorkflowService(repo, directory, bus)
	supportDesk := services.NewSupportService(repo, chain)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := controllers.NewPassHub()
	feed, err := bus.Subscribe(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("could not subscribe to status events")
	}
	go hub.Run(ctx, feed)

	auth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.JWTTTL)
	r := routes.SetupRouter(routes.Deps{
		Auth:                  auth,
		Directory:             directory,
		AuthController:        controllers.NewAuthController(directory, auth),
		RouteController:       controllers.NewRouteController(catalog),
		ApplicationController: controllers.NewApplicationController(workflow),
		ProfileController:     controllers.NewProfileController(directory, workflow, catalog),
		SupportController:     controllers.NewSupportController(supportDesk),
		PassHub:               hub,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.ServerAddr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}

func openRepository(cfg *config.Config) (repositories.Repository, error) {
	if cfg.Storage == "memory" {
		logrus.Warn("using in-memory storage, data is lost on restart")
		return memory.NewRepository(), nil
	}

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	return postgres.NewPostgreSQLRepository(db), nil
}
