package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"time"

	generativeAI "github.com/FACorreiaa/go-genai-sdk/lib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roamly-app/roamly/internal/app/domain/auth"
	"github.com/roamly-app/roamly/internal/app/domain/generator"
	"github.com/roamly-app/roamly/internal/app/domain/localstore"
	"github.com/roamly-app/roamly/internal/app/domain/location"
	"github.com/roamly-app/roamly/internal/app/domain/remote"
	"github.com/roamly-app/roamly/internal/app/domain/syncengine"
	"github.com/roamly-app/roamly/internal/app/handlers"
	"github.com/roamly-app/roamly/internal/app/models"
	"github.com/roamly-app/roamly/internal/app/observability/metrics"
	"github.com/roamly-app/roamly/internal/pkg/config"
	"github.com/roamly-app/roamly/internal/routes"
	"github.com/roamly-app/roamly/internal/server"
	"github.com/roamly-app/roamly/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	if err := logger.Init(zapcore.InfoLevel, zap.String("service", "roamly")); err != nil {
		return err
	}
	zlog := logger.Log
	defer zlog.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	otelShutdown, err := server.InitObservability("roamly", ":9092", zlog)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			zlog.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	srv, err := server.New(cfg, zlog)
	if err != nil {
		return err
	}
	defer srv.Close()

	// Persistence legs.
	local := localstore.New(cfg.LocalStorePath, zlog)
	remoteStore := remote.NewRepository(srv.GetDBPool(), cfg.Timeouts, zlog)

	// Identity and session lifecycle.
	sessionPath := filepath.Join(filepath.Dir(cfg.LocalStorePath), "roamly-session.json")
	authRepo := auth.NewPostgresRepo(srv.GetDBPool(), zlog)
	identity := auth.NewIdentityService(authRepo, cfg.Auth, sessionPath, zlog)
	controller := auth.NewController(identity, cfg.Timeouts.SignOut, cfg.Timeouts.HydrationWatchdog, zlog)

	engine := syncengine.NewService(local, remoteStore, controller, zlog)

	// Re-synchronize user data when an account becomes active. Sign-out
	// cleanup is handled by the sign-out handler so that hydration landing
	// logged out never wipes the cache.
	controller.SetOnChange(func(session *models.Session) {
		if session == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.RemoteRead)
			defer cancel()
			engine.GetUser(ctx)
			engine.GetSavedItineraries(ctx)
		}()
	})

	hydrateStart := time.Now()
	controller.Start(context.Background())
	metrics.Get().HydrationDuration.Record(context.Background(), time.Since(hydrateStart).Seconds())

	// AI generation is optional; without an API key the endpoint reports
	// itself as not configured.
	var aiClient generator.AIClient
	if cfg.GeminiAPIKey != "" {
		client, err := generativeAI.NewLLMChatClient(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			zlog.Warn("AI client init failed, generation disabled", zap.Error(err))
		} else {
			aiClient = client
		}
	} else {
		zlog.Warn("GEMINI_API_KEY not set, generation disabled")
	}
	gen := generator.NewService(aiClient, zlog)

	geocoder := location.NewNominatimGeocoder(cfg.GeocoderURL, zlog)

	h := routes.Handlers{
		Auth:      handlers.NewAuthHandlers(identity, controller, engine, zlog),
		Itinerary: handlers.NewItineraryHandlers(engine, gen, controller, zlog),
		Profile:   handlers.NewProfileHandlers(engine, controller, geocoder, zlog),
	}

	router := server.SetupRouter(h, cfg.Auth.JWTSecret, zlog)
	srv.SetRouter(router)

	server.StartPprofServer(":6060", zlog)

	httpServer := srv.HTTPServer()
	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, zlog, done)

	zlog.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	controller.Stop()
	return nil
}
