package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-reservas-api/internal/application/engine"
	"github.com/go-reservas-api/internal/application/preference"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/application/weather"
	"github.com/go-reservas-api/internal/config"
	"github.com/go-reservas-api/internal/infrastructure/dynamo"
	"github.com/go-reservas-api/internal/infrastructure/expo"
	jwtinfra "github.com/go-reservas-api/internal/infrastructure/jwt"
	"github.com/go-reservas-api/internal/infrastructure/openweather"
	"github.com/go-reservas-api/internal/infrastructure/sns"
	transporthttp "github.com/go-reservas-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("invalid FACILITY_TIMEZONE", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	reservationRepo := dynamo.NewReservationRepo(dynamoClient, cfg.DynamoTables.Reservations)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	complexRepo := dynamo.NewComplexRepo(dynamoClient, cfg.DynamoTables.Complexes)
	deliveryRepo := dynamo.NewDeliveryRepo(dynamoClient, cfg.DynamoTables.Deliveries)

	// JWT provider (optional — the API runs unauthenticated without keys,
	// which is only useful for local development).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Warn("jwt provider not available, auth disabled", "error", err)
	}

	// Ops alerter (optional).
	var alerter sns.OpsAlerter
	if cfg.OpsAlertTopic != "" {
		if a, err := sns.NewAlerter(cfg); err == nil {
			alerter = a
		} else {
			log.Warn("sns alerter not available", "error", err)
		}
	}

	gateway := expo.NewClient(cfg.ExpoAccessToken)
	sender := push.NewService(push.ServiceDeps{
		Gateway:    gateway,
		Users:      userRepo,
		Deliveries: deliveryRepo,
		Limiter:    push.NewRateLimiter(1, time.Minute),
		Logger:     log,
	})
	prefs := preference.NewResolver(userRepo, log)

	checker := weather.NewChecker(weather.CheckerDeps{
		Forecasts:    openweather.NewClient(cfg.WeatherAPIKey),
		Reservations: reservationRepo,
		Complexes:    complexRepo,
		Sender:       sender,
		Prefs:        prefs,
		Location:     loc,
		Logger:       log,
	})

	eng := engine.New(engine.Deps{
		Reservations:    reservationRepo,
		Users:           userRepo,
		Sender:          sender,
		Prefs:           prefs,
		Weather:         checker,
		Tokens:          gateway,
		Alerter:         alerter,
		Logger:          log,
		Enabled:         cfg.NotificationsEnabled,
		Location:        loc,
		ReminderLead:    cfg.ReminderLead,
		ReconcileWindow: cfg.ReconcileWindow,
	})
	if err := eng.Start(context.Background()); err != nil {
		log.Error("engine start failed", "error", err)
		os.Exit(1)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		UserRepo:     userRepo,
		DeliveryRepo: deliveryRepo,
		Prefs:        prefs,
		Sender:       sender,
		Engine:       eng,
		Weather:      checker,
		TestLimiter:  push.NewRateLimiter(3, 5*time.Minute),
		JWTProvider:  jwtProvider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	eng.Stop()
	log.Info("server stopped")
}
