package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/config"
	"github.com/md-rashed-zaman/meetbook/libs/db"
	"github.com/md-rashed-zaman/meetbook/libs/httpx"
	"github.com/md-rashed-zaman/meetbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/meetbook/libs/otel"
	"github.com/md-rashed-zaman/meetbook/libs/runtime"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/busy"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/consumer"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/engine"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/inbox"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/projection"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/storage"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotEnv()

	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.OptionsFromEnv())
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		applied, err := migrations.Up(ctx, pool)
		if err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "files", applied)
		}
	}

	meetingTypes := storage.NewMeetingTypeRepository(pool)
	rulesRepo := storage.NewRulesRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	connections := storage.NewCalendarConnectionRepository(pool)

	calendarRouter := newCalendarRouter(logger, connections)
	aggregator := busy.NewAggregator(calendarRouter, bookingRepo, logger)
	availabilityEngine := engine.New(meetingTypes, rulesRepo, aggregator, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if strings.TrimSpace(brokers) != "" {
		startProjection(ctx, logger, inbox.NewRepository(pool), projection.NewHandler(bookingRepo, logger), brokers)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; booking projection disabled")
	}

	limiter := newRateLimiter(logger)
	defer limiter.Close()
	if limiter.Ready != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: limiter.Ready})
	}

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityEngine, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/v1/public/availability", limiter.Middleware(http.HandlerFunc(availabilityHandler.Slots)))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 30*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, readyChecks); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func newCalendarRouter(logger *slog.Logger, connections *storage.CalendarConnectionRepository) *calendar.Router {
	timeout := config.Duration("CALENDAR_TIMEOUT", 10*time.Second)
	breakerCfg := calendar.BreakerConfig{
		Failures: uint32(max(config.Int("CALENDAR_BREAKER_FAILURES", 5), 1)),
		Cooldown: config.Duration("CALENDAR_BREAKER_COOLDOWN", 30*time.Second),
	}

	google := calendar.NewGoogleReader(calendar.GoogleConfig{
		ClientID:     config.String("GOOGLE_OAUTH_CLIENT_ID", ""),
		ClientSecret: config.String("GOOGLE_OAUTH_CLIENT_SECRET", ""),
		TokenURL:     config.String("GOOGLE_OAUTH_TOKEN_URL", calendar.DefaultGoogleTokenURL),
		BaseURL:      config.String("GOOGLE_CALENDAR_BASE_URL", calendar.DefaultGoogleBaseURL),
		Timeout:      timeout,
	}, connections, logger)
	caldavReader := calendar.NewCalDAVReader(timeout, logger)

	router := calendar.NewRouter(connections, timeout, logger)
	router.Register(model.ProviderGoogle, calendar.NewBreakerReader(model.ProviderGoogle, google, breakerCfg, logger))
	router.Register(model.ProviderCalDAV, calendar.NewBreakerReader(model.ProviderCalDAV, caldavReader, breakerCfg, logger))
	return router
}

func startProjection(ctx context.Context, logger *slog.Logger, inboxRepo *inbox.Repository, handler *projection.Handler, brokers string) {
	groupID := config.String("KAFKA_GROUP_ID", "availability-service")
	topics := []struct {
		topic   string
		handler consumer.Handler
	}{
		{topic: config.String("KAFKA_TOPIC_BOOKING_CONFIRMED", "booking.confirmed.v1"), handler: handler.Confirmed},
		{topic: config.String("KAFKA_TOPIC_BOOKING_CANCELLED", "booking.cancelled.v1"), handler: handler.Cancelled},
	}
	for _, t := range topics {
		if strings.TrimSpace(t.topic) == "" {
			continue
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   t.topic,
		}, t.handler)
		logger.Info("booking projection consumer starting", "topic", t.topic, "group_id", groupID)
		go c.Run(ctx)
	}
}
