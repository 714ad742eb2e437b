package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/libs/kafkax"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/booking-service/internal/consumer"
	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
	"github.com/slotbook/slotbook/services/booking-service/internal/handlers"
	"github.com/slotbook/slotbook/services/booking-service/internal/inbox"
	"github.com/slotbook/slotbook/services/booking-service/internal/memstore"
	"github.com/slotbook/slotbook/services/booking-service/internal/outbox"
	"github.com/slotbook/slotbook/services/booking-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	var store engine.Store
	readyChecks := []runtime.ReadyCheck{}

	dbURL := config.String("DATABASE_URL", "")
	if dbURL == "" {
		// In-memory mode for local development without Postgres. The outbox
		// and the user-event consumer need a database and stay off.
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = memstore.New()
	} else {
		if err := db.Migrate(dbURL, storage.Migrations(), "booking_schema_migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		pgStore := storage.New(pool, outboxRepo)
		store = pgStore
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		brokers := config.String("KAFKA_BROKERS", "")
		if brokers != "" {
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

			publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
				Brokers:   brokers,
				PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
				BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
			})
			go publisher.Run(ctx)

			userConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
				Topic:   consumer.TopicUserCreated,
			}, consumer.UserCreatedHandler(logger, pgStore))
			go userConsumer.Run(ctx)
		}
	}

	eng := engine.New(store)

	jwtSecret := config.String("JWT_SECRET", "")
	var jwksClient *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_TTL", 5*time.Minute))
	}
	requireAuth := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireAuth(h, jwtSecret, jwksClient)
	}

	bookingHandler := handlers.NewBookingHandler(eng, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/v1/services", methodSplit(
		requireAuth(bookingHandler.Services),
		http.HandlerFunc(bookingHandler.Services),
	))
	mux.Handle("/api/v1/windows", methodSplit(
		requireAuth(bookingHandler.Windows),
		http.HandlerFunc(bookingHandler.Windows),
	))
	mux.Handle("/api/v1/appointments", requireAuth(bookingHandler.Appointments))
	mux.Handle("/api/v1/appointments/cancel", requireAuth(bookingHandler.Cancel))
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	}
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		limiter := httpx.NewRedisRateLimiter(redis.NewClient(opts),
			config.Int("RATE_LIMIT", 60), time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(config.Int("RATE_LIMIT", 60), time.Minute).Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// methodSplit authenticates writes while leaving reads public on the same
// path.
func methodSplit(write, read http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			read.ServeHTTP(w, r)
			return
		}
		write.ServeHTTP(w, r)
	})
}
