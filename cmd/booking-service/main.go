package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking_api"
	"ms-booking/internal/checkin"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/inventory"
	kafkawrap "ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/payments"
	"ms-booking/internal/reservation"
	"ms-booking/internal/seatlock"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	migrateOpts := migrations.DefaultOptions()
	migrateOpts.SeedData = os.Getenv("SEED_DATA") == "true"
	runner := migrations.NewRunner(bunDB, migrateOpts)
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	var producer *kafkawrap.Producer
	if cfg.Kafka.Enabled {
		producer = kafkawrap.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		requiredTopics := []string{
			cfg.Kafka.Topics.BookingConfirmed,
			cfg.Kafka.Topics.BookingExpired,
			cfg.Kafka.Topics.BookingCancelled,
			cfg.Kafka.Topics.PaymentEvents,
		}
		if err := kafkawrap.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, booking events will not be published")
	}

	inventoryDB := &inventory.DB{Bun: bunDB}
	bookingStore := &reservation.Store{Bun: bunDB}
	lockManager := seatlock.NewManager(redisClient, cfg.Booking.SeatLockTTL, log)
	qrGen := checkin.NewQRGenerator(os.Getenv("QR_SECRET_KEY"))

	var publisher reservation.Publisher
	if producer != nil {
		publisher = producer
	}

	reservations := reservation.NewService(
		bookingStore,
		inventoryDB,
		lockManager,
		publisher,
		qrGen,
		cfg.Booking.HoldWindow,
		log,
	)

	paymentStore := &payments.Store{Bun: bunDB}
	paymentWorker := payments.NewWorker(paymentStore, reservations, log)

	// Providers that deliver through the broker instead of HTTP feed the
	// same reconciliation worker.
	var paymentConsumer *kafkawrap.Consumer
	if cfg.Kafka.Enabled {
		paymentConsumer = kafkawrap.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentEvents, cfg.Kafka.GroupID)
		go paymentConsumer.Start(ctx, paymentWorker.Handle)
		log.Info("KAFKA", fmt.Sprintf("Payment event consumer started on %s", cfg.Kafka.Topics.PaymentEvents))
	}

	checkinService := checkin.NewService(&checkin.DB{Bun: bunDB}, qrGen, log)

	handler := &booking_api.Handler{
		Reservations: reservations,
		Inventory:    inventoryDB,
		Locks:        lockManager,
		Logger:       log,
	}
	webhookHandler := &booking_api.WebhookHandler{
		Worker: paymentWorker,
		Logger: log,
	}
	paymentHandler := &booking_api.PaymentHandler{
		Payments:     paymentStore,
		Reservations: reservations,
		Logger:       log,
	}
	checkinHandler := &booking_api.CheckinHandler{
		Checkins: checkinService,
		Logger:   log,
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := bunDB.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The provider authenticates with its own signature scheme, not a user
	// token, so the webhook stays outside the OIDC group.
	r.Post("/api/webhooks/payment", webhookHandler.HandlePaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())

		r.Get("/api/schedules/{scheduleId}/availability", handler.GetScheduleAvailability)

		r.Route("/api/bookings", func(r chi.Router) {
			r.Post("/", handler.CreateBooking)
			r.Get("/", handler.ListMyBookings)
			r.Get("/{bookingId}", handler.GetBooking)
			r.Delete("/{bookingId}", handler.CancelBooking)
			r.Post("/{bookingId}/payments", paymentHandler.RegisterPayment)
			r.Get("/{bookingId}/payments", paymentHandler.GetPaymentStatus)
		})
		log.Info("ROUTER", "Booking routes registered under /api/bookings")

		r.Route("/api/seat-locks", func(r chi.Router) {
			r.Post("/", handler.AcquireSeatLocks)
			r.Put("/", handler.RenewSeatLock)
			r.Delete("/", handler.ReleaseSeatLocks)
		})
		log.Info("ROUTER", "Seat lock routes registered under /api/seat-locks")

		r.Route("/api/checkin", func(r chi.Router) {
			r.Post("/", checkinHandler.CheckIn)
			r.Get("/search", checkinHandler.Search)
		})
		log.Info("ROUTER", "Check-in routes registered under /api/checkin")
	})

	sweeper := reservation.NewSweeper(reservations, cfg.Booking.SweepInterval, log)
	go sweeper.Start(ctx)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Booking Service shutdown complete")
	}

	if paymentConsumer != nil {
		_ = paymentConsumer.Close()
	}
	if producer != nil {
		_ = producer.Close()
	}
}
