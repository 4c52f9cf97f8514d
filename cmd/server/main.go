package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pillsreminder/internal/bot"
	"pillsreminder/internal/config"
	"pillsreminder/internal/database"
	"pillsreminder/internal/events"
	"pillsreminder/internal/handlers"
	"pillsreminder/internal/services"
	"pillsreminder/internal/store"
	"pillsreminder/internal/telegram"
	"pillsreminder/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const changeBuffer = 256

func main() {
	log := utils.NewLogger(os.Getenv("PILLS_LOG_LEVEL"), os.Getenv("PILLS_LOG_FORMAT"))

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// -------- Storage ---------------------
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Stack().Err(err).Str("driver", cfg.StoreDriver).Msg("Storage unavailable")
	}
	st := store.New(backend, log)

	// -------- Services --------------------
	clock := time.Now
	bus := events.NewBus(changeBuffer)
	tg := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, log)
	tracker := services.NewTracker(cfg.RenotifyInterval, log)

	var mailer services.CourseMailer
	if cfg.EmailEnabled() {
		mailer = services.NewEmailService(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, cfg.CaregiverEmail)
	}

	worker := services.NewReminderWorker(st, tracker, tg, cfg.ChatID, loc, clock, log)
	ack := services.NewAcknowledger(st, tracker, tg, bus, clock, loc, cfg.AckDedupe, log)
	dialog := services.NewDialog(st, bus, clock, log)
	mgmt := services.NewManagement(st, tracker, bus, mailer, clock, loc, log)
	agg := services.NewAggregator(st, clock, loc)
	b := bot.New(tg, dialog, ack, mgmt, cfg.ChatID, clock, loc, log)

	if err := tg.SetMyCommands(ctx, bot.Commands()); err != nil {
		log.Warn().Err(err).Msg("Could not register bot commands")
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Stack().Err(err).Str("task", name).Msg("Background task failed")
			}
		}()
	}

	run("scheduler", worker.Run)

	// -------- Change feed -----------------
	var sink events.Sink
	if cfg.AMQPURL != "" {
		pub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error().Err(err).Msg("AMQP unavailable, changes will only be logged")
		} else {
			defer pub.Close()
			sink = pub
		}
	}
	run("relay", events.NewRelay(bus, agg, sink, log).Run)

	// -------- Telegram updates ------------
	switch cfg.UpdateMode {
	case config.ModePoll:
		if err := tg.DeleteWebhook(ctx); err != nil {
			log.Warn().Err(err).Msg("Could not delete webhook before polling")
		}
		run("poller", telegram.NewPoller(tg, b, log).Run)
	case config.ModeWebhook:
		if cfg.WebhookURL != "" {
			if err := tg.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
				log.Fatal().Err(err).Msg("Failed to register webhook")
			}
		}
	}

	// -------- Router & Server -------------
	routerCfg := handlers.RouterConfig{JWTSecret: cfg.JWTSecret}
	if cfg.UpdateMode == config.ModeWebhook {
		routerCfg.WebhookSecret = cfg.WebhookSecret
	}
	router := handlers.New(agg, mgmt, ack, tracker, b, log).NewRouter(routerCfg)
	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	wg.Wait()
	tracker.Wait()
	st.Close()
	if err := closeBackend(); err != nil {
		log.Error().Err(err).Msg("Closing storage")
	}
	log.Info().Msg("Server exited")
}

// openBackend connects the configured document backend and returns its closer
func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Backend, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.InitDB(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return store.NewGormBackend(db), func() error { return database.Close(db) }, nil
	case config.DriverRedis:
		rb := store.NewRedisBackend(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rb.Ping(pingCtx); err != nil {
			_ = rb.Close()
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Redis connected")
		return rb, rb.Close, nil
	default:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return store.NewMemoryBackend(), func() error { return nil }, nil
	}
}
