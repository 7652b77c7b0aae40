package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"keepit/internal/api"
	"keepit/internal/auth"
	"keepit/internal/config"
	"keepit/internal/logger"
	"keepit/internal/mcp"
	"keepit/internal/notes"
	"keepit/internal/notify"
	"keepit/internal/quota"
	"keepit/internal/sharing"
	"keepit/internal/store/sqlstore"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var version = strconv.FormatInt(time.Now().Unix(), 10)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		l := logger.New("info", false)
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	store, err := sqlstore.New(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()
	store.SetLogger(log)

	instance, err := quota.Load(cfg.InstancePlan, cfg.InstanceConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load instance config")
	}
	gate := quota.NewGate(instance, store)
	log.Info().Str("plan", instance.Plan).Str("instance", instance.InstanceID).Msg("instance config loaded")

	limiter, memLimiter := newLimiter(cfg, instance.Limits, log)

	notifiers := notify.Multi{notify.NewWebhookNotifier(store, notify.WebhookConfig{
		Timeout:     cfg.WebhookTimeout,
		MinInterval: cfg.WebhookMinInterval,
	}, log)}
	var kafka *notify.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 {
		kafka = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, kafka)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing note events to kafka")
	}
	events := notify.NewAsync(notifiers, cfg.WebhookTimeout, log)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenExpiry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}
	authSvc := auth.NewService(store, tokens, log)
	sharingSvc := sharing.NewService(store, log)
	notesSvc := notes.NewService(store, sharingSvc, events, log)

	handler := api.NewRouter(api.Deps{
		Auth:     authSvc,
		Notes:    notesSvc,
		Sharing:  sharingSvc,
		Webhooks: notify.NewRegistry(store, cfg.WebhookAllowPrivate),
		Gate:     gate,
		Limiter:  limiter,
		MCP:      mcp.NewMCPServer(notesSvc, sharingSvc).Handler(version),
		Log:      log,
		Version:  version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweep(ctx, cfg.ExpirySweepInterval, sharingSvc, memLimiter, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", version).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	events.Wait()
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			log.Warn().Err(err).Msg("closing kafka writer")
		}
	}
}

// newLimiter picks the shared redis limiter when REDIS_ADDR is set and an
// in-process one otherwise. The second return is non-nil only for the
// in-process limiter, which needs periodic sweeping.
func newLimiter(cfg *config.Config, limits quota.Limits, log zerolog.Logger) (quota.Limiter, *quota.MemoryLimiter) {
	if limits.RateLimitRequests == quota.Unlimited {
		return nil, nil
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		log.Info().Str("addr", cfg.RedisAddr).Msg("rate limiting through redis")
		return quota.NewRedisLimiter(client, limits.RateLimitRequests, limits.RateLimitWindow), nil
	}
	mem := quota.NewMemoryLimiter(limits.RateLimitRequests, limits.RateLimitWindow)
	return mem, mem
}

func sweep(ctx context.Context, every time.Duration, sh *sharing.Service, mem *quota.MemoryLimiter, log zerolog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sh.ExpirePendingInvitations(ctx)
			if err != nil {
				log.Error().Err(err).Msg("expiring invitations failed")
			} else if n > 0 {
				log.Info().Int("expired", n).Msg("expired pending invitations")
			}
			if mem != nil {
				mem.Sweep()
			}
		}
	}
}
