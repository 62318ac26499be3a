package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bomsabor-web/backend"
	"bomsabor-web/bot"
	"bomsabor-web/config"
	"bomsabor-web/db"
	"bomsabor-web/logger"
	"bomsabor-web/realtime"
	"bomsabor-web/session"
	"bomsabor-web/web"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, cfg, *log); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		return
	}

	if err := run(ctx, cfg, *log); err != nil {
		log.Fatal().Err(err).Msg("exit")
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	pool, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()
	return applyMigrations(ctx, pool, log)
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var pool *pgxpool.Pool
	if cfg.NeedsDB() {
		var err error
		if pool, err = db.Open(ctx, cfg.DB); err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		if cfg.DB.AutoMigrate {
			if err := applyMigrations(ctx, pool, log); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	store, err := sessionStore(ctx, g, cfg, pool, log)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, cfg.HTTP.CookieName, cfg.HTTP.SecureCookie, cfg.Session.TTL, log)

	api := backend.New(cfg.API.BaseURL, cfg.API.Timeout)

	var newRealtime web.RealtimeFactory
	if cfg.Realtime.AppKey != "" {
		newRealtime = func() *realtime.Client { return realtime.New(cfg.Realtime, api, log) }
	} else {
		log.Warn().Msg("REVERB_APP_KEY not set, live updates disabled")
	}

	srv, err := web.NewServer(api, sessions, newRealtime, cfg.HTTP, log)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown waits for handlers; event streams never finish on their own.
	httpServer.RegisterOnShutdown(srv.CloseStreams)

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Token != "" {
		if err := startNotifier(ctx, g, cfg, api, pool, newRealtime, log); err != nil {
			return err
		}
	}

	return g.Wait()
}

func sessionStore(ctx context.Context, g *errgroup.Group, cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (session.Store, error) {
	switch cfg.Session.Store {
	case config.SessionStorePostgres:
		store := session.NewPostgresStore(pool)
		g.Go(func() error {
			t := time.NewTicker(purgeInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					n, err := store.PurgeExpired(ctx)
					if err != nil {
						log.Warn().Err(err).Msg("purge expired sessions")
						continue
					}
					log.Debug().Int64("removed", n).Msg("expired sessions purged")
				}
			}
		})
		return store, nil
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return client.Close()
		})
		return session.NewRedisStore(client), nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func startNotifier(ctx context.Context, g *errgroup.Group, cfg *config.Config, api *backend.Client, pool *pgxpool.Pool, newRealtime web.RealtimeFactory, log zerolog.Logger) error {
	if newRealtime == nil {
		log.Warn().Msg("telegram notifier needs REVERB_APP_KEY, not started")
		return nil
	}
	if cfg.Telegram.AdminChatID == 0 {
		return errors.New("TELEGRAM_ADMIN_CHAT_ID not set")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	pointers := bot.NewPointerStore(pool)
	if err := pointers.EnsureTable(ctx); err != nil {
		return fmt.Errorf("card pointers: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)

	notifier := bot.NewNotifier(botAPI, api, pointers, cfg.Telegram, cfg.HTTP.PublicURL, log)
	log.Info().Str("bot", botAPI.Self.UserName).Msg("telegram notifier started")
	g.Go(func() error {
		defer botAPI.StopReceivingUpdates()
		return notifier.Run(ctx, updates, newRealtime)
	})
	return nil
}
