package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aglucazgeorgeann-ship-it/realtime-chat-app/internal/chat"
	"github.com/aglucazgeorgeann-ship-it/realtime-chat-app/internal/config"
	"github.com/aglucazgeorgeann-ship-it/realtime-chat-app/internal/db"
	myMiddleware "github.com/aglucazgeorgeann-ship-it/realtime-chat-app/internal/middleware"
	"github.com/aglucazgeorgeann-ship-it/realtime-chat-app/internal/ratelimit"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Config & Flags
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("❌ invalid configuration", "error", err)
		os.Exit(1)
	}
	addr := flag.String("addr", cfg.Addr, "http service address")
	flag.Parse()
	cfg.Addr = *addr

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 2. Rate limiter: Redis when configured, otherwise in process
	limitCfg := ratelimit.Config{Burst: cfg.RateLimit.Burst, Interval: cfg.RateLimit.Interval}
	var limiter chat.FrameLimiter = ratelimit.NewLocal(limitCfg)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("❌ failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		limiter = ratelimit.NewRedis(redisClient, limitCfg, "chat:ratelimit:")
		logger.Info("✅ connected to Redis", "addr", cfg.RedisAddr)
	}

	// 3. Transcript archive (optional)
	hubOpts := []chat.Option{chat.WithLogger(logger)}
	var (
		database *db.Database
		archive  *chat.Archive
	)
	if cfg.DatabaseDSN != "" {
		database, err = db.NewDatabase(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Error("❌ failed to connect to DB", "error", err)
			os.Exit(1)
		}
		if err := database.AutoMigrate(ctx); err != nil {
			logger.Error("❌ migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("✅ connected to PostgreSQL, transcript archive enabled")

		archive = chat.NewArchive(chat.NewRepository(database.Conn), 1024, logger)
		go archive.Run()
		hubOpts = append(hubOpts, chat.WithArchive(archive))
	}

	// 4. Chat hub
	hub := chat.NewHub(hubOpts...)
	go hub.Run()

	origins := myMiddleware.NewOrigins(cfg.AllowedOrigins, logger)
	chatHandler := chat.NewHandler(hub, chat.HandlerConfig{
		CheckOrigin:    origins.CheckOrigin,
		Limiter:        limiter,
		MaxMessageSize: cfg.MaxMessageSize,
		Logger:         logger,
	})

	// 5. Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(origins.CORS())

	chatHandler.Routes(r)
	if cfg.StaticDir != "" {
		r.Handle("/*", spaHandler(cfg.StaticDir))
		logger.Info("serving static files", "dir", cfg.StaticDir)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("🚀 chat server starting", "addr", cfg.Addr, "origins", origins.List())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// 6. Graceful shutdown
	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
		"chat": func(ctx context.Context) error {
			// Connections go first so nothing new reaches the archive.
			err := hub.Shutdown(ctx)
			if archive != nil {
				err = errors.Join(err, archive.Close(ctx))
			}
			if database != nil {
				err = errors.Join(err, database.Close())
			}
			if redisClient != nil {
				err = errors.Join(err, redisClient.Close())
			}
			return err
		},
	})

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

// spaHandler serves files from dir and falls back to index.html so the
// frontend router can resolve client-side paths.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
