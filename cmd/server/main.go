package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rarestbarbie/majesty-sub001/internal/api"
	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/metrics"
	"github.com/rarestbarbie/majesty-sub001/internal/scheduler"
	"github.com/rarestbarbie/majesty-sub001/internal/sim"
	"github.com/rarestbarbie/majesty-sub001/internal/store"
	"github.com/rarestbarbie/majesty-sub001/internal/ticker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "scenario YAML (empty: bundled example)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	switch {
	case cfg.Server.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	case cfg.Server.SQLitePath != "":
		lite, err := store.OpenSQLite(cfg.Server.SQLitePath)
		if err != nil {
			slog.Error("sqlite open failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { lite.Close() })
		st = lite
		slog.Info("opened SQLite", "path", cfg.Server.SQLitePath)
	default:
		slog.Warn("DATABASE_URL and SQLITE_PATH not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.Server.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Server.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.Server.CacheTTL)
		slog.Info("Redis cache enabled")
	}

	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Simulation ---
	s, err := resume(ctx, cfg, st)
	if err != nil {
		slog.Error("start simulation failed", "err", err)
		os.Exit(1)
	}

	tickers, err := ticker.FromScenario(cfg.Scenario)
	if err != nil {
		slog.Error("ticker symbols", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()
	defer wsHub.Stop()

	svc := api.NewService(s, st, tickers, wsHub)

	// --- Scheduler ---
	sched := scheduler.NewScheduler(ctx, svc)
	if err := sched.RegisterAll(cfg.Server.TurnCron, cfg.Server.SnapshotCron); err != nil {
		slog.Error("register scheduled tasks", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"majesty"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("majesty listening", "port", cfg.Server.Port, "day", s.Day)
	sched.Start()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down majesty...")
	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if _, err := svc.Save(shutdownCtx); err != nil {
		slog.Error("final snapshot failed", "err", err)
	}
	fmt.Println("majesty stopped")
}

// resume restores the latest stored snapshot, or starts the scenario fresh
// when there is none.
func resume(ctx context.Context, cfg *config.Config, st store.Store) (*sim.Simulation, error) {
	info, data, err := st.LatestSnapshot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("no snapshot found, starting scenario", "seed", cfg.Simulation.Seed)
		return sim.New(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if err := sim.Verify(info, data); err != nil {
		return nil, fmt.Errorf("verify snapshot %s: %w", info.ID, err)
	}
	s, err := sim.Decode(cfg, data)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %s: %w", info.ID, err)
	}
	slog.Info("resumed from snapshot", "id", info.ID, "day", s.Day)
	return s, nil
}
