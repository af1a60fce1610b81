package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/flatsheet/internal/config"
	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/export"
	"github.com/JonMunkholm/flatsheet/internal/history"
	"github.com/JonMunkholm/flatsheet/internal/logging"
	"github.com/JonMunkholm/flatsheet/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	opts := []core.Option{core.WithLogger(logger)}
	var serverOpts []web.Option
	if cfg.Database.Enabled() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.Migrate {
			if err := history.Migrate(ctx, pool); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}

		store := history.NewStore(pool)
		opts = append(opts, core.WithHistory(store))
		serverOpts = append(serverOpts, web.WithHistory(store))
	} else {
		slog.Info("upload history disabled (no DATABASE_URL)")
	}

	service := core.NewService(cfg.ServiceConfig(), core.Serializers{
		Workbook: export.NewWorkbook(cfg.Export.SheetName),
		CSV:      export.NewCSV(),
	}, opts...)

	server := web.NewServer(cfg, service, serverOpts...)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Let running uploads finish (and write their history) before the pool closes.
		if st := service.Limiter().Status(); st.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", st.Active)
		}
		if err := service.Close(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// openPool connects and pings the history database.
func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
