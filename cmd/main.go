package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/httpapi"
	"github.com/buchwerk/fibu/internal/kontenplan"
	"github.com/buchwerk/fibu/internal/storage/memory"
	pgstore "github.com/buchwerk/fibu/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	table, err := loadKontenplan()
	if err != nil {
		logger.Error("failed to load kontenplan", "err", err)
		os.Exit(1)
	}

	var store httpapi.Store
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		store = memory.New()
		logger.Info("storage backend: memory")
	}

	if devSeedEnabled() {
		if err := seedDev(ctx, store, logger); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           httpapi.New(store, table, logger).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fibu service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// loadKontenplan uses the embedded SKR03 table unless KONTENPLAN_FILE points
// at an alternative YAML table.
func loadKontenplan() (*kontenplan.Table, error) {
	if path := strings.TrimSpace(os.Getenv("KONTENPLAN_FILE")); path != "" {
		return kontenplan.LoadFile(path)
	}
	return kontenplan.Default(), nil
}

func listenAddr() string {
	if addr := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); addr != "" {
		return addr
	}
	return ":8080"
}

func devSeedEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// seedDev creates a company with an open fiscal year for the current year so
// the API is usable immediately after startup.
func seedDev(ctx context.Context, store httpapi.Store, logger *slog.Logger) error {
	company, err := store.CreateCompany(ctx, fibu.Company{Name: "Musterfirma GmbH"})
	if err != nil {
		return err
	}
	fy, err := store.CreateFiscalYear(ctx, fibu.NewFiscalYear(company.ID, time.Now().UTC().Year()))
	if err != nil {
		return err
	}
	logger.Info("DEV seed", "company_id", company.ID.String(), "fiscal_year_id", fy.ID.String(), "year", fy.Year)
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("company_id: %s\n", company.ID)
	fmt.Printf("fiscal_year_id: %s (%d)\n", fy.ID, fy.Year)
	fmt.Println("==================================================")
	return nil
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
