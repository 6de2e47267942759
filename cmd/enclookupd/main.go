// Command enclookupd serves records over HTTP, exposing every primary and
// foreign key as a token instead of its integer value.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/paraglidehq/enclookup/internal/cliutil"
	"github.com/paraglidehq/enclookup/internal/config"
	"github.com/paraglidehq/enclookup/internal/server"
	"github.com/paraglidehq/enclookup/internal/store"
	"github.com/paraglidehq/enclookup/postgres"
)

func runMain(ctx context.Context, cfg *config.Config) error {
	ctx, err := cliutil.SetupLogging(ctx, &cfg.LoggingConfig)
	if err != nil {
		return err
	}
	log := zerolog.Ctx(ctx)
	log.Info().Msgf("Starting...")

	cipher, err := cfg.Cipher()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("driver", cfg.DBDriver).Msgf("Store opened")

	if cfg.DBDriver == "postgres" {
		if err := postgres.Migrate(ctx, st.DB()); err != nil {
			return fmt.Errorf("installing token functions: %w", err)
		}
		log.Info().Int("version", postgres.Version).Msgf("Token functions installed")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Fatal().Err(err).Msgf("Failed to start HTTP server for exporting metrics")
			}
		}()
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.NewRouter(server.Config{
			Cipher:      cipher,
			Records:     st,
			LookupField: cfg.LookupField,
			Logger:      *log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", cfg.ListenAddr).Msgf("Startup complete")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msgf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "Address to serve records on")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Address to expose metrics on. Empty disables metrics")
	flag.StringVar(&cfg.LookupField, "lookup-field", cfg.LookupField, "Name of the URL parameter and response field carrying the token")
	flag.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Database driver. 'sqlite' or 'postgres'")
	flag.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "Database connection string")
	cliutil.RegisterLoggingFlags(flag.CommandLine, &cfg.LoggingConfig)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMain(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
