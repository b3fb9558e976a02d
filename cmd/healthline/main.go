// Command healthline runs the medication tracker: the caregiver pages, the
// JSON API and the maintenance commands that share its SQLite store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/config"
	httpapi "github.com/tbourn/healthline/internal/http"
	"github.com/tbourn/healthline/internal/observability"
	"github.com/tbourn/healthline/internal/repo"
	"github.com/tbourn/healthline/internal/rxnorm"
	"github.com/tbourn/healthline/internal/search"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/sysutil"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version string

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "healthline",
		Short:        "Medication schedules, dose log and overdue alerts for care homes",
		Version:      sysutil.Version(version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Variables already set in the environment win over the file.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())
	return root
}

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if port != "" {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, db)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date in %s\n", cfg.DBPath)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Delete all patients and load the demo data set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			seeder := &services.Seeder{DB: db, Clock: clock.New(cfg.TimeOffsetMinutes)}
			patients, meds, err := seeder.SeedDemo(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d patients and %d medications\n", patients, meds)
			return nil
		},
	}
}

// bootstrap loads the configuration, installs the logger and opens the
// migrated store. Every subcommand starts here.
func bootstrap(cmd *cobra.Command) (config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	sysutil.SetupLogger(cmd.ErrOrStderr(), cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return cfg, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().EmbedObject(cfg).Msg("store ready")
	return cfg, db, nil
}

func runServer(ctx context.Context, cfg config.Config, db *gorm.DB) error {
	ver := sysutil.Version(version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	lookup, err := rxnorm.NewClient(rxnorm.Config{
		BaseURL:   cfg.RxNorm.BaseURL,
		Timeout:   cfg.RxNorm.Timeout,
		UserAgent: "healthline/" + ver,
	})
	if err != nil {
		return err
	}

	if n, err := (&services.IdempotencyService{DB: db, Clock: clock.New(cfg.TimeOffsetMinutes)}).Purge(ctx); err != nil {
		log.Warn().Err(err).Msg("purge idempotency keys")
	} else if n > 0 {
		log.Info().Int64("purged", n).Msg("expired idempotency keys removed")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{
		Index:  search.NewIndex(search.DefaultVocabulary()),
		Lookup: lookup,
	}, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("api", cfg.APIBasePath).Str("version", ver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
