package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kioskcm/pkg/bus"
	"kioskcm/pkg/db"
	"kioskcm/pkg/events"
	gos3 "kioskcm/pkg/s3"
	"kioskcm/pkg/telemetry"
	"kioskcm/services/api"
	"kioskcm/services/api/internal/config"
	"kioskcm/services/audit"
	"kioskcm/services/locks"
	"kioskcm/services/media"
	"kioskcm/services/protection"
	"kioskcm/services/resources"
	"kioskcm/services/store"
	"kioskcm/services/wall"
)

const serviceName = "kioskcm"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Content management for kiosk and wall devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSweepLocksCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the lock sweeper and the audit ingestor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newSweepLocksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-locks",
		Short: "Delete expired resource locks once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			gormDB, err := db.OpenORM(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer func() {
				if err := db.CloseORM(gormDB); err != nil {
					log.Error().Err(err).Msg("close database")
				}
			}()

			st, err := store.New(gormDB)
			if err != nil {
				return err
			}
			ctrl, err := locks.New(st, locks.Options{TTL: cfg.LockTTL, Logger: log.Logger})
			if err != nil {
				return err
			}
			n, err := ctrl.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep locks: %w", err)
			}
			log.Info().Int("released", n).Msg("expired locks swept")
			return nil
		},
	}
}

// setup loads configuration and configures the global logger.
func setup(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(cfg.Level())
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	cleanup, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	gormDB, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect orm: %w", err)
	}
	defer func() {
		if err := db.CloseORM(gormDB); err != nil {
			log.Error().Err(err).Msg("close orm")
		}
	}()

	st, err := store.New(gormDB)
	if err != nil {
		return err
	}

	keycloak, err := protection.NewKeycloak(protection.KeycloakConfig{
		URL:          cfg.KeycloakURL,
		Realm:        cfg.KeycloakRealm,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakClientSecret,
	})
	if err != nil {
		return fmt.Errorf("keycloak client: %w", err)
	}
	gateway, err := protection.NewGateway(keycloak, log.Logger)
	if err != nil {
		return err
	}
	names, err := protection.NewDisplayNames(keycloak, cfg.DisplayNameCacheSize, cfg.DisplayNameCacheTTL, log.Logger)
	if err != nil {
		return err
	}

	resourceOpts := resources.Options{Logger: log.Logger}
	lockOpts := locks.Options{TTL: cfg.LockTTL, Logger: log.Logger}
	svc := api.Services{Store: st, Names: names}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL, log.Logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer eventBus.Close()

		if err := eventBus.EnsureStream(events.Stream, events.Subjects(), 7*24*time.Hour); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		notifier, err := locks.NewBusNotifier(eventBus, log.Logger)
		if err != nil {
			return err
		}
		lockOpts.Notifier = notifier
		resourceOpts.Locks = notifier
		resourceOpts.Events = eventBus

		auditStore, err := audit.NewStore(pool)
		if err != nil {
			return err
		}
		ingestor, err := audit.NewIngestor(auditStore, eventBus, log.Logger)
		if err != nil {
			return err
		}
		if err := ingestor.Start(ctx); err != nil {
			return fmt.Errorf("start audit ingestor: %w", err)
		}
		defer func() {
			if err := ingestor.Close(); err != nil {
				log.Error().Err(err).Msg("close audit ingestor")
			}
		}()
		svc.Audit = auditStore
	} else {
		log.Warn().Msg("NATS_URL not set; lock notifications and audit ingestion disabled")
	}

	if svc.Resources, err = resources.New(st, gateway, resourceOpts); err != nil {
		return err
	}
	if svc.Locks, err = locks.New(st, lockOpts); err != nil {
		return err
	}
	if svc.Wall, err = wall.New(st, log.Logger); err != nil {
		return err
	}

	if cfg.MediaEnabled() {
		objects, err := gos3.NewClient(ctx, cfg.S3Bucket, gos3.Options{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			DisableTLS:     cfg.S3DisableTLS,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		if svc.Media, err = media.New(st, objects, media.Options{PublicBaseURL: cfg.MediaPublicBaseURL, Logger: log.Logger}); err != nil {
			return err
		}
	}

	svc.Ready = readiness(pool, eventBus)

	sweeper, err := locks.NewSweeper(svc.Locks, cfg.LockSweepInterval, log.Logger)
	if err != nil {
		return err
	}
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start lock sweeper: %w", err)
	}
	defer func() {
		if err := sweeper.Close(); err != nil {
			log.Error().Err(err).Msg("close lock sweeper")
		}
	}()

	handlers, err := api.New(svc, api.Config{
		ServiceName:        serviceName,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             log.Logger,
	})
	if err != nil {
		return err
	}
	router, err := handlers.Routes()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting kioskcm")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
	return nil
}

func readiness(pool *pgxpool.Pool, eventBus *bus.Bus) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx, pool); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if eventBus != nil && !eventBus.Healthy() {
			return errors.New("nats disconnected")
		}
		return nil
	}
}
