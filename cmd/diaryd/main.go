// Command diaryd serves the health diary REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/health-diary/internal/config"
	"github.com/and161185/health-diary/internal/limiter"
	"github.com/and161185/health-diary/internal/logger"
	"github.com/and161185/health-diary/internal/migrate"
	"github.com/and161185/health-diary/internal/repository"
	"github.com/and161185/health-diary/internal/repository/memory"
	"github.com/and161185/health-diary/internal/repository/postgres"
	"github.com/and161185/health-diary/internal/server"
	"github.com/and161185/health-diary/internal/service"
	"github.com/and161185/health-diary/internal/validate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	config.LoadDotEnv()
	if err := newRootCmd(config.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "diaryd:", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "diaryd",
		Short:         "Health diary API server",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("dsn", "", `PostgreSQL DSN, or "memory"`)
	root.Flags().String("addr", "", "listen address")
	root.Flags().String("jwt-key", "", "HS256 signing key")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("database.dsn", root.PersistentFlags().Lookup("dsn"))
	_ = v.BindPFlag("server.addr", root.Flags().Lookup("addr"))
	_ = v.BindPFlag("jwt.key", root.Flags().Lookup("jwt-key"))

	root.AddCommand(newMigrateCmd(v))
	return root
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, log, err := migrateSetup(v)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return migrate.Up(cmd.Context(), dsn, log)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, log, err := migrateSetup(v)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			ver, err := migrate.Version(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ver)
			return nil
		},
	})
	return cmd
}

func migrateSetup(v *viper.Viper) (string, *zap.Logger, error) {
	cfg, err := config.LoadMigrate(v)
	if err != nil {
		return "", nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return "", nil, err
	}
	return cfg.Database.DSN, log, nil
}

type storage struct {
	users    repository.UserRepository
	entries  repository.EntryRepository
	profiles repository.ProfileRepository
	lim      limiter.Limiter
	db       server.Pinger
	close    func()
}

// openStorage runs migrations and opens PostgreSQL, or falls back to memory.
func openStorage(ctx context.Context, cfg *config.Server, log *zap.Logger) (*storage, error) {
	lc := cfg.Limiter
	if cfg.Database.DSN == config.MemoryDSN {
		log.Warn("using in-memory storage; data is lost on exit")
		mem := memory.New()
		return &storage{
			users:    mem.Users(),
			entries:  mem.Entries(),
			profiles: mem.Profiles(),
			lim:      limiter.NewMemory(lc.Window, lc.MaxFails, lc.BlockFor),
			close:    func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.Database.DSN, log); err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &storage{
		users:    postgres.NewUserRepo(db),
		entries:  postgres.NewEntryRepo(db),
		profiles: postgres.NewProfileRepo(db),
		lim:      limiter.NewPG(db.Pool, lc.Window, lc.MaxFails, lc.BlockFor),
		db:       db,
		close:    db.Close,
	}, nil
}

func serve(ctx context.Context, cfg *config.Server) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("storage", zap.Error(err))
		return err
	}
	defer st.close()

	val := validate.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(server.Deps{
		Auth:      service.NewAuthService(st.users, []byte(cfg.JWT.Key), cfg.JWT.AccessTTL, st.lim, val),
		Diary:     service.NewDiaryService(st.entries, st.profiles, val),
		Validator: val,
		DB:        st.db,
		Registry:  reg,
		Logger:    log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error("shutdown", zap.Error(err))
			return err
		}
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
	}

	log.Info("shutdown complete")
	return nil
}
