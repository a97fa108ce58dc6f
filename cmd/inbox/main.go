package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/unifiedinbox/inbox/cmd/inbox/modules"
	"github.com/unifiedinbox/inbox/db"
	"github.com/unifiedinbox/inbox/internal/auth"
	"github.com/unifiedinbox/inbox/internal/boot"
	"github.com/unifiedinbox/inbox/internal/config"
	dbpkg "github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/logger"
	"github.com/unifiedinbox/inbox/internal/version"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "inbox",
		Short:         "Unified SMS, WhatsApp and email inbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config.toml (env CONFIG_PATH)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhooks and scheduled-send dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.Supply(modules.ConfigPath(configPath)),
				modules.InfraModule,
				modules.ChannelModule,
				modules.DomainModule,
				modules.ServerModule,
				fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
					l := &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
					l.UseLogLevel(slog.LevelDebug)
					return l
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|version|force N",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"up", "down", "version", "force"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			migrations, err := fs.Sub(db.MigrationsFS, "migrations")
			if err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return dbpkg.RunMigrate(logger.L, cfg.Postgres, migrations, args[0], args[1:])
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for local use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rc, err := boot.ProvideRuntimeConfig(cfg)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = rc.JwtExpiresIn
			}
			token, expiresAt, err := auth.GenerateNamedToken(userID, name, rc.JwtSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "operator id (sub claim)")
	cmd.Flags().StringVar(&name, "name", "", "display name shown to other operators")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.jwt_expires_in)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "inbox %s\n", version.GetInfo())
		},
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
