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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-counter-deck/internal/config"
	"go-counter-deck/internal/container"
	"go-counter-deck/internal/factory"
	"go-counter-deck/internal/logger"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Counter deck analysis API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations for the configured storage driver",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate()
			},
		},
		newGrantCmd(),
		newTokenCmd(),
	)
	return root
}

func newGrantCmd() *cobra.Command {
	var validFor time.Duration
	cmd := &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Upgrade a user to premium",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *container.Container) error {
				var expiresAt *time.Time
				if validFor > 0 {
					t := time.Now().Add(validFor).UTC()
					expiresAt = &t
				}

				ent, err := c.Subscriptions().Grant(cmd.Context(), args[0], expiresAt)
				if err != nil {
					return err
				}
				logger.WithFields(logrus.Fields{
					"user_id":    ent.UserID,
					"tier":       ent.Tier,
					"expires_at": ent.ExpiresAt,
				}).Info("Premium granted")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&validFor, "for", 0, "how long the grant lasts (0 means no expiry)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print a signed access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *container.Container) error {
				token, err := c.Authenticator().IssueToken(args[0], ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.WithError(err).Error("Failed to load config")
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func withContainer(ctx context.Context, fn func(*container.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize container")
		return err
	}
	defer c.Close()

	if err := fn(c); err != nil {
		logger.WithError(err).Error("Command failed")
		return err
	}
	return nil
}

func runMigrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	version, err := factory.Migrate(cfg)
	if err != nil {
		logger.WithError(err).Error("Migration failed")
		return err
	}
	logger.WithFields(logrus.Fields{
		"driver":  cfg.StorageDriver,
		"version": version,
	}).Info("Database migrated")
	return nil
}

func serve(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependency injection container
	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize container")
		return err
	}
	defer c.Close()

	// Write timeout leaves room for the slowest allowed analysis
	server := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"address":        cfg.ServerAddress(),
			"timeout":        cfg.RequestTimeout,
			"ai_backend":     cfg.AIBackend,
			"vision_backend": cfg.VisionBackend,
			"storage":        cfg.StorageDriver,
			"auth_enabled":   cfg.AuthJWTSecret != "",
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return err
	}
	logger.Info("Server exited")
	return nil
}
