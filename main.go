package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/spf13/cobra"

	"github.com/AtharvaShastrakar/orangeChat/middleware/ratelimit"
	"github.com/AtharvaShastrakar/orangeChat/modules/api"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
	"github.com/AtharvaShastrakar/orangeChat/modules/broadcast"
	"github.com/AtharvaShastrakar/orangeChat/modules/cache"
	"github.com/AtharvaShastrakar/orangeChat/modules/chat"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "orangechat",
		Short:        "orangeChat - multi-tenant group chat",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides PORT)")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the chat and account schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			return migrate(cfg)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "chat database path (overrides DB_PATH)")
	return cmd
}

func migrate(cfg config) error {
	chatDB, err := chat.OpenDatabase(cfg.DBPath, cfg.DBDebug)
	if err != nil {
		return err
	}
	if err := chat.Migrate(chatDB); err != nil {
		return fmt.Errorf("migrate chat database: %w", err)
	}
	log.Printf("Migrated chat database %s", cfg.DBPath)

	authDB, err := auth.OpenDatabase(cfg.AuthDBPath)
	if err != nil {
		return err
	}
	if err := auth.Migrate(authDB); err != nil {
		return fmt.Errorf("migrate account database: %w", err)
	}
	log.Printf("Migrated account database %s", cfg.AuthDBPath)
	return nil
}

func serve(cfg config) error {
	log.Println("=== orangeChat ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Plugins and middleware must be registered before regular modules so
	// that service registrations are intercepted.
	if cfg.RedisAddr != "" {
		if err := app.RegisterPlugin(cache.NewPluginModule(cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL), "cache"); err != nil {
			return fmt.Errorf("failed to register cache plugin: %w", err)
		}

		limiter, err := ratelimit.New(
			ratelimit.WithRedisAddr(cfg.RedisAddr),
			ratelimit.WithRedisPassword(cfg.RedisPassword),
			ratelimit.WithDefaultLimit(cfg.RateLimit, time.Minute),
			ratelimit.WithServiceLimit(chat.ServiceInsertMessage, cfg.RateLimit, time.Minute),
			ratelimit.WithServiceLimit(chat.ServiceInsertRoom, 10, time.Minute),
			ratelimit.WithServiceLimit(auth.ServiceSignup, 5, time.Minute),
			ratelimit.WithServiceLimit(auth.ServiceLogin, 20, time.Minute),
		)
		if err != nil {
			return fmt.Errorf("failed to create rate limiting middleware: %w", err)
		}
		if err := app.Register(limiter); err != nil {
			return fmt.Errorf("failed to register rate limiting middleware: %w", err)
		}
	} else {
		log.Println("REDIS_ADDR not set: cache and rate limiting disabled")
	}

	authModule := auth.NewModule(cfg.AuthDBPath, cfg.JWT, cfg.mailer())
	chatModule := chat.NewModule(cfg.DBPath, cfg.DBDebug, app.Logger())
	broadcastModule := broadcast.NewModule(0)
	apiModule := api.NewModule(cfg.Port, cfg.CORSOrigins)

	// The hub is not exposed through a service container.
	apiModule.SetHub(broadcastModule.GetHub())

	for _, m := range []mono.Module{authModule, chatModule, broadcastModule, apiModule} {
		if err := app.Register(m); err != nil {
			return fmt.Errorf("failed to register module %s: %w", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	log.Printf("Listening on http://localhost:%s (WebSocket at /ws, REST under /api/v1)", cfg.Port)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
	return nil
}
