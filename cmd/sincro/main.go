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
	"github.com/spf13/cobra"

	"sincro-go/internal/api"
	"sincro-go/internal/app"
	"sincro-go/internal/config"
)

func main() {
	// A missing .env is normal; real errors surface when config is read.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SincroApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "commit", "serve").
func newApp(operation string) (*app.SincroApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSincroApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// run opens the app for one command, marks the operation failed when fn
// returns an error, and closes the app.
func run(operation string, fn func(a *app.SincroApp) error) error {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(a); err != nil {
		a.Fail()
		return err
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "sincro",
	Short:        "Version files that live inside other git repositories",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Data Dir:  %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Log Level: %s\n", cfg.LogLevel)
		fmt.Printf("Database:  %s %s\n", cfg.Database.Type, cfg.Database.Path)
		fmt.Printf("Watcher:   enabled=%t settle=%dms\n", cfg.Watcher.Enabled, cfg.Watcher.SettleMS)
		fmt.Printf("Listen:    %s\n", cfg.Server.ListenAddr)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API and watch active deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("serve", func(a *app.SincroApp) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.Start(ctx); err != nil {
				return err
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.Config().Server.ListenAddr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(a.Service(), a.Logger()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			fmt.Printf("Listening on %s\n", addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serving: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.listen_addr)")

	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
}
