package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magesync/backend/internal/bootstrap"
	"github.com/magesync/backend/internal/infrastructure/config"
	"github.com/magesync/backend/internal/infrastructure/logger"
)

// cliTrigger is recorded in sync_runs.trigger for runs started here
const cliTrigger = "cli"

// Version information (set via ldflags during build)
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "magesync",
	Short: "Synchronize Magento orders, customers and products",
	Long: `magesync pulls records from the Magento SOAP API into the local
database. It runs the same jobs as the HTTP trigger routes and shares
their session cache and run lock.

Configuration is read from config.toml and MAGESYNC_* environment
variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(untilDoneCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
}

// withApp loads the configuration, wires the application and cancels the
// context on SIGINT or SIGTERM. A canceled job stops between windows.
func withApp(fn func(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log, err := logger.New(&logger.Config{
			Level:      cfg.Log.Level,
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "2006-01-02 15:04:05",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() {
			_ = logger.Sync(log)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := fn(ctx, cmd, app, args); err != nil {
			log.Error("Command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}

// printJSON writes v indented to w
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
