package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/agi-mcp/internal/config"
	"github.com/HendryAvila/agi-mcp/internal/resources"
	agiserver "github.com/HendryAvila/agi-mcp/internal/server"
	"github.com/HendryAvila/agi-mcp/internal/telemetry"
	"github.com/HendryAvila/agi-mcp/internal/updater"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agi-mcp",
		Short: "MCP gateway to the AGI subsystems",
		Long: `agi-mcp exposes learning, multi-agent coordination, skill evolution,
goal planning, context synthesis and self-modification as MCP tools.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "agi": {
        "command": "agi-mcp",
        "args": ["serve"]
      }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newCatalogCmd(), newUpdateCmd(), newVersionCmd())
	return root
}

// newServeCmd starts the stdio server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, cleanup, err := agiserver.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	if cfg.UpdateCheck {
		go checkForUpdates(ctx, log)
	}

	return server.ServeStdio(s)
}

// checkForUpdates logs a notice when a newer release exists. Failures are
// ignored.
func checkForUpdates(ctx context.Context, log *zap.Logger) {
	result := updater.CheckVersion(ctx, agiserver.Version)
	if result.UpdateAvailable {
		log.Info("update available",
			zap.String("current", result.CurrentVersion),
			zap.String("latest", result.LatestVersion),
			zap.String("release", result.ReleaseURL),
			zap.String("run", "agi-mcp update"),
		)
	}
}

func newCatalogCmd() *cobra.Command {
	var namesOnly bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print every operation and its input schema as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := resources.Entries()
			out := cmd.OutOrStdout()
			if namesOnly {
				for _, e := range entries {
					fmt.Fprintln(out, e.Name)
				}
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
	cmd.Flags().BoolVar(&namesOnly, "names", false, "print only operation names")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update to the latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			w := cmd.ErrOrStderr()
			fmt.Fprintf(w, "Checking for updates...\n")

			result := updater.CheckVersion(ctx, agiserver.Version)
			if !result.UpdateAvailable {
				fmt.Fprintf(w, "Already at the latest version (v%s)\n", result.CurrentVersion)
				return nil
			}

			fmt.Fprintf(w, "New version available: v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)
			fmt.Fprintf(w, "Downloading...\n")
			if err := updater.SelfUpdate(ctx, agiserver.Version); err != nil {
				return fmt.Errorf("update failed: %w (download manually from %s)", err, result.ReleaseURL)
			}

			fmt.Fprintf(w, "Updated to v%s. Restart agi-mcp to use the new version.\n", result.LatestVersion)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agi-mcp v%s\n", agiserver.Version)
		},
	}
}
