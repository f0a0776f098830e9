// Package main is the entry point for the brandai CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/pkg/app"
	"github.com/spf13/cobra"

	_ "github.com/flemzord/brandai/internal/cron"
	_ "github.com/flemzord/brandai/internal/gateway"
	_ "github.com/flemzord/brandai/modules/memory/sqlite"
	_ "github.com/flemzord/brandai/modules/provider/gemini"
	_ "github.com/flemzord/brandai/modules/provider/ollama"
	_ "github.com/flemzord/brandai/modules/provider/openai"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// oneShotNamespaces are the modules a command needs to talk to providers
// without serving anything.
var oneShotNamespaces = []string{"provider", "memory"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "brandai",
		Short:         "A brand-aware chat router for OpenAI, Gemini and Ollama",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(
		versionCmd(),
		startCmd(),
		chatCmd(),
		testCmd(),
		providersCmd(),
		configCmd(),
		initCmd(),
		mcpCmd(),
		serviceCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "brandai %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start brandai with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(cmd, nil, nil))
		},
	}
}

// runParams collects the flags shared by every command.
func runParams(cmd *cobra.Command, namespaces []string, logOutput io.Writer) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	level := slog.LevelInfo
	if namespaces != nil {
		// One-shot commands keep stderr quiet unless asked.
		level = slog.LevelWarn
	}
	if debug {
		level = slog.LevelDebug
	}
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		LogLevel:   level,
		LogOutput:  logOutput,
		Namespaces: namespaces,
	}
}

// withRuntime builds a runtime limited to oneShotNamespaces, starts it,
// runs fn and shuts it down.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx := cmd.Context()
	rt, err := app.Build(ctx, runParams(cmd, oneShotNamespaces, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	if err := rt.Start(); err != nil {
		return err
	}
	return fn(ctx, rt)
}
