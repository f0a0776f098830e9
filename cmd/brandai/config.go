package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flemzord/brandai/internal/security"
	"github.com/flemzord/brandai/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var show bool
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every configured module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := runParams(cmd, nil, cmd.ErrOrStderr())
			if debug, _ := cmd.Flags().GetBool("debug"); !debug {
				params.LogLevel = slog.LevelWarn
			}
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			rt, err := app.Build(cmd.Context(), params)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.WithoutCancel(cmd.Context())) }()

			out := cmd.OutOrStdout()
			ids := rt.Modules()
			fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", rt.ConfigPath, len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			if !show {
				return nil
			}
			fmt.Fprintln(out)
			return printRedactedConfig(out, rt.ConfigPath, rt.Redactor)
		},
	}
	check.Flags().BoolVar(&show, "show", false, "Print the configuration with secrets redacted")
	cmd.AddCommand(check)
	return cmd
}

// printRedactedConfig prints the raw file, before env expansion, with
// secret-looking values replaced.
func printRedactedConfig(out io.Writer, path string, redactor *security.Redactor) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	redactor.RedactMap(doc)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
