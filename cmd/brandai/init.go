package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/brandai/internal/config"
	"github.com/flemzord/brandai/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initAnswers are the choices collected by the init wizard.
type initAnswers struct {
	Provider   string
	APIKey     string
	Model      string
	Gateway    bool
	Bind       string
	Token      string
	Probe      bool
	Persistent bool
}

// apiKeyEnv names the environment variable referenced when no key is typed.
func apiKeyEnv(p string) string {
	return strings.ToUpper(p) + "_API_KEY"
}

// renderConfig produces a brandai.yaml for a.
func renderConfig(a initAnswers) ([]byte, error) {
	modules := map[string]map[string]any{}

	providerCfg := map[string]any{}
	switch {
	case a.APIKey != "":
		providerCfg["api_key"] = a.APIKey
	case a.Provider != "ollama":
		providerCfg["api_key"] = "${" + apiKeyEnv(a.Provider) + "}"
	}
	if a.Model != "" {
		providerCfg["model"] = a.Model
	}
	modules[config.ProviderModuleID(a.Provider)] = providerCfg

	if a.Persistent {
		modules["memory.sqlite"] = map[string]any{}
	}
	if a.Gateway {
		gw := map[string]any{"bind": a.Bind}
		if a.Token != "" {
			gw["auth"] = map[string]any{"bearer_token": a.Token}
		}
		modules["gateway.http"] = gw
	}
	if a.Probe {
		modules["cron.probe"] = map[string]any{"schedule": "@every 5m"}
	}

	doc := map[string]any{
		"version": "1",
		"chat":    map[string]any{"provider": a.Provider},
		"modules": modules,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default provider").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Google Gemini", "gemini"),
					huh.NewOption("Ollama", "ollama"),
				).
				Value(&a.Provider),
			huh.NewInput().
				Title("API key").
				Description("Leave empty to read it from the environment at startup.").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the provider default.").
				Value(&a.Model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Store brands and conversations in SQLite?").
				Value(&a.Persistent),
			huh.NewConfirm().
				Title("Probe providers periodically?").
				Value(&a.Probe),
			huh.NewConfirm().
				Title("Serve the HTTP gateway?").
				Value(&a.Gateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Value(&a.Bind).
				Validate(func(s string) error {
					if !strings.Contains(s, ":") {
						return errors.New("expected host:port")
					}
					return nil
				}),
			huh.NewInput().
				Title("Gateway bearer token").
				Description("Required to expose the gateway beyond loopback.").
				EchoMode(huh.EchoModePassword).
				Value(&a.Token),
		).WithHideFunc(func() bool { return !a.Gateway }),
	)
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a configuration file interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := initAnswers{Provider: "openai", Bind: "127.0.0.1:8080", Persistent: true}
			if err := initForm(&answers).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			if answers.APIKey == "" && answers.Provider != "ollama" {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s before starting brandai.\n", apiKeyEnv(answers.Provider))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
