package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/flemzord/brandai/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// serviceActions are forwarded to service.Control.
var serviceActions = []string{"install", "uninstall", "start", "stop", "restart"}

// program runs the application under the OS service manager.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Run(ctx, p.params) }()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

// serviceConfig describes the unit installed for configPath. The path is
// made absolute since service managers do not run from the caller's
// working directory.
func serviceConfig(configPath string) (*service.Config, error) {
	args := []string{"service", "run"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "brandai",
		DisplayName: "BrandAI",
		Description: "Brand-aware chat router and HTTP gateway.",
		Arguments:   args,
	}, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage brandai as an OS service",
	}

	newService := func(cmd *cobra.Command) (service.Service, error) {
		params := runParams(cmd, nil, nil)
		cfg, err := serviceConfig(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		return service.New(&program{params: params}, cfg)
	}

	for _, action := range serviceActions {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the brandai service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: done\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the brandai service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusLabel(st))
			return nil
		},
	})
	return cmd
}

func statusLabel(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "not installed"
	}
}
