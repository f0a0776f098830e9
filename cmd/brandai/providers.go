package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/pkg/app"
	"github.com/spf13/cobra"
)

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(_ context.Context, rt *app.Runtime) error {
				return printProviders(cmd.OutOrStdout(), rt.Router.Providers())
			})
		},
	}
}

func printProviders(out io.Writer, ds []provider.Descriptor) error {
	if len(ds) == 0 {
		_, err := fmt.Fprintln(out, "No providers configured.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEFAULT MODEL\tENDPOINT")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.DefaultModel, d.Endpoint)
	}
	return tw.Flush()
}

func testCmd() *cobra.Command {
	var credential string
	cmd := &cobra.Command{
		Use:   "test [provider...]",
		Short: "Test provider connections (all configured providers by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if credential != "" && len(args) != 1 {
				return fmt.Errorf("--credential needs exactly one provider")
			}
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				return runTests(ctx, cmd.OutOrStdout(), rt.Router, args, credential)
			})
		},
	}
	cmd.Flags().StringVar(&credential, "credential", "", "Credential to test instead of the configured one")
	return cmd
}

// runTests prints one line per provider and fails when any test failed.
func runTests(ctx context.Context, out io.Writer, router *chat.Router, ids []string, credential string) error {
	var results map[provider.ID]bool
	order := make([]provider.ID, 0, len(ids))
	if len(ids) == 0 {
		results = router.TestAll(ctx, nil)
		for _, d := range router.Providers() {
			order = append(order, d.ID)
		}
	} else {
		results = make(map[provider.ID]bool, len(ids))
		for _, id := range ids {
			pid := provider.ID(id)
			order = append(order, pid)
			results[pid] = router.TestConnection(ctx, pid, credential)
		}
	}

	failed := 0
	for _, id := range order {
		status := "ok"
		if !results[id] {
			status = "FAILED"
			failed++
		}
		fmt.Fprintf(out, "%-10s %s\n", id, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d connection tests failed", failed, len(order))
	}
	return nil
}
