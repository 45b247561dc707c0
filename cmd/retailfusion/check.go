package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newBackendClient(cfg)
		project, err := client.Health(context.Background())
		if err != nil {
			return fmt.Errorf("backend %s unhealthy: %w", client.Name(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%s)\n", project, client.Name())
		return nil
	},
}
