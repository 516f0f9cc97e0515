package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the taskgraph service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := tgClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(map[string]string{"status": status, "transport": transport}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Health: %s (%s)\n", status, transport)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
