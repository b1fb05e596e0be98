package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check server health",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := rvClient.Health(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]string{"status": status, "transport": transport})
			return nil
		}
		if status == "ok" {
			status = ui.RenderOK(status)
		} else {
			status = ui.RenderWarn(status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", status, transport)
		return nil
	},
}
