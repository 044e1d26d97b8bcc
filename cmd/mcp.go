package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmfell/phasegate/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This exposes the phase workflow as tools an agent can call. Configure
in a client with:

  {
    "mcpServers": {
      "phasegate": { "command": "phasegate", "args": ["mcp"] }
    }
  }

Available tools: phasegate_start_session, phasegate_advance_phase,
phasegate_complete_phase, phasegate_validate_phase,
phasegate_session_status, phasegate_reset_session,
phasegate_evaluate_pivot, phasegate_enforce_consistency,
phasegate_list_catalog, phasegate_list_sessions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := getWorkflow()
		if err != nil {
			return err
		}
		cat, err := getCatalog()
		if err != nil {
			return err
		}
		srv := mcp.NewServer(wf, cat, buildVersion)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
