package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmfell/phasegate/internal/output"
)

var (
	catalogCategory        string
	catalogPhasesOnly      bool
	catalogConstraintsOnly bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show the methodology's phases and constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return catalogRun()
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogCategory, "category", "", "Filter constraints by category")
	catalogCmd.Flags().BoolVar(&catalogPhasesOnly, "phases", false, "Show only the phase table")
	catalogCmd.Flags().BoolVar(&catalogConstraintsOnly, "constraints", false, "Show only the constraint table")
	rootCmd.AddCommand(catalogCmd)
}

func catalogRun() error {
	cat, err := getCatalog()
	if err != nil {
		return err
	}

	if !catalogConstraintsOnly {
		ui.Info("Phases")
		phaseTable := ui.Table([]string{"ID", "NAME", "MIN", "DEPENDS ON", "OUTPUTS"})
		for _, p := range cat.Phases {
			phaseTable.Append([]string{
				output.Cyan(p.ID),
				p.Name,
				fmt.Sprintf("%.0f%%", p.MinCoverage),
				strings.Join(p.DependsOn, ", "),
				fmt.Sprintf("%d", len(p.RequiredOutputs)),
			})
		}
		phaseTable.Render()
	}
	if catalogPhasesOnly {
		return nil
	}

	constraints := cat.Constraints
	if catalogCategory != "" {
		constraints = cat.ConstraintsByCategory(catalogCategory)
		if len(constraints) == 0 {
			ui.Warning("No constraints in category %q (categories: %s)", catalogCategory, strings.Join(cat.Categories(), ", "))
			return nil
		}
	}

	if !catalogConstraintsOnly {
		fmt.Fprintln(ui.Out)
	}
	ui.Info("Constraints")
	conTable := ui.Table([]string{"ID", "CATEGORY", "TYPE", "MIN", "WEIGHT", "MANDATORY"})
	for _, c := range constraints {
		mandatory := ""
		if c.Mandatory {
			mandatory = output.Red("yes")
		}
		conTable.Append([]string{
			output.Cyan(c.ID),
			c.Category,
			string(c.Type),
			fmt.Sprintf("%.0f%%", c.Validation.MinCoverage),
			fmt.Sprintf("%.1f", c.Weight),
			mandatory,
		})
	}
	conTable.Render()
	return nil
}
