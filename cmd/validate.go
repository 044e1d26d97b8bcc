package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmfell/phasegate/internal/models"
	"github.com/jmfell/phasegate/internal/output"
)

var (
	validatePhase       string
	validateConstraints string
	validateThreshold   float64
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Score a single artifact file against the methodology",
	Long: `Validate one artifact file without a persistent session.

A throwaway session is started, the file content is evaluated against
the chosen phase, and the coverage, violations, and checklist are
printed. Nothing is recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateRun(args[0])
	},
}

func init() {
	validateCmd.Flags().StringVar(&validatePhase, "phase", "", "Phase to evaluate against (default: the first phase)")
	validateCmd.Flags().StringVar(&validateConstraints, "constraints", "all", "Comma-separated constraint ids, 'all', or 'none'")
	validateCmd.Flags().Float64Var(&validateThreshold, "threshold", 0, "Overall coverage threshold (default from config)")
	rootCmd.AddCommand(validateCmd)
}

func validateRun(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	wf, err := getWorkflow()
	if err != nil {
		return err
	}
	cat, err := getCatalog()
	if err != nil {
		return err
	}

	var constraints []models.Constraint
	switch validateConstraints {
	case "all":
		constraints = cat.Constraints
	case "none", "":
	default:
		for _, id := range splitCommaList(validateConstraints) {
			c := cat.ConstraintByID(id)
			if c == nil {
				return fmt.Errorf("unknown constraint id %q", id)
			}
			constraints = append(constraints, *c)
		}
	}

	threshold := validateThreshold
	if threshold <= 0 {
		threshold = viper.GetFloat64("coverage.threshold")
	}
	if threshold <= 0 {
		threshold = cat.Rules.OverallMinimum
	}

	sessionID := fmt.Sprintf("validate-%s", path)
	if _, err := wf.Start(models.SessionConfig{
		SessionID:         sessionID,
		Constraints:       constraints,
		CoverageThreshold: threshold,
	}); err != nil {
		return err
	}

	// Walk the session forward to the requested phase without gating.
	if validatePhase != "" {
		if _, err := wf.Complete(sessionID, validatePhase, string(data)); err != nil {
			return err
		}
	}

	conf, err := wf.Validate(sessionID, string(data))
	if err != nil {
		return err
	}

	ui.Info("Artifact: %s  (phase %q, threshold %.0f%%)", path, conf.Phase, threshold)
	fmt.Fprintln(ui.Out)

	covTable := ui.Table([]string{"SCORE", "VALUE"})
	covTable.Append([]string{"overall", output.CoverageColor(conf.Coverage.Overall)})
	covTable.Append([]string{"documentation", output.CoverageColor(conf.Coverage.Documentation)})
	covTable.Append([]string{"test", output.CoverageColor(conf.Coverage.TestCoverage)})
	covTable.Append([]string{"assumptions", output.CoverageColor(conf.Coverage.Assumptions)})
	for id, cov := range conf.Coverage.Phases {
		covTable.Append([]string{"phase:" + id, output.CoverageColor(cov)})
	}
	for id, cov := range conf.Coverage.Constraints {
		covTable.Append([]string{"constraint:" + id, output.CoverageColor(cov)})
	}
	covTable.Render()

	fmt.Fprintln(ui.Out)
	if len(conf.Violations) == 0 {
		ui.Success("No violations")
	} else {
		ui.Warning("%d violation(s)", len(conf.Violations))
		vioTable := ui.Table([]string{"SEVERITY", "TYPE", "TARGET", "GAP", "MESSAGE"})
		for _, v := range conf.Violations {
			vioTable.Append([]string{
				output.SeverityColor(string(v.Severity)),
				string(v.Type),
				v.TargetID,
				fmt.Sprintf("%.0f", v.Gap),
				v.Message,
			})
		}
		vioTable.Render()
	}

	fmt.Fprintln(ui.Out)
	checkTable := ui.Table([]string{"CHECK", "STATUS", "DETAILS"})
	for _, c := range conf.Checklist {
		checkTable.Append([]string{c.Name, string(c.Status), c.Details})
	}
	checkTable.Render()

	fmt.Fprintln(ui.Out)
	for _, rec := range conf.Recommendations {
		ui.Info("%s", rec)
	}

	if conf.Passed {
		ui.Success("Confirmation passed")
	} else {
		ui.Error("Confirmation failed")
	}
	return nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
