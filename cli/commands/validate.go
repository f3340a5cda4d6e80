package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cli/internal/ui"
	"github.com/rowforge/rowforge/engine"
	"github.com/rowforge/rowforge/sqlgen"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var specPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a load spec",
		Long:  "Check the spec's mappings, identifiers, and policies without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(specPath)
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "Path to the load spec (default rowforge.yaml)")

	return cmd
}

func runValidate(specPath string) error {
	plan, err := loadPlan(specPath)
	if err != nil {
		return err
	}

	// Exercise the full configuration path, including statement synthesis,
	// against a session that never connects.
	sess, err := engine.Wrap(nil, plan.Provider)
	if err != nil {
		return err
	}
	loader := plan.Loader(sess)
	if err := loader.Validate(); err != nil {
		return err
	}

	columns := make([]string, len(plan.Mappings))
	for i, m := range plan.Mappings {
		columns[i] = m.Column
	}
	if _, err := sqlgen.BuildInsert(plan.Provider, plan.Table, columns, plan.Conflict, plan.Return, true); err != nil {
		return fmt.Errorf("spec produces an invalid statement: %w", err)
	}

	ui.PrintSuccess("Spec is valid: %d mappings into %s (%s)", len(plan.Mappings), plan.Table, plan.Provider)
	return nil
}
