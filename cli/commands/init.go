package commands

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cli/internal/ui"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a load spec",
		Long:  "Walk through the target table and policies and write rowforge.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the prompts and write a default spec")

	return cmd
}

type initAnswers struct {
	Provider string
	Table    string
	Strategy string
	TxMode   string
	Returns  string
}

var initQuestions = []*survey.Question{
	{
		Name: "provider",
		Prompt: &survey.Select{
			Message: "Database provider:",
			Options: []string{"sqlite", "postgres", "mysql"},
			Default: "sqlite",
		},
	},
	{
		Name:     "table",
		Prompt:   &survey.Input{Message: "Target table:"},
		Validate: survey.Required,
	},
	{
		Name: "strategy",
		Prompt: &survey.Select{
			Message: "On conflicting rows:",
			Options: []string{"none", "ignore", "replace", "upsert"},
			Default: "none",
			Help:    "none fails the row, ignore skips it, replace overwrites it, upsert updates chosen columns",
		},
	},
	{
		Name: "txmode",
		Prompt: &survey.Select{
			Message: "Transaction batching:",
			Options: []string{"single", "chunked", "none"},
			Default: "single",
		},
	},
	{
		Name: "returns",
		Prompt: &survey.Select{
			Message: "Capture results:",
			Options: []string{"none", "inserted", "affected"},
			Default: "none",
		},
	},
}

func runInit(yes bool) error {
	const specPath = "rowforge.yaml"

	if _, err := os.Stat(specPath); err == nil {
		return fmt.Errorf("%s already exists", specPath)
	}

	answers := initAnswers{
		Provider: "sqlite",
		Table:    "rows",
		Strategy: "none",
		TxMode:   "single",
		Returns:  "none",
	}
	if !yes {
		if err := survey.Ask(initQuestions, &answers); err != nil {
			return err
		}
	}

	spec := renderSpec(answers)
	if err := os.WriteFile(specPath, []byte(spec), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", specPath, err)
	}

	ui.PrintSuccess("Created %s", specPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set the connection string in the spec or ROWFORGE_DSN")
	fmt.Println("2. Fill in the column mappings")
	fmt.Println("3. Run: rowforge load --input rows.json")
	return nil
}

func renderSpec(a initAnswers) string {
	spec := fmt.Sprintf(`provider: %s
dsn: ""
table: %s
mappings:
  - column: id
  - column: name
    transform: trim
conflict:
  strategy: %s
`, a.Provider, a.Table, a.Strategy)
	if a.Strategy == "upsert" {
		spec += "  keys: [id]\n  update: [name]\n"
	}
	spec += fmt.Sprintf(`transaction:
  mode: %s
`, a.TxMode)
	if a.TxMode == "chunked" {
		spec += "  chunk_size: 500\n"
	}
	spec += fmt.Sprintf(`return:
  mode: %s
`, a.Returns)
	return spec
}
