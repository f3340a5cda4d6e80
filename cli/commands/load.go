package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cli/internal/input"
	"github.com/rowforge/rowforge/cli/internal/ui"
	"github.com/rowforge/rowforge/cli/internal/watch"
	"github.com/rowforge/rowforge/config"
	"github.com/rowforge/rowforge/engine"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	var (
		specPath  string
		inputPath string
		outPath   string
		dsn       string
		watchMode bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run a load",
		Long:  "Read rows from the input file and load them into the target table",
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func() error {
				return runLoad(cmd.Context(), specPath, inputPath, outPath, dsn, verbose)
			}
			if !watchMode {
				return run()
			}
			return runWatch(run, specPath, inputPath)
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "Path to the load spec (default rowforge.yaml)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the input rows file (- for stdin)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the execution summary as JSON to this file")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Override the spec's connection string")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Rerun the load when the input or spec changes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runLoad(ctx context.Context, specPath, inputPath, outPath, dsn string, verbose bool) error {
	plan, err := loadPlan(specPath)
	if err != nil {
		return err
	}
	if dsn != "" {
		plan.DSN = dsn
	}
	if plan.DSN == "" {
		return fmt.Errorf("no connection string: set dsn in the spec, ROWFORGE_DSN, or --dsn")
	}

	rows, err := readRows(inputPath)
	if err != nil {
		return err
	}

	sess, err := engine.Open(plan.Provider, plan.DSN, engine.WithLogger(ui.Logger{Verbose: verbose}))
	if err != nil {
		return err
	}
	defer sess.Close()

	loader := plan.Loader(sess)

	bar, err := ui.NewProgressBar("Loading "+plan.Table, len(rows))
	if err == nil && bar != nil {
		loader.Progress = func(done, total int) {
			if done > bar.Current {
				bar.Add(done - bar.Current)
			}
		}
	}

	summary, runErr := loader.Run(ctx, rows)
	if bar != nil {
		bar.Stop()
	}

	if summary != nil {
		ui.PrintSummary(summary)
		if len(summary.Rows) > 0 && verbose {
			ui.PrintOutcomes(summary.Rows)
		}
		if outPath != "" {
			if err := writeSummary(outPath, summary); err != nil {
				ui.PrintError("failed to write summary: %v", err)
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("load aborted: %w", runErr)
	}
	ui.PrintSuccess("Loaded %d rows into %s", summary.Counts.Total, plan.Table)
	return nil
}

func runWatch(run func() error, specPath, inputPath string) error {
	if inputPath == "-" {
		return fmt.Errorf("watch mode needs a file input, not stdin")
	}
	if specPath == "" {
		specPath = "rowforge.yaml"
	}

	w, err := watch.New(func() error {
		if err := run(); err != nil {
			ui.PrintError("%v", err)
		}
		return nil
	}, inputPath, specPath)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ui.PrintInfo("Watching %s and %s, press Ctrl+C to stop", inputPath, specPath)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func loadPlan(specPath string) (*config.Plan, error) {
	spec, err := config.Load(specPath)
	if err != nil {
		return nil, err
	}
	return spec.Compile()
}

func readRows(inputPath string) ([]interface{}, error) {
	if inputPath == "-" {
		return input.Read(os.Stdin)
	}
	return input.ReadFile(config.AppFs, inputPath)
}

func writeSummary(path string, summary *engine.ExecutionSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
