// Package ui provides terminal output helpers for the rowforge CLI.
package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/rowforge/rowforge/engine"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	successColor.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	warningColor.Printf("⚠ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	infoColor.Printf("ℹ "+format+"\n", args...)
}

// NewProgressBar creates a progress bar sized to the row count.
func NewProgressBar(title string, total int) (*pterm.ProgressbarPrinter, error) {
	return pterm.DefaultProgressbar.WithTotal(total).WithTitle(title).Start()
}

// PrintSummary renders the execution summary as a table.
func PrintSummary(summary *engine.ExecutionSummary) {
	data := pterm.TableData{
		{"Inserted", strconv.Itoa(summary.Counts.Inserted)},
		{"Updated", strconv.Itoa(summary.Counts.Updated)},
		{"Skipped", strconv.Itoa(summary.Counts.Skipped)},
		{"Errors", strconv.Itoa(summary.Counts.Errors)},
		{"Total", strconv.Itoa(summary.Counts.Total)},
	}
	if summary.FirstID != nil {
		data = append(data, []string{"First ID", fmt.Sprint(summary.FirstID)})
	}
	if summary.LastID != nil {
		data = append(data, []string{"Last ID", fmt.Sprint(summary.LastID)})
	}
	data = append(data, []string{"Duration", summary.Timings.Duration.String()})
	pterm.DefaultTable.WithData(data).Render()
}

// Logger adapts terminal output to the engine logging interface. Args are
// alternating key/value pairs. Debug output is emitted only in verbose mode.
type Logger struct {
	Verbose bool
}

func (l Logger) Debug(msg string, args ...interface{}) {
	if l.Verbose {
		pterm.Debug.Println(formatLog(msg, args))
	}
}

func (l Logger) Info(msg string, args ...interface{}) {
	pterm.Info.Println(formatLog(msg, args))
}

func (l Logger) Warn(msg string, args ...interface{}) {
	pterm.Warning.Println(formatLog(msg, args))
}

func (l Logger) Error(msg string, args ...interface{}) {
	pterm.Error.Println(formatLog(msg, args))
}

func formatLog(msg string, args []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

// PrintOutcomes renders per-row outcomes as a table.
func PrintOutcomes(rows []engine.RowOutcome) {
	data := pterm.TableData{{"#", "Action", "ID"}}
	for i, row := range rows {
		id := ""
		if row.ID != nil {
			id = fmt.Sprint(row.ID)
		}
		data = append(data, []string{strconv.Itoa(i + 1), row.Action.String(), id})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
