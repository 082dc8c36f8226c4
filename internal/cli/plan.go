package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/uow/internal/harness"
	"github.com/roach88/uow/internal/ir"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <scenario.yaml>",
		Short: "Show the writes a scenario queues and executes",
		Long: `Run a scenario against a throwaway in-memory SQLite database and print,
step by step, the queued leaves and the writes each execute step journaled.

JSON output is the canonical plan snapshot used for golden files.

Exit codes:
  0 - Scenario ran and its assertions held
  1 - An assertion failed
  2 - Scenario could not be loaded or run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}
}

func runPlan(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	scenario, err := loadScenario(f, path)
	if err != nil {
		return err
	}

	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRun, "scenario failed to run", err)
	}

	data, err := harness.NewPlanSnapshot(scenario.Name, result).MarshalCanonical()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode plan", err)
	}

	if f.JSON() {
		if err := f.Success(json.RawMessage(data)); err != nil {
			return err
		}
	} else {
		writePlanText(cmd.OutOrStdout(), scenario.Name, result)
	}

	return assertionsExit(result)
}

func loadScenario(f *OutputFormatter, path string) (*harness.Scenario, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario not found: %s", path), nil)
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeScenario, "invalid scenario", err)
	}
	f.VerboseLog("Loaded scenario %s (%d steps)", scenario.Name, len(scenario.Steps))
	return scenario, nil
}

func assertionsExit(result *harness.Result) error {
	if result.Pass {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
}

func writePlanText(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", name)
	for _, s := range result.Steps {
		switch s.Op {
		case harness.OpStore, harness.OpDelete:
			fmt.Fprintf(w, "[%d] %s %s (%s)\n", s.Index, s.Op, s.Entity, s.Root)
			for _, l := range s.Leaves {
				fmt.Fprintf(w, "    %-6s %s.%s%s\n", l.Kind, l.Database, l.Table, rowSuffix(l.Data, l.Scope))
			}
		case harness.OpSet:
			fmt.Fprintf(w, "[%d] set %s\n", s.Index, s.Entity)
		case harness.OpExecute:
			fmt.Fprintf(w, "[%d] execute run=%s\n", s.Index, s.Token)
			for _, wr := range s.Writes {
				fmt.Fprintf(w, "    %-6s %s%s -> %s\n", wr.Op, wr.Table, rowSuffix(wr.Payload, wr.Scope), wr.Result)
			}
		}
	}

	if result.Pass {
		fmt.Fprintln(w, "✓ All assertions passed")
		return
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
}

func rowSuffix(data, scope ir.Row) string {
	var b strings.Builder
	if len(data) > 0 {
		b.WriteString(" ")
		b.WriteString(formatRow(data))
	}
	if len(scope) > 0 {
		b.WriteString(" where ")
		b.WriteString(formatRow(scope))
	}
	return b.String()
}

func formatRow(row ir.Row) string {
	data, err := ir.MarshalCanonical(row)
	if err != nil {
		return fmt.Sprintf("%v", map[string]ir.Value(row))
	}
	return string(data)
}
