package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/uow/internal/harness"
	"github.com/roach88/uow/internal/runner"
	"github.com/roach88/uow/internal/store"
	"github.com/roach88/uow/internal/store/pgstore"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Driver   string
	DSN      string

	// Generator overrides the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Generator runner.TokenGenerator
}

// RunReport summarises a run.
type RunReport struct {
	Scenario string   `json:"scenario"`
	Driver   string   `json:"driver"`
	Runs     []string `json:"runs"`
	Writes   int      `json:"writes"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scenario against a database",
		Long: `Execute a scenario against a persistent database, creating the schema's
tables if needed. Each execute step commits one transaction; SQLite
databases journal every write under the run token.

Defaults come from UOW_DB, UOW_DRIVER and UOW_PG_DSN.

Example:
  uow run --db ./uow.db scenarios/blog.yaml
  uow run --driver postgres --dsn postgres://localhost/uow scenarios/blog.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $UOW_DB)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "sqlite or postgres (default $UOW_DRIVER)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string (default $UOW_PG_DSN)")

	return cmd
}

// applyEnv fills unset flags from the environment.
func (o *RunOptions) applyEnv() {
	if o.Database == "" {
		o.Database = o.Env.DB
	}
	if o.Driver == "" {
		o.Driver = o.Env.Driver
	}
	if o.Driver == "" {
		o.Driver = "sqlite"
	}
	if o.DSN == "" {
		o.DSN = o.Env.PGDSN
	}
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	opts.applyEnv()

	if !slices.Contains(Drivers, opts.Driver) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown driver %q: must be one of %v", opts.Driver, Drivers), nil)
	}

	scenario, err := loadScenario(f, path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	target, closeTarget, err := openTarget(ctx, opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer closeTarget()

	gen := opts.Generator
	if gen == nil {
		gen = runner.UUIDv7Generator{}
	}

	slog.Info("running scenario", "scenario", scenario.Name, "driver", opts.Driver)
	result, err := harness.Run(ctx, scenario,
		harness.WithTarget(target),
		harness.WithLogger(slog.Default()),
		harness.WithRunnerOptions(runner.WithGenerator(gen)),
	)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRun, "scenario failed to run", err)
	}

	report := RunReport{
		Scenario: scenario.Name,
		Driver:   opts.Driver,
		Runs:     []string{},
		Pass:     result.Pass,
		Errors:   result.Errors,
	}
	for _, s := range result.Steps {
		if s.Op == harness.OpExecute {
			report.Runs = append(report.Runs, s.Token)
			report.Writes += len(s.Writes)
		}
	}
	slog.Debug("scenario finished", "scenario", scenario.Name, "runs", len(report.Runs), "pass", report.Pass)

	if f.JSON() {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Scenario %s: %d run(s) committed on %s\n", report.Scenario, len(report.Runs), report.Driver)
		for _, token := range report.Runs {
			fmt.Fprintf(w, "  run %s\n", token)
		}
		if report.Pass {
			fmt.Fprintln(w, "✓ All assertions passed")
		}
		for _, e := range report.Errors {
			fmt.Fprintf(w, "✗ %s\n", e)
		}
	}
	return assertionsExit(result)
}

// openTarget opens the configured database.
func openTarget(ctx context.Context, opts *RunOptions) (harness.Target, func(), error) {
	switch opts.Driver {
	case "postgres":
		if opts.DSN == "" {
			return nil, nil, fmt.Errorf("--dsn or UOW_PG_DSN is required for the postgres driver")
		}
		st, err := pgstore.Open(ctx, opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		if opts.Database == "" {
			return nil, nil, fmt.Errorf("--db or UOW_DB is required for the sqlite driver")
		}
		st, err := store.Open(opts.Database)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				slog.Error("error closing database", "error", err)
			}
		}, nil
	}
}
