package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/runner"
	"github.com/roach88/uow/internal/schema"
	"github.com/roach88/uow/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Token    string // optional - specific run only
}

// JournalWrite is one journaled write in CLI output.
type JournalWrite struct {
	Seq         int64  `json:"seq"`
	Token       string `json:"token"`
	Op          string `json:"op"`
	Database    string `json:"database"`
	Table       string `json:"table"`
	Payload     ir.Row `json:"payload,omitempty"`
	Scope       ir.Row `json:"scope,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Result      string `json:"result"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled writes",
		Long: `List the writes journaled in a SQLite database, in commit order.

Examples:
  uow journal --db ./uow.db
  uow journal --db ./uow.db --token 0190a6c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $UOW_DB)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "only this run")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Database == "" {
		opts.Database = opts.Env.DB
	}
	if opts.Database == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--db or UOW_DB is required", nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ReadJournal(cmd.Context(), opts.Token)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read journal", err)
	}

	writes := make([]JournalWrite, len(entries))
	for i, e := range entries {
		writes[i] = JournalWrite{
			Seq: e.Seq, Token: e.Token, Op: e.Op, Database: e.Database, Table: e.Table,
			Payload: e.Payload, Scope: e.Scope, Fingerprint: e.Fingerprint, Result: e.Result.String(),
		}
	}

	if f.JSON() {
		return f.Success(writes)
	}
	w := cmd.OutOrStdout()
	if len(writes) == 0 {
		fmt.Fprintln(w, "No writes journaled.")
		return nil
	}
	for _, jw := range writes {
		fmt.Fprintf(w, "%6d %s %-6s %s.%s%s -> %s\n",
			jw.Seq, jw.Token, jw.Op, jw.Database, jw.Table, rowSuffix(jw.Payload, jw.Scope), jw.Result)
	}
	return nil
}

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Into     string
	Schema   string
	Token    string // optional - every run when empty
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Runs   []string `json:"runs"`
	Writes int      `json:"writes"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-apply journaled runs to another database",
		Long: `Re-apply the journaled writes of one run, or of every run in order, to
another SQLite database. Each run is applied in its own transaction with
the original keys; the target journals the writes under the same tokens.

Exit codes:
  0 - Every run replayed
  2 - Command error (database not found, a write failed, etc.)

Examples:
  uow replay --db ./uow.db --into ./copy.db --schema blog.cue
  uow replay --db ./uow.db --into ./copy.db --schema blog.cue --token run-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "source SQLite database (default $UOW_DB)")
	cmd.Flags().StringVar(&opts.Into, "into", "", "target SQLite database (required)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema creating the target tables (required)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "only this run")
	_ = cmd.MarkFlagRequired("into")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if opts.Database == "" {
		opts.Database = opts.Env.DB
	}
	if opts.Database == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--db or UOW_DB is required", nil)
	}

	reg, err := schema.CompileFile(opts.Schema)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, "schema invalid", err)
	}

	src, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open source database", err)
	}
	defer src.Close()

	dst, err := store.Open(opts.Into)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open target database", err)
	}
	defer dst.Close()

	if err := dst.EnsureTables(ctx, reg); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to create target tables", err)
	}
	// Replayed inserts must key source tables the way the schema does.
	if err := src.EnsureTables(ctx, reg); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read source tables", err)
	}

	tokens := []string{opts.Token}
	if opts.Token == "" {
		if tokens, err = src.Tokens(ctx); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
		}
	}

	result := ReplayResult{Runs: []string{}}
	for _, token := range tokens {
		n, err := replayRun(cmd, src, dst, token)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeRun, fmt.Sprintf("replay of run %s failed", token), err)
		}
		f.VerboseLog("Replayed run %s (%d writes)", token, n)
		result.Runs = append(result.Runs, token)
		result.Writes += n
	}

	if f.JSON() {
		return f.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Replayed %d run(s), %d write(s) into %s\n", len(result.Runs), result.Writes, opts.Into)
	return nil
}

// replayRun applies one run inside its own target transaction.
func replayRun(cmd *cobra.Command, src, dst *store.Store, token string) (int, error) {
	ctx := cmd.Context()
	tx, err := dst.Begin(ctx)
	if err != nil {
		return 0, err
	}
	if t, ok := tx.(runner.Tokened); ok {
		t.SetToken(token)
	}

	n, err := src.Replay(ctx, token, tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
