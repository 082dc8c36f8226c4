package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/uow/internal/schema"
)

// EntitySummary describes one compiled entity.
type EntitySummary struct {
	Role       string   `json:"role"`
	Database   string   `json:"database"`
	Table      string   `json:"table"`
	PrimaryKey string   `json:"primary_key"`
	Variants   []string `json:"variants,omitempty"`
	Relations  []string `json:"relations,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Entities []EntitySummary `json:"entities"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Compile a schema and report its entities",
		Long: `Compile a CUE entity schema and report every role with its table,
primary key and relations.

Exit codes:
  0 - Schema valid
  2 - File not found or schema invalid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("schema not found: %s", path), nil)
	}

	reg, err := schema.CompileFile(path)
	if err != nil {
		var ce *schema.CompileError
		if errors.As(err, &ce) {
			return f.Fail(ExitCommandError, ErrCodeSchema, ce.Error(), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeSchema, "schema invalid", err)
	}

	result := ValidationResult{Valid: true, Entities: summarize(reg)}
	if f.JSON() {
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Schema valid: %d entities\n", len(result.Entities))
	for _, e := range result.Entities {
		f.VerboseLog("  %s -> %s.%s (pk %s)", e.Role, e.Database, e.Table, e.PrimaryKey)
		if len(e.Relations) > 0 {
			f.VerboseLog("    relations: %s", strings.Join(e.Relations, ", "))
		}
	}
	return nil
}

func summarize(reg *schema.Registry) []EntitySummary {
	roles := reg.Roles()
	out := make([]EntitySummary, 0, len(roles))
	for _, role := range roles {
		def, err := reg.Lookup(role)
		if err != nil {
			continue
		}
		s := EntitySummary{
			Role:       role,
			Database:   def.Database,
			Table:      def.Table,
			PrimaryKey: def.PrimaryKey,
		}
		for alias, sub := range def.Variants {
			s.Variants = append(s.Variants, alias+"="+sub)
		}
		sort.Strings(s.Variants)
		for _, rel := range def.Relations {
			s.Relations = append(s.Relations, fmt.Sprintf("%s:%s->%s", rel.Name, rel.Type, rel.Target))
		}
		out = append(out, s)
	}
	return out
}
