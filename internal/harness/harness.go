package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/mapper"
	"github.com/roach88/uow/internal/orm"
	"github.com/roach88/uow/internal/runner"
	"github.com/roach88/uow/internal/schema"
	"github.com/roach88/uow/internal/store"
)

// Target is where a scenario writes.
type Target interface {
	runner.Driver
	EnsureTables(ctx context.Context, reg *schema.Registry) error
}

// Journal is implemented by targets that record their writes.
type Journal interface {
	ReadJournal(ctx context.Context, token string) ([]store.JournalEntry, error)
}

// Tables is implemented by targets that can list table contents.
type Tables interface {
	Rows(ctx context.Context, table string) ([]ir.Row, error)
}

type config struct {
	target     Target
	runnerOpts []runner.Option
	logger     *slog.Logger
}

// Option configures Run.
type Option func(*config)

// WithTarget writes to t instead of a fresh in-memory SQLite store.
func WithTarget(t Target) Option {
	return func(c *config) { c.target = t }
}

// WithRunnerOptions passes options to the runner, after the harness's own.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(c *config) { c.runnerOpts = append(c.runnerOpts, opts...) }
}

// WithLogger sets the logger handed to the ORM and runner.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// harness holds the state of one scenario run.
type harness struct {
	scenario *Scenario
	target   Target
	orm      *orm.ORM
	runner   *runner.Runner
	records  map[string]*mapper.Record
	pending  []command.Command
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the schema and create its tables on the target
//  2. Build the declared entities
//  3. Run the steps in order, tracing queued leaves and journaled writes
//  4. Evaluate assertions
//
// A step error (a configuration error while queueing, a failed run)
// aborts the scenario and is returned; assertion failures are reported in
// the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg, err := schema.CompileFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	if cfg.target == nil {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		cfg.target = st
	}
	if err := cfg.target.EnsureTables(ctx, reg); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}

	o, err := orm.New(reg, orm.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}

	runnerOpts := append([]runner.Option{
		runner.WithGenerator(runner.NewFixedGenerator(tokens(scenario)...)),
		runner.WithLogger(cfg.logger),
	}, cfg.runnerOpts...)

	h := &harness{
		scenario: scenario,
		target:   cfg.target,
		orm:      o,
		runner:   runner.New(cfg.target, runnerOpts...),
		records:  make(map[string]*mapper.Record, len(scenario.Entities)),
	}
	if err := h.buildEntities(); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		trace, err := h.runStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op(), err)
		}
		result.Steps = append(result.Steps, trace)
	}

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a, result); err != nil {
			result.AddError(fmt.Sprintf("assertion %d: %s", i, err))
		}
	}
	return result, nil
}

// tokens returns one run token per execute step.
func tokens(s *Scenario) []string {
	var out []string
	for _, step := range s.Steps {
		if step.Execute {
			out = append(out, fmt.Sprintf("%s-%d", s.Token, len(out)+1))
		}
	}
	return out
}

// buildEntities creates every record, then wires relation references.
func (h *harness) buildEntities() error {
	names := sortedNames(h.scenario.Entities)
	for _, name := range names {
		decl := h.scenario.Entities[name]
		h.records[name] = mapper.NewRecord(decl.Role, decl.Fields)
	}
	for _, name := range names {
		if err := h.assign(h.records[name], nil, h.scenario.Entities[name].Relations); err != nil {
			return fmt.Errorf("entities.%s: %w", name, err)
		}
	}
	return nil
}

// assign writes fields and resolved relation values into rec.
func (h *harness) assign(rec *mapper.Record, fields, relations map[string]any) error {
	for k, v := range fields {
		rec.Set(k, v)
	}
	for rel, v := range relations {
		names, err := refNames(v)
		if err != nil {
			return fmt.Errorf("relation %s: %w", rel, err)
		}
		switch v.(type) {
		case nil:
			rec.Set(rel, nil)
		case string:
			rec.Set(rel, h.records[names[0]])
		default:
			list := make([]mapper.Entity, len(names))
			for i, n := range names {
				list[i] = h.records[n]
			}
			rec.Set(rel, list)
		}
	}
	return nil
}

func (h *harness) runStep(ctx context.Context, i int, step Step) (StepTrace, error) {
	trace := StepTrace{Index: i, Op: step.Op()}

	switch trace.Op {
	case OpStore:
		trace.Entity = step.Store
		cmd, err := h.orm.QueueStore(h.records[step.Store])
		if err != nil {
			return trace, err
		}
		h.queued(&trace, cmd)

	case OpDelete:
		trace.Entity = step.Delete
		cmd, err := h.orm.QueueDelete(h.records[step.Delete])
		if err != nil {
			return trace, err
		}
		h.queued(&trace, cmd)

	case OpSet:
		trace.Entity = step.Set.Entity
		if err := h.assign(h.records[step.Set.Entity], step.Set.Fields, step.Set.Relations); err != nil {
			return trace, err
		}

	case OpExecute:
		root := command.Command(command.NewNil())
		if len(h.pending) == 1 {
			root = h.pending[0]
		} else if len(h.pending) > 1 {
			group := command.NewGroup()
			for _, c := range h.pending {
				group.Add(c)
			}
			root = group
		}
		h.pending = nil

		report, err := h.runner.Run(ctx, root)
		if err != nil {
			return trace, err
		}
		trace.Token = report.Token

		writes, err := h.writes(ctx, report.Token)
		if err != nil {
			return trace, err
		}
		trace.Writes = writes
	}
	return trace, nil
}

func (h *harness) queued(trace *StepTrace, cmd command.Command) {
	trace.Root = string(cmd.Kind())
	for _, leaf := range command.Leaves(cmd) {
		lt := LeafTrace{Kind: string(leaf.Kind()), Database: leaf.Database(), Table: leaf.Table()}
		switch c := leaf.(type) {
		case *command.Insert:
			lt.Data = c.Data()
		case *command.Update:
			lt.Data = c.Data()
			lt.Scope = c.Scope()
		case *command.Delete:
			lt.Scope = c.Scope()
		}
		trace.Leaves = append(trace.Leaves, lt)
	}
	h.pending = append(h.pending, cmd)
}

// writes reads the journal of token when the target keeps one.
func (h *harness) writes(ctx context.Context, token string) ([]WriteTrace, error) {
	j, ok := h.target.(Journal)
	if !ok {
		return nil, nil
	}
	entries, err := j.ReadJournal(ctx, token)
	if err != nil {
		return nil, err
	}
	out := make([]WriteTrace, len(entries))
	for i, e := range entries {
		out[i] = WriteTrace{Op: e.Op, Table: e.Table, Payload: e.Payload, Scope: e.Scope, Result: e.Result}
	}
	return out, nil
}
