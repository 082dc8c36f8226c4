// Package runner executes command graphs against a Driver.
//
// It is the reference executor for graphs built by package orm: leaves run
// in order inside one transaction, each leaf's Execute fires before the
// next write so generated keys reach dependent payloads and scopes. A
// successful commit completes the root; any failure rolls back both the
// transaction and the root.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/ir"
)

const tracerName = "github.com/roach88/uow/internal/runner"

// Driver opens write transactions.
type Driver interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one write transaction. Insert returns the store-generated key, or
// the explicit key when row carries one.
type Tx interface {
	Insert(ctx context.Context, database, table string, row ir.Row) (ir.Value, error)
	Update(ctx context.Context, database, table string, row, scope ir.Row) (int64, error)
	Delete(ctx context.Context, database, table string, scope ir.Row) (int64, error)
	Commit() error
	Rollback() error
}

// Tokened is implemented by transactions that record the run token.
type Tokened interface {
	SetToken(token string)
}

// Report summarises a run.
type Report struct {
	Token    string
	Executed int
	// Skipped counts empty updates that needed no write.
	Skipped int
}

// Runner executes command graphs.
type Runner struct {
	driver  Driver
	gen     TokenGenerator
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithGenerator sets the run token generator. Default: UUIDv7Generator.
func WithGenerator(g TokenGenerator) Option {
	return func(r *Runner) { r.gen = g }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer sets the tracer. Default: the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner writing through driver.
func New(driver Driver, opts ...Option) *Runner {
	r := &Runner{
		driver: driver,
		gen:    UUIDv7Generator{},
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd in one transaction.
func (r *Runner) Run(ctx context.Context, cmd command.Command) (Report, error) {
	report := Report{Token: r.gen.Generate()}
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "uow.run", trace.WithAttributes(
		attribute.String("uow.token", report.Token),
		attribute.String("uow.root", string(cmd.Kind())),
	))
	defer span.End()

	err := r.run(ctx, cmd, &report)
	r.observe(err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("run failed", "token", report.Token, "error", err)
		return report, err
	}

	span.SetAttributes(
		attribute.Int("uow.executed", report.Executed),
		attribute.Int("uow.skipped", report.Skipped),
	)
	r.logger.Debug("run committed", "token", report.Token, "executed", report.Executed, "skipped", report.Skipped)
	return report, nil
}

func (r *Runner) run(ctx context.Context, cmd command.Command, report *Report) error {
	leaves := command.Leaves(cmd)

	tx, err := r.driver.Begin(ctx)
	if err != nil {
		r.abort(cmd, nil)
		return &ExecError{Code: ErrCodeBegin, Token: report.Token, Err: err}
	}
	if t, ok := tx.(Tokened); ok {
		t.SetToken(report.Token)
	}

	for _, leaf := range leaves {
		skipped, err := r.write(ctx, tx, leaf)
		if err != nil {
			r.abort(cmd, tx)
			var ee *ExecError
			if errors.As(err, &ee) {
				ee.Token = report.Token
				return ee
			}
			return &ExecError{Code: ErrCodeWrite, Token: report.Token, Kind: leaf.Kind(), Table: leaf.Table(), Err: err}
		}
		if skipped {
			report.Skipped++
		} else {
			report.Executed++
		}
	}

	if err := tx.Commit(); err != nil {
		r.abort(cmd, nil)
		return &ExecError{Code: ErrCodeCommit, Token: report.Token, Err: err}
	}
	if err := cmd.Complete(); err != nil {
		// The transaction is committed; hook failures are logged only.
		r.logger.Error("complete hooks failed", "token", report.Token, "error", err)
	}
	return nil
}

// write performs one leaf and fires its execute listeners.
func (r *Runner) write(ctx context.Context, tx Tx, leaf command.Leaf) (skipped bool, err error) {
	ctx, span := r.tracer.Start(ctx, "uow.write", trace.WithAttributes(
		attribute.String("uow.kind", string(leaf.Kind())),
		attribute.String("uow.database", leaf.Database()),
		attribute.String("uow.table", leaf.Table()),
	))
	defer span.End()

	var res command.Result
	switch c := leaf.(type) {
	case *command.Insert:
		res.InsertID, err = tx.Insert(ctx, c.Database(), c.Table(), c.Data())
		res.Affected = 1

	case *command.Update:
		if c.Empty() {
			skipped = true
			break
		}
		if err = resolved(c); err != nil {
			break
		}
		res.Affected, err = tx.Update(ctx, c.Database(), c.Table(), c.Data(), c.Scope())

	case *command.Delete:
		if err = resolved(c); err != nil {
			break
		}
		res.Affected, err = tx.Delete(ctx, c.Database(), c.Table(), c.Scope())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	if !skipped && r.metrics != nil {
		r.metrics.Writes.WithLabelValues(string(leaf.Kind())).Inc()
	}
	r.logger.Debug("write", "kind", leaf.Kind(), "table", leaf.Table(), "skipped", skipped)
	return skipped, leaf.Execute(res)
}

func (r *Runner) abort(cmd command.Command, tx Tx) {
	if tx != nil {
		if err := tx.Rollback(); err != nil {
			r.logger.Error("transaction rollback failed", "error", err)
		}
	}
	if err := cmd.Rollback(); err != nil {
		r.logger.Error("rollback hooks failed", "error", err)
	}
}

func (r *Runner) observe(err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	result := "committed"
	if err != nil {
		result = "rolled_back"
	}
	r.metrics.Runs.WithLabelValues(result).Inc()
	r.metrics.Duration.Observe(elapsed.Seconds())
}

// resolved fails when a scope column is still null.
func resolved(c command.Scoped) error {
	for col, v := range c.Scope() {
		if ir.IsNull(v) {
			return &ExecError{
				Code:  ErrCodeUnresolvedScope,
				Kind:  c.Kind(),
				Table: c.Table(),
				Err:   errUnresolved(col),
			}
		}
	}
	return nil
}
