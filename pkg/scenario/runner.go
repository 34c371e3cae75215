// Package scenario runs ownership scripts: small S-expression programs that
// create objects behind shared, weak and unique handles, pass the handles
// around, and check counts and destruction as they go.
//
//	(make a 42)
//	(weak w a)
//	(expect-count a 1)
//	(reset a)
//	(expect-expired w true)
package scenario

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"rcptr_go/pkg/ast"
	"rcptr_go/pkg/memory"
	"rcptr_go/pkg/parser"
)

// Report summarizes one script run
type Report struct {
	// Statements executed, including the failing one
	Statements int
	// Destroyed lists object values in destruction order
	Destroyed []int64
	// Stats is the change in block counters over the run
	Stats memory.Stats
	// Failures holds the expectations that did not hold
	Failures *multierror.Error
}

// Err returns the collected expectation failures, nil if all held
func (r *Report) Err() error {
	return r.Failures.ErrorOrNil()
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger statements are traced to
func WithLogger(l logr.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithOutput sets where print and destruction events are written
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithFailFast stops a run at the first failed expectation
func WithFailFast(on bool) Option {
	return func(r *Runner) { r.failFast = on }
}

// Runner executes statements against a set of named handles. Bindings
// persist across Exec calls until Close.
type Runner struct {
	log      logr.Logger
	out      io.Writer
	failFast bool

	env       map[string]any
	destroyed map[int64]int
	seen      map[*Object]bool
	report    *Report
	start     memory.Stats
}

// NewRunner returns a runner with no bindings
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		log: logr.Discard(),
		out: io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithName("scenario")
	r.resetState()
	return r
}

func (r *Runner) resetState() {
	r.env = make(map[string]any)
	r.destroyed = make(map[int64]int)
	r.seen = make(map[*Object]bool)
	r.report = &Report{}
	r.start = memory.ReadStats()
}

// Run parses src, executes every statement and releases the remaining
// bindings. The returned error covers parse errors and malformed
// statements; failed expectations are reported through Report.Err, or
// returned directly under fail-fast.
func (r *Runner) Run(src string) (*Report, error) {
	exprs, err := parser.ParseAllString(src)
	if err != nil {
		return nil, errors.Wrap(err, "parse script")
	}
	var runErr error
	for _, expr := range exprs {
		if runErr = r.Exec(expr); runErr != nil {
			break
		}
	}
	report := r.Close()
	return report, runErr
}

// Exec runs a single statement
func (r *Runner) Exec(expr *ast.Value) error {
	r.report.Statements++
	if !ast.IsCell(expr) || !ast.IsSym(expr.Car) {
		return r.stmtError(expr, errors.New("statement must be a list starting with a symbol"))
	}
	h, ok := statements[expr.Car.Str]
	if !ok {
		return r.stmtError(expr, errors.Errorf("unknown statement %q", expr.Car.Str))
	}
	args := ast.ListToSlice(expr.Cdr)
	if len(args) < h.minArgs || len(args) > h.maxArgs {
		return r.stmtError(expr, errors.Errorf("%s takes %s, got %d", expr.Car.Str, h.arity(), len(args)))
	}
	r.log.V(1).Info("exec", "line", expr.Line, "stmt", expr.String())
	if err := h.run(r, expr, args); err != nil {
		if _, isFailure := err.(*expectationError); isFailure {
			return err
		}
		return r.stmtError(expr, err)
	}
	return nil
}

// Close releases every binding in name order and returns the run's report.
// The runner is empty and reusable afterwards.
func (r *Runner) Close() *Report {
	names := make([]string, 0, len(r.env))
	for name := range r.env {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		releaseHandle(r.env[name])
		delete(r.env, name)
	}

	report := r.report
	report.Stats = memory.ReadStats().Sub(r.start)
	r.log.Info("run finished",
		"statements", report.Statements,
		"destroyed", len(report.Destroyed),
		"failures", len(report.Failures.WrappedErrors()),
		"liveBlocks", report.Stats.LiveBlocks())
	r.resetState()
	return report
}

// Bindings lists the bound handle names in order
func (r *Runner) Bindings() []string {
	names := make([]string, 0, len(r.env))
	for name := range r.env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) stmtError(expr *ast.Value, err error) error {
	return errors.Wrapf(err, "line %d: %s", expr.Line, expr.String())
}

// expectationError is a failed check, kept apart from malformed statements
type expectationError struct {
	line int
	msg  string
}

func (e *expectationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.line, e.msg)
}

// fail records a failed expectation. Under fail-fast the failure is also
// returned to stop the run.
func (r *Runner) fail(expr *ast.Value, format string, args ...interface{}) error {
	err := &expectationError{line: expr.Line, msg: fmt.Sprintf(format, args...)}
	r.report.Failures = multierror.Append(r.report.Failures, err)
	r.log.Info("expectation failed", "line", expr.Line, "reason", err.msg)
	if r.failFast {
		return err
	}
	return nil
}

func (r *Runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Runner) recordDestroy(o *Object) {
	if r.seen[o] {
		r.report.Failures = multierror.Append(r.report.Failures,
			errors.Errorf("object %d destroyed twice", o.Value))
	}
	r.seen[o] = true
	r.destroyed[o.Value]++
	r.report.Destroyed = append(r.report.Destroyed, o.Value)
	r.printf("destroy %d", o.Value)
}

func (r *Runner) newObject(v int64) Object {
	return newObject(v, r.recordDestroy)
}

// bind stores h under name, releasing whatever the name held before
func (r *Runner) bind(name string, h any) {
	if old, ok := r.env[name]; ok {
		releaseHandle(old)
	}
	r.env[name] = h
}

func (r *Runner) lookup(name string) (any, error) {
	h, ok := r.env[name]
	if !ok {
		return nil, errors.Errorf("unbound handle %q", name)
	}
	return h, nil
}

func releaseHandle(h any) {
	switch h := h.(type) {
	case *sharedObject:
		h.Reset()
	case *sharedBase:
		h.Reset()
	case *sharedPart:
		h.Reset()
	case *weakObject:
		h.Reset()
	case *uniqueObject:
		h.Reset(nil)
	}
}
