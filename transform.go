package formstate

import (
	"context"
	"fmt"
	"strings"
)

// Transform adjusts the raw resolved value of a field before it is applied.
// raw may be Absent. Returning Absent leaves the field untouched.
type Transform func(ctx context.Context, f Field, raw Value) (Value, error)

// RecordFilter sees the freshly read storage record before a load pass uses
// it. It may return a replacement; keep=false cancels storage for the pass.
type RecordFilter func(ctx context.Context, record Record) (replacement Record, keep bool, err error)

// WithFieldTransform registers a load-time transform for the named field.
func WithFieldTransform(name string, fn Transform) Option {
	return func(cfg *config) {
		if name == "" || fn == nil {
			return
		}
		if cfg.transforms == nil {
			cfg.transforms = map[string]Transform{}
		}
		cfg.transforms[name] = fn
	}
}

// WithFieldExpression registers an expression transform for the named field.
// The expression sees value, present, kind, option, record and fragment; its
// result becomes the applied value, nil leaves the field untouched.
func WithFieldExpression(name, expr string) Option {
	return func(cfg *config) {
		if name == "" {
			return
		}
		if cfg.expressions == nil {
			cfg.expressions = map[string]string{}
		}
		cfg.expressions[name] = expr
	}
}

// WithRecordFilter installs a Go record filter.
func WithRecordFilter(fn RecordFilter) Option {
	return func(cfg *config) {
		cfg.recordFilter = fn
	}
}

// WithRecordFilterExpression installs an expression record filter. It sees
// record, fragment and storage_key. A map result replaces the record, true
// keeps it, false or nil cancels storage for the pass.
func WithRecordFilterExpression(expr string) Option {
	return func(cfg *config) {
		cfg.recordFilterExpr = expr
	}
}

type transformSet struct {
	form       string
	logger     Logger
	funcs      map[string]Transform
	exprs      map[string]*compiledExpression
	filter     RecordFilter
	filterExpr *compiledExpression
}

func newTransformSet(cfg *config) (*transformSet, error) {
	t := &transformSet{
		form:   cfg.storageKey,
		logger: cfg.logger,
		funcs:  cfg.transforms,
		filter: cfg.recordFilter,
	}
	if len(cfg.expressions) == 0 && strings.TrimSpace(cfg.recordFilterExpr) == "" {
		return t, nil
	}

	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	t.exprs = make(map[string]*compiledExpression, len(cfg.expressions))
	for name, expr := range cfg.expressions {
		compiled, err := compileExpression(evaluator, expr, name)
		if err != nil {
			return nil, err
		}
		t.exprs[name] = compiled
	}
	if strings.TrimSpace(cfg.recordFilterExpr) != "" {
		compiled, err := compileExpression(evaluator, cfg.recordFilterExpr, "")
		if err != nil {
			return nil, err
		}
		t.filterExpr = compiled
	}
	return t, nil
}

// apply runs the Go transform, then the expression, registered for f.
func (t *transformSet) apply(ctx context.Context, f Field, raw Value, record Record, frag Fragment) (Value, error) {
	value := raw
	if fn := t.funcs[f.Name]; fn != nil {
		out, err := safeTransform(ctx, fn, f, value)
		if err != nil {
			return Absent(), err
		}
		value = out
	}
	if compiled := t.exprs[f.Name]; compiled != nil {
		out, err := compiled.run(t.logger, t.form, RuleContext{
			Field: f.Name,
			Snapshot: map[string]any{
				"value":    value.Any(),
				"present":  !value.IsAbsent(),
				"kind":     f.Kind.String(),
				"option":   f.Option,
				"record":   record.Map(),
				"fragment": frag.Map(),
			},
		})
		if err != nil {
			return Absent(), err
		}
		converted, err := ValueOf(out)
		if err != nil {
			return Absent(), wrapEvaluationError(compiled.engine, compiled.expr, f.Name, err)
		}
		value = converted
	}
	return value, nil
}

func safeTransform(ctx context.Context, fn Transform, f Field, v Value) (out Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Absent()
			err = fmt.Errorf("formstate: transform for %q panicked: %v", f.Name, r)
		}
	}()
	return fn(ctx, f, v)
}

// filterRecord runs the record filters. keep=false cancels storage.
func (t *transformSet) filterRecord(ctx context.Context, record Record, frag Fragment) (Record, bool, error) {
	if t.filter != nil {
		replacement, keep, err := safeFilter(ctx, t.filter, record)
		if err != nil {
			return record, true, err
		}
		if !keep {
			return NewRecord(), false, nil
		}
		record = replacement
	}
	if t.filterExpr == nil {
		return record, true, nil
	}

	out, err := t.filterExpr.run(t.logger, t.form, RuleContext{
		Snapshot: map[string]any{
			"record":      record.Map(),
			"fragment":    frag.Map(),
			"storage_key": t.form,
		},
	})
	if err != nil {
		return record, true, err
	}
	switch typed := out.(type) {
	case nil:
		return NewRecord(), false, nil
	case bool:
		if !typed {
			return NewRecord(), false, nil
		}
		return record, true, nil
	case Record:
		return typed, true, nil
	case map[string]any:
		replacement, err := RecordFromMap(typed)
		if err != nil {
			return record, true, err
		}
		if len(typed) == 0 {
			return NewRecord(), false, nil
		}
		return replacement, true, nil
	default:
		return record, true, wrapEvaluationError(t.filterExpr.engine, t.filterExpr.expr, "",
			fmt.Errorf("record filter returned %T", out))
	}
}

func safeFilter(ctx context.Context, fn RecordFilter, record Record) (out Record, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, keep = record, true
			err = fmt.Errorf("formstate: record filter panicked: %v", r)
		}
	}()
	return fn(ctx, record.Clone())
}
