package formstate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoEvaluator = errors.New("formstate: evaluator not configured")

// ErrUnknownEngine is returned by EvaluatorByName for unsupported names.
var ErrUnknownEngine = errors.New("formstate: unknown evaluator engine")

// EvaluatorByName builds one of the bundled evaluators: "expr" (default),
// "cel" or "js". The js engine needs the js_eval build tag.
func EvaluatorByName(name string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case "js", "javascript":
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: %w", ErrUnknownEngine, ErrJSUnavailable)
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// resolveEvaluator returns the configured evaluator or builds the default
// expr one from the configured cache and registry.
func (cfg *config) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

// compiledExpression pairs a compiled rule with its source for logging.
type compiledExpression struct {
	engine string
	expr   string
	rule   CompiledRule
}

func compileExpression(evaluator Evaluator, expr, field string) (*compiledExpression, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, wrapEvaluationError(evaluatorEngineName(evaluator), expr, field, fmt.Errorf("expression must not be empty"))
	}
	rule, err := evaluator.Compile(expr)
	if err != nil {
		return nil, wrapEvaluationError(evaluatorEngineName(evaluator), expr, field, err)
	}
	return &compiledExpression{engine: evaluatorEngineName(evaluator), expr: expr, rule: rule}, nil
}

// run evaluates the rule and logs the attempt.
func (c *compiledExpression) run(logger Logger, form string, ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	start := time.Now()
	value, evalErr := c.rule.Evaluate(ctx)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(c.engine, c.expr, ctx.Field, evalErr)
	level := LevelDebug
	if evalErr != nil {
		level = LevelWarn
	}
	logger.Log(LogEvent{
		Level:    level,
		Message:  "evaluate",
		Form:     form,
		Field:    ctx.Field,
		Engine:   c.engine,
		Expr:     c.expr,
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*formstate.exprEvaluator":
		return "expr"
	case "*formstate.celEvaluator":
		return "cel"
	case "*formstate.jsEvaluator", "formstate.missingJS":
		return "js"
	default:
		return "custom"
	}
}
