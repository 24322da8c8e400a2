//go:build !js_eval

package formstate

// NewJSEvaluator returns an evaluator whose every call fails with
// ErrJSUnavailable.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSSettings(opts)
	return missingJS{}
}

type missingJS struct{}

func (missingJS) Evaluate(RuleContext, string) (any, error) { return nil, ErrJSUnavailable }

func (missingJS) Compile(string) (CompiledRule, error) { return nil, ErrJSUnavailable }

func jsEvaluatorAvailable() bool {
	return false
}
