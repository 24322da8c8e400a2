package formstate

import (
	"errors"
	"time"
)

// ErrJSUnavailable is returned by the js engine in builds without the
// js_eval tag.
var ErrJSUnavailable = errors.New("formstate: js evaluator requires the js_eval build tag")

// ErrJSTimeout is returned when a js field expression runs past its limit.
var ErrJSTimeout = errors.New("formstate: js evaluation timed out")

// DefaultJSTimeout bounds one js evaluation.
const DefaultJSTimeout = 250 * time.Millisecond

type jsSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSEvaluatorOption configures the goja evaluator.
type JSEvaluatorOption func(*jsSettings)

// JSWithProgramCache reuses compiled programs across evaluations.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsSettings) { s.cache = cache }
}

// JSWithFunctionRegistry exposes the registry functions by name and through
// call(name, ...). The registry is cloned.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsSettings) {
		if registry != nil {
			s.registry = registry.Clone()
		}
	}
}

// JSWithTimeout replaces DefaultJSTimeout. Zero or negative disables the limit.
func JSWithTimeout(d time.Duration) JSEvaluatorOption {
	return func(s *jsSettings) { s.timeout = d }
}

func newJSSettings(opts []JSEvaluatorOption) jsSettings {
	s := jsSettings{timeout: DefaultJSTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
