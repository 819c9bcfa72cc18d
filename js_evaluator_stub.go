//go:build !js_eval

package entity

// NewJSEvaluator returns an evaluator whose every call fails with
// ErrJSUnavailable. Build with -tags js_eval for the goja engine.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSEvaluatorConfig(opts)
	return jsUnavailable{}
}

type jsUnavailable struct{}

func (jsUnavailable) Evaluate(RuleContext, string) (any, error) {
	return nil, wrapEvaluatorError("js", ErrJSUnavailable)
}

func (jsUnavailable) Compile(string, ...CompileOption) (CompiledRule, error) {
	return nil, wrapEvaluatorError("js", ErrJSUnavailable)
}

func (jsUnavailable) engine() string {
	return "js"
}

func jsEvaluatorAvailable() bool {
	return false
}
