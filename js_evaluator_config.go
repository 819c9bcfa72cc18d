package entity

import "errors"

// ErrJSUnavailable is returned by the JS evaluator of builds without the
// js_eval tag.
var ErrJSUnavailable = errors.New("entity: js evaluator requires the js_eval build tag")

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsEvaluatorConfig)

type jsEvaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSWithProgramCache caches compiled goja programs by expression.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes the registry's functions as globals and
// through call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

// JSAvailable reports whether this build carries the goja engine.
func JSAvailable() bool {
	return jsEvaluatorAvailable()
}

func newJSEvaluatorConfig(opts []JSEvaluatorOption) jsEvaluatorConfig {
	cfg := jsEvaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
