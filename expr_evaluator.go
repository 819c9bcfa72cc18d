package entity

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache caches compiled programs by expression.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes the registry's functions by name and
// through call(name, ...args).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
// Undeclared names compile, so one program serves entities with different
// field sets; a field missing from an entity evaluates to nil.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("expression must not be empty"))
	}
	key := "expr:" + expression
	if e.cache != nil {
		if program, ok := e.cache.Get(key); ok {
			if program, ok := program.(*exprvm.Program); ok {
				return &exprRule{evaluator: e, program: program, expression: expression}, nil
			}
		}
	}

	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, func(arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return &exprRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) engine() string {
	return "expr"
}

type exprRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	env := ctx.variables()
	if registry := r.evaluator.registry; registry != nil {
		if _, shadowed := env["call"]; !shadowed {
			env["call"] = func(name string, arguments ...any) (any, error) {
				return registry.Call(name, arguments...)
			}
		}
	}
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.label(), err)
	}
	return result, nil
}
