package entity

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache replaces the evaluator's private program cache.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if cache != nil {
			e.cache = cache
		}
	}
}

// CELWithFunctionRegistry exposes the registry's functions by name, with one
// or two arguments, and through call(name, [args]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// CELWithModel declares the model's typed fields with their CEL types: int,
// double, bool and timestamp. Expressions are then type-checked against the
// field table, and a field whose value failed to restore is null.
func CELWithModel(model *Model) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if model == nil {
			return
		}
		e.fieldTypes = map[string]*celgo.Type{}
		for name, field := range model.Fields() {
			e.fieldTypes[name] = celFieldType(field.Type)
		}
	}
}

func celFieldType(t FieldType) *celgo.Type {
	switch t {
	case FieldInt:
		return celgo.IntType
	case FieldDouble:
		return celgo.DoubleType
	case FieldBool:
		return celgo.BoolType
	case FieldDate:
		return celgo.TimestampType
	default:
		return celgo.DynType
	}
}

var anySliceType = reflect.TypeOf([]any{})

type celEvaluator struct {
	cache      ProgramCache
	registry   *FunctionRegistry
	fieldTypes map[string]*celgo.Type
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. CEL declares its
// variables up front, so a program is compiled per expression and field set
// and cached.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{cache: NewProgramCache()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	program, err := e.program(expression, ctx.snapshot())
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.label(), err)
	}
	out, _, err := program.Eval(ctx.variables())
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.label(), err)
	}
	return out.Value(), nil
}

// Compile checks expression against the reserved variables and, with
// CELWithModel, the field table. References to other fields are resolved
// per entity at evaluation.
func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	if _, err := e.program(expression, nil); err != nil && !strings.Contains(err.Error(), "undeclared reference") {
		return nil, wrapEvaluationError("cel", expression, "", err)
	}
	return celRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) engine() string {
	return "cel"
}

type celRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r celRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expression)
}

func (e *celEvaluator) program(expression string, fields map[string]any) (celgo.Program, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, reserved := reservedVariables[name]; !reserved {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	key := "cel:" + expression + "|" + strings.Join(names, ",")
	if cached, ok := e.cache.Get(key); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}

	env, err := celgo.NewEnv(e.declarations(names)...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, program)
	return program, nil
}

func (e *celEvaluator) declarations(fields []string) []celgo.EnvOption {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("record", celgo.DynType),
	}
	declared := map[string]bool{}
	for name, typ := range e.fieldTypes {
		if _, reserved := reservedVariables[name]; !reserved {
			opts = append(opts, celgo.Variable(name, typ))
			declared[name] = true
		}
	}
	for _, name := range fields {
		if !declared[name] {
			opts = append(opts, celgo.Variable(name, celgo.DynType))
		}
	}
	if e.registry == nil {
		return opts
	}
	opts = append(opts, celgo.Function("call", celgo.Overload(
		"call_dyn",
		[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
		celgo.DynType,
		celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
	)))
	for _, name := range e.registry.Names() {
		opts = append(opts, celgo.Function(name,
			celgo.Overload(name+"_dyn", []*celgo.Type{celgo.DynType}, celgo.DynType,
				celgo.UnaryBinding(func(arg ref.Val) ref.Val {
					return e.invoke(name, arg.Value())
				})),
			celgo.Overload(name+"_dyn_dyn", []*celgo.Type{celgo.DynType, celgo.DynType}, celgo.DynType,
				celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return e.invoke(name, lhs.Value(), rhs.Value())
				})),
		))
	}
	return opts
}

// callBinding serves call("name", [args...]).
func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("entity: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("entity: call name must be string")
		}
		var args []any
		if len(values) > 1 {
			if native, err := values[1].ConvertToNative(anySliceType); err == nil {
				args, _ = native.([]any)
			}
		}
		return e.invoke(name, args...)
	}
}

func (e *celEvaluator) invoke(name string, args ...any) ref.Val {
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
