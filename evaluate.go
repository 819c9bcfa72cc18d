package entity

import (
	"fmt"
	"time"
)

// Evaluate runs expression against the record's fields using evaluator, or
// the registry's default engine when evaluator is nil.
func (r *Record) Evaluate(evaluator Evaluator, expression string, args map[string]any) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	if evaluator == nil {
		evaluator = r.model.registry.Evaluator()
	}
	ctx := RuleContextOf(r, args).withDefaults()
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expression)
	err = wrapEvaluationError(evaluatorEngineName(evaluator), expression, ctx.label(), err)
	r.model.registry.logger().Log(LogEvent{
		Component: "evaluator",
		Action:    evaluatorEngineName(evaluator),
		Type:      ctx.label(),
		ID:        r.id,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// namedEngine is implemented by the built-in evaluators.
type namedEngine interface {
	engine() string
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(namedEngine); ok {
		return named.engine()
	}
	if e == nil {
		return "unknown"
	}
	return "custom"
}
