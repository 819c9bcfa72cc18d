package entity

import (
	"sync"
	"time"
)

// RuleContext carries the inputs of an expression evaluated against an
// entity. Snapshot holds the entity's fields, which are bound as top-level
// variables.
type RuleContext struct {
	Snapshot  any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	ModelType string
	ID        any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.ModelType != "" {
		return ctx.ModelType
	}
	return "record"
}

// binding is exposed to expressions as the "record" variable.
func (ctx RuleContext) binding() map[string]any {
	return map[string]any{
		"type": ctx.ModelType,
		"id":   ctx.ID,
	}
}

func (ctx RuleContext) snapshot() map[string]any {
	if m, ok := ctx.Snapshot.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// reservedVariables are bound by every engine and win over entity fields of
// the same name.
var reservedVariables = map[string]struct{}{
	"now": {}, "args": {}, "metadata": {}, "record": {},
}

// variables binds the entity fields as top-level names next to now, args,
// metadata and record.
func (ctx RuleContext) variables() map[string]any {
	fields := ctx.snapshot()
	vars := make(map[string]any, len(fields)+len(reservedVariables))
	for key, value := range fields {
		vars[key] = value
	}
	vars["now"] = ctx.timestamp()
	vars["args"] = ctx.Args
	vars["metadata"] = ctx.Metadata
	vars["record"] = ctx.binding()
	return vars
}

// RuleContextOf builds the context of item: a record's data, type and id or
// a raw map as is.
func RuleContextOf(item any, args map[string]any) RuleContext {
	ctx := RuleContext{Args: args}
	switch v := item.(type) {
	case *Record:
		ctx.Snapshot = v.GetData()
		ctx.ModelType = v.Model().Type()
		ctx.ID = v.ID()
	case map[string]any:
		ctx.Snapshot = v
	}
	return ctx
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapProgramCache is an unbounded ProgramCache safe for concurrent use.
type MapProgramCache struct {
	programs sync.Map
}

// NewProgramCache returns an empty MapProgramCache.
func NewProgramCache() *MapProgramCache {
	return &MapProgramCache{}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *MapProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}
