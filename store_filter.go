package entity

import (
	"time"
)

// FilterFunc reports whether item, stored under id, stays visible.
type FilterFunc func(item any, id any, params any) bool

// Filter narrows the visible items to those fn accepts. The full collection
// is kept aside and comes back, with the same item references, on
// ClearFilter. An active filter is cleared silently first. While filtered,
// Add and Insert fail with ErrStoreFiltered; Replace and removals also apply
// to the items kept aside.
func (s *Store) Filter(fn FilterFunc, params any) {
	if fn == nil {
		return
	}
	if s.filtered {
		s.ClearFilter(true)
	}
	s.filtered = true
	s.filterFn = fn
	s.filterParams = params
	s.events.Trigger("beforefilter", s)
	s.events.SuspendAll()

	s.filterBackup = &storeSnapshot{
		items: s.items,
		keys:  s.keys,
		index: s.index,
	}
	s.items = nil
	s.keys = nil
	s.index = map[string]any{}
	for i, item := range s.filterBackup.items {
		id := s.filterBackup.keys[i]
		if !fn(item, id, params) {
			continue
		}
		s.items = append(s.items, item)
		s.keys = append(s.keys, id)
		if key, ok := KeyOf(id); ok {
			s.index[key] = item
		}
	}

	s.events.ResumeAll()
	s.events.Trigger("filter", s)
}

// FilterExpr filters with an expression evaluated against every item's
// fields by evaluator, or by the registry's engine when evaluator is nil. params
// are bound as args. A compile or evaluation error leaves the store as it
// was.
func (s *Store) FilterExpr(expression string, evaluator Evaluator, params map[string]any) error {
	if evaluator == nil {
		evaluator = s.registry.Evaluator()
	}
	engine := evaluatorEngineName(evaluator)
	started := time.Now()
	rule, err := evaluator.Compile(expression)
	if err != nil {
		err = wrapEvaluationError(engine, expression, s.model.Type(), err)
		s.logFilter(engine, started, err)
		return err
	}

	items, keys := s.items, s.keys
	if s.filtered && s.filterBackup != nil {
		items, keys = s.filterBackup.items, s.filterBackup.keys
	}
	for i, item := range items {
		if _, err := rule.Evaluate(exprContext(item, keys[i], params)); err != nil {
			err = wrapEvaluationError(engine, expression, s.model.Type(), err)
			s.logFilter(engine, started, err)
			return err
		}
	}

	s.Filter(func(item any, id any, args any) bool {
		params, _ := args.(map[string]any)
		result, err := rule.Evaluate(exprContext(item, id, params))
		return err == nil && truthy(result)
	}, params)
	s.logFilter(engine, started, nil)
	return nil
}

func exprContext(item any, id any, params map[string]any) RuleContext {
	ctx := RuleContextOf(item, params)
	if ctx.ID == nil {
		ctx.ID = id
	}
	return ctx
}

func (s *Store) logFilter(engine string, started time.Time, err error) {
	s.registry.logger().Log(LogEvent{
		Component: "store",
		Action:    "filter." + engine,
		Type:      s.model.Type(),
		ID:        s.id,
		Duration:  time.Since(started),
		Err:       err,
	})
}

// ClearFilter restores the collection kept aside by Filter. With silent,
// beforeclearfilter and clearfilter are not fired.
func (s *Store) ClearFilter(silent bool) {
	if !s.filtered {
		return
	}
	if !silent {
		s.events.Trigger("beforeclearfilter", s)
	}
	s.events.SuspendAll()
	s.filtered = false
	if s.filterBackup != nil {
		s.items = s.filterBackup.items
		s.keys = s.filterBackup.keys
		s.index = s.filterBackup.index
	}
	s.filterBackup = nil
	s.filterFn = nil
	s.filterParams = nil
	s.events.ResumeAll()
	if !silent {
		s.events.Trigger("clearfilter", s)
	}
}
