// Package openapi describes the wire contract of entity models as an
// OpenAPI 3 document: each model's field table becomes a component schema and
// each URL endpoint becomes an operation.
package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-entity"
)

// Generator builds OpenAPI documents from models.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

var endpoints = []struct {
	scope  entity.Scope
	action entity.Action
}{
	{entity.ScopeRecord, entity.ActionLoad},
	{entity.ScopeRecord, entity.ActionCreate},
	{entity.ScopeRecord, entity.ActionSave},
	{entity.ScopeRecord, entity.ActionDelete},
	{entity.ScopeStore, entity.ActionLoad},
	{entity.ScopeStore, entity.ActionSave},
	{entity.ScopeStore, entity.ActionDelete},
}

// slot is a path and lowercase method pair.
type slot struct{ path, method string }

// operation is one model endpoint before operations sharing a path and
// method are merged.
type operation struct {
	id         string
	tag        string
	params     []map[string]any
	body       map[string]any
	response   map[string]any
	actionName string
}

// Generate returns the document for models. Endpoints served by function
// handlers have no URL and are left out. Endpoints sharing a URL and method,
// as a model with only default URLs produces, are merged into one operation
// whose body and response are a oneOf of the variants.
func (g *Generator) Generate(models ...*entity.Model) (map[string]any, error) {
	registry := newComponentRegistry()
	ops := map[slot][]operation{}
	var order []slot

	for _, model := range models {
		if model == nil {
			continue
		}
		ref := registry.register(model.Type(), g.modelSchema(model))
		for _, ep := range endpoints {
			req, err := model.BuildRequest(ep.scope, ep.action, nil, nil, nil)
			if err != nil || req.URL == "" {
				continue
			}
			key := slot{path: req.URL, method: strings.ToLower(req.Method)}
			if _, seen := ops[key]; !seen {
				order = append(order, key)
			}
			ops[key] = append(ops[key], g.operation(model, ep.scope, ep.action, req.IsRead(), ref))
		}
	}

	paths := map[string]any{}
	for _, key := range order {
		item, _ := paths[key.path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[key.path] = item
		}
		item[key.method] = g.render(ops[key])
	}

	document := map[string]any{
		"openapi": g.config.openAPIVersion,
		"info":    g.buildInfo(),
		"paths":   paths,
	}
	if tags := g.tags(ops, order); len(tags) > 0 {
		document["tags"] = tags
	}
	if len(g.config.servers) > 0 {
		servers := make([]any, len(g.config.servers))
		for i, url := range g.config.servers {
			servers[i] = map[string]any{"url": url}
		}
		document["servers"] = servers
	}
	if components := registry.componentsMap(); components != nil {
		document["components"] = map[string]any{"schemas": components}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (g *Generator) buildInfo() map[string]any {
	info := map[string]any{
		"title":   g.config.info.Title,
		"version": g.config.info.Version,
	}
	if g.config.info.Description != "" {
		info["description"] = g.config.info.Description
	}
	return info
}

// modelSchema maps the field table onto an object schema. The id field is
// added as an untyped property when the table does not declare it.
func (g *Generator) modelSchema(model *entity.Model) map[string]any {
	fields := model.Fields()
	properties := make(map[string]any, len(fields)+1)
	for name, field := range fields {
		properties[name] = fieldSchema(field)
	}
	idField := model.IDField(entity.ScopeRecord, entity.ActionLoad)
	if _, ok := properties[idField]; !ok {
		properties[idField] = map[string]any{}
	}
	schema := map[string]any{
		"type":        "object",
		"properties":  properties,
		"x-entity-id": idField,
	}
	if model.Type() != "" {
		schema["x-entity-type"] = model.Type()
	}
	if description := g.config.descriptions[model.Type()]; description != "" {
		schema["description"] = description
	}
	return schema
}

func fieldSchema(field entity.Field) map[string]any {
	switch field.Type {
	case entity.FieldInt:
		return map[string]any{"type": "integer"}
	case entity.FieldDouble:
		return map[string]any{"type": "number"}
	case entity.FieldBool:
		return map[string]any{"type": "boolean"}
	case entity.FieldDate:
		if field.Format == entity.TimestampFormat {
			return map[string]any{"type": "integer", "format": "int64", "description": "seconds since the Unix epoch"}
		}
		schema := map[string]any{"type": "string", "format": "date-time"}
		if field.Format != "" {
			schema["x-entity-format"] = field.Format
		}
		return schema
	default:
		return map[string]any{}
	}
}

func (g *Generator) operation(model *entity.Model, scope entity.Scope, action entity.Action, read bool, ref string) operation {
	prop := func(name string) string {
		s, _ := model.Prop(scope, action, name).(string)
		return s
	}
	idField := model.IDField(scope, action)
	dataProp, successProp, totalProp := prop("data"), prop("success"), prop("total")
	entityRef := map[string]any{"$ref": ref}

	// inputs lists the request parameters; payload is the body value that
	// travels under dataProp, or replaces the parameters when it is empty.
	inputs := map[string]map[string]any{}
	var payload map[string]any
	var result map[string]any

	switch {
	case scope == entity.ScopeRecord && action == entity.ActionLoad:
		inputs[idField] = map[string]any{}
		result = entityRef
	case scope == entity.ScopeRecord && action == entity.ActionDelete:
		inputs[idField] = map[string]any{}
	case scope == entity.ScopeRecord:
		if action == entity.ActionSave {
			inputs[idField] = map[string]any{}
		}
		payload = entityRef
		result = entityRef
	case action == entity.ActionLoad:
		inputs[model.StartParam()] = map[string]any{"type": "integer", "minimum": 0}
		inputs[model.LimitParam()] = map[string]any{"type": "integer", "minimum": 0}
		result = map[string]any{"type": "array", "items": entityRef}
	case action == entity.ActionSave:
		payload = map[string]any{"type": "object", "additionalProperties": entityRef}
		result = map[string]any{"type": "array", "items": entityRef}
	default:
		inputs[idField] = map[string]any{"type": "array", "items": map[string]any{}}
	}
	if extra, ok := model.Prop(scope, action, "extra").(map[string]any); ok {
		for name := range extra {
			if _, set := inputs[name]; !set {
				inputs[name] = map[string]any{}
			}
		}
	}

	op := operation{
		id:         fmt.Sprintf("%s.%s.%s", componentType(model), scope, action),
		tag:        componentType(model),
		actionName: string(scope) + "." + string(action),
	}
	if read {
		names := sortedKeys(inputs)
		for _, name := range names {
			op.params = append(op.params, map[string]any{
				"name":     name,
				"in":       "query",
				"required": name == idField && scope == entity.ScopeRecord,
				"schema":   inputs[name],
			})
		}
	} else {
		op.body = bodySchema(inputs, dataProp, payload)
	}
	op.response = envelope(result, dataProp, successProp, totalProp, scope == entity.ScopeStore && action == entity.ActionLoad)
	return op
}

func componentType(model *entity.Model) string {
	if model.Type() == "" {
		return "entity"
	}
	return model.Type()
}

// bodySchema mirrors how a Model builds a request body: parameters, with the
// payload under dataProp, or the payload alone without one.
func bodySchema(inputs map[string]map[string]any, dataProp string, payload map[string]any) map[string]any {
	if payload != nil && dataProp == "" {
		return payload
	}
	properties := make(map[string]any, len(inputs)+1)
	for name, schema := range inputs {
		properties[name] = schema
	}
	if payload != nil {
		properties[dataProp] = payload
	}
	return map[string]any{"type": "object", "properties": properties}
}

// envelope wraps result the way Model.Interpret unwraps it.
func envelope(result map[string]any, dataProp, successProp, totalProp string, withTotal bool) map[string]any {
	if dataProp == "" && successProp == "" && (!withTotal || totalProp == "") {
		if result == nil {
			return map[string]any{}
		}
		return result
	}
	properties := map[string]any{}
	if result != nil {
		if dataProp != "" {
			properties[dataProp] = result
		}
	}
	if successProp != "" {
		properties[successProp] = map[string]any{"type": "boolean"}
	}
	if withTotal && totalProp != "" {
		properties[totalProp] = map[string]any{"type": "integer"}
	}
	return map[string]any{"type": "object", "properties": properties}
}

func (g *Generator) render(ops []operation) map[string]any {
	ids := make([]string, len(ops))
	actions := make([]any, len(ops))
	var tags []any
	for i, op := range ops {
		ids[i] = op.id
		actions[i] = op.actionName
		if !containsTag(tags, op.tag) {
			tags = append(tags, op.tag)
		}
	}
	out := map[string]any{
		"operationId":     strings.Join(ids, "_or_"),
		"x-entity-action": actions,
		"responses": map[string]any{
			"200": map[string]any{
				"description": "OK",
				"content": map[string]any{
					g.config.contentType: map[string]any{"schema": oneOf(ops, func(op operation) map[string]any { return op.response })},
				},
			},
			"default": map[string]any{"description": "Transport failure or unsuccessful response"},
		},
	}

	if g.config.tags {
		out["tags"] = tags
	}

	params := map[string]map[string]any{}
	for _, op := range ops {
		for _, param := range op.params {
			name := param["name"].(string)
			if existing, ok := params[name]; ok {
				existing["required"] = existing["required"] == true && param["required"] == true
				continue
			}
			params[name] = cloneMap(param)
		}
	}
	if len(ops) > 1 {
		for name, param := range params {
			if !presentInAll(ops, name) {
				param["required"] = false
			}
		}
	}
	if len(params) > 0 {
		list := make([]any, 0, len(params))
		for _, name := range sortedKeys(params) {
			list = append(list, params[name])
		}
		out["parameters"] = list
	}

	var bodies []operation
	for _, op := range ops {
		if op.body != nil {
			bodies = append(bodies, op)
		}
	}
	if len(bodies) > 0 {
		out["requestBody"] = map[string]any{
			"required": true,
			"content": map[string]any{
				g.config.contentType: map[string]any{"schema": oneOf(bodies, func(op operation) map[string]any { return op.body })},
			},
		}
	}
	return out
}

// tags lists one tag per entity type in the order operations were found.
func (g *Generator) tags(ops map[slot][]operation, order []slot) []any {
	if !g.config.tags {
		return nil
	}
	var names []any
	for _, key := range order {
		for _, op := range ops[key] {
			if !containsTag(names, op.tag) {
				names = append(names, op.tag)
			}
		}
	}
	out := make([]any, len(names))
	for i, name := range names {
		tag := map[string]any{"name": name}
		if description := g.config.descriptions[name.(string)]; description != "" {
			tag["description"] = description
		}
		out[i] = tag
	}
	return out
}

func containsTag(tags []any, tag string) bool {
	for _, existing := range tags {
		if existing == tag {
			return true
		}
	}
	return false
}

func oneOf(ops []operation, pick func(operation) map[string]any) map[string]any {
	if len(ops) == 1 {
		return pick(ops[0])
	}
	variants := make([]any, len(ops))
	for i, op := range ops {
		variants[i] = pick(op)
	}
	return map[string]any{"oneOf": variants}
}

func presentInAll(ops []operation, name string) bool {
	for _, op := range ops {
		found := false
		for _, param := range op.params {
			if param["name"] == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

func validateDocument(document map[string]any) error {
	info, _ := document["info"].(map[string]any)
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: no model defines a URL endpoint")
	}
	return nil
}
