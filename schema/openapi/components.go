package openapi

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// componentRegistry names one component schema per entity type. Models
// sharing a type and an identical schema share the component; a differing
// schema gets a numbered name.
type componentRegistry struct {
	schemas map[string]map[string]any
	byType  map[string][]string
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		schemas: map[string]map[string]any{},
		byType:  map[string][]string{},
	}
}

// register returns the $ref of the component for modelType and schema.
func (r *componentRegistry) register(modelType string, schema map[string]any) string {
	for _, name := range r.byType[modelType] {
		if reflect.DeepEqual(r.schemas[name], schema) {
			return ref(name)
		}
	}
	name := r.uniqueName(componentName(modelType))
	r.schemas[name] = schema
	r.byType[modelType] = append(r.byType[modelType], name)
	return ref(name)
}

func ref(name string) string {
	return "#/components/schemas/" + name
}

func (r *componentRegistry) uniqueName(base string) string {
	if _, taken := r.schemas[base]; !taken {
		return base
	}
	for suffix := 1; ; suffix++ {
		candidate := fmt.Sprintf("%s%d", base, suffix)
		if _, taken := r.schemas[candidate]; !taken {
			return candidate
		}
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	if len(r.schemas) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.schemas))
	for name, schema := range r.schemas {
		out[name] = schema
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// componentName turns an entity type into a component name: "order-line"
// becomes "Order_line" and an untyped model becomes "Entity".
func componentName(modelType string) string {
	name := strings.Trim(componentNameRegexp.ReplaceAllString(modelType, "_"), "_")
	if name == "" {
		return "Entity"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
