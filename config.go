package entity

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a bare type name or a mapping:
//
//	age: int
//	born: {type: date, format: timestamp}
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Type = ParseFieldType(node.Value)
		return nil
	}
	type plain Field
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*f = Field(out)
	return nil
}

type modelsDocument struct {
	Models []ModelConfig `yaml:"models"`
}

// ParseModelConfigs reads model definitions from YAML. The input is either a
// document with a models list or a stream of single model documents. Every
// config is validated.
func ParseModelConfigs(data []byte) ([]ModelConfig, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var configs []ModelConfig
	for index := 0; ; index++ {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("entity: parse models document %d: %w", index, err)
		}
		if hasModelsKey(&node) {
			var doc modelsDocument
			if err := node.Decode(&doc); err != nil {
				return nil, fmt.Errorf("entity: parse models document %d: %w", index, err)
			}
			configs = append(configs, doc.Models...)
			continue
		}
		var cfg ModelConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("entity: parse models document %d: %w", index, err)
		}
		configs = append(configs, cfg)
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

func hasModelsKey(node *yaml.Node) bool {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "models" {
			return true
		}
	}
	return false
}

// DefineModelsYAML parses data and defines every model it declares.
func (r *Registry) DefineModelsYAML(data []byte, opts ...ModelOption) ([]*Model, error) {
	configs, err := ParseModelConfigs(data)
	if err != nil {
		return nil, err
	}
	models := make([]*Model, 0, len(configs))
	for _, cfg := range configs {
		model, err := r.DefineModel(cfg, opts...)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	return models, nil
}

// MarshalYAML renders the field as its type name when nothing else is set.
func (f Field) MarshalYAML() (any, error) {
	if f.Format == "" {
		return f.Type.String(), nil
	}
	return struct {
		Type   FieldType `yaml:"type"`
		Format string    `yaml:"format"`
	}{f.Type, f.Format}, nil
}
