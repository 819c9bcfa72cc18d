package openapi

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	contentType    string
	servers        []string
	tags           bool
	descriptions   map[string]string
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info:           openapiInfo{Title: "Entity API", Version: "1.0.0"},
		contentType:    "application/json",
		tags:           true,
		descriptions:   map[string]string{},
	}
}

// GeneratorOption configures the OpenAPI generator behaviour.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// InfoOption configures optional fields on the OpenAPI info section.
type InfoOption func(*openapiInfo)

func WithInfoDescription(description string) InfoOption {
	return func(info *openapiInfo) {
		info.Description = description
	}
}

// WithInfo configures the info block. Empty strings keep the defaults.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.info)
			}
		}
	}
}

// WithContentType sets the media type of request and response bodies. Use
// application/msgpack for models served through the msgpack codec.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType != "" {
			cfg.contentType = contentType
		}
	}
}

// WithServer appends a server URL, typically the transport base URL.
func WithServer(url string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if url != "" {
			cfg.servers = append(cfg.servers, url)
		}
	}
}

// WithoutTags stops tagging operations with the entity types they serve.
func WithoutTags() GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.tags = false
	}
}

// WithModelDescription documents the component and tag of modelType.
func WithModelDescription(modelType, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.descriptions[modelType] = description
	}
}
