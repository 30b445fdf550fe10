package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnknownType = errors.New("unknown pipeline type")
	ErrUnknownKey  = errors.New("unknown pipeline config key")
	ErrMissingKey  = errors.New("missing required pipeline config key")
	ErrBadValue    = errors.New("invalid pipeline config value")
)

type KeyKind string

const (
	KindString KeyKind = "string"
	KindInt    KeyKind = "int"
	KindFloat  KeyKind = "float"
	KindBool   KeyKind = "bool"
	KindEnum   KeyKind = "enum"
)

// KeySpec declares one recognized config key: its type, its effect on the
// pipeline, whether it is required, and its default. Keys outside the table
// are rejected, never silently accepted.
type KeySpec struct {
	Key      string      `json:"key"`
	Kind     KeyKind     `json:"kind"`
	Effect   string      `json:"effect"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
	Enum     []string    `json:"enum,omitempty"`
}

type TypeSpec struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Keys        []KeySpec `json:"keys"`
}

var registry = map[string]TypeSpec{
	"document_parse": {
		Name:        "document_parse",
		Description: "Extract text from uploaded documents before chunking.",
		Keys: []KeySpec{
			{Key: "format", Kind: KindEnum, Effect: "source document format to parse", Required: true, Enum: []string{"pdf", "docx", "pptx"}},
			{Key: "extract_tables", Kind: KindBool, Effect: "also extract tabular regions as rows", Default: false},
			{Key: "max_pages", Kind: KindInt, Effect: "stop parsing after this many pages (0 = all)", Default: 0},
		},
	},
	"text_chunk": {
		Name:        "text_chunk",
		Description: "Split parsed text into model-sized chunks.",
		Keys: []KeySpec{
			{Key: "chunk_size", Kind: KindInt, Effect: "target chunk length in characters", Default: 1000},
			{Key: "chunk_overlap", Kind: KindInt, Effect: "characters shared between adjacent chunks", Default: 200},
			{Key: "separator", Kind: KindString, Effect: "preferred split boundary", Default: "\n\n"},
		},
	},
	"alpaca_distill": {
		Name:        "alpaca_distill",
		Description: "Distill chunks into instruction/input/output training triples.",
		Keys: []KeySpec{
			{Key: "instruction_field", Kind: KindString, Effect: "output field holding the instruction", Default: "instruction"},
			{Key: "samples_per_chunk", Kind: KindInt, Effect: "triples generated per source chunk", Default: 3},
			{Key: "temperature", Kind: KindFloat, Effect: "sampling temperature for generation", Default: 0.7},
			{Key: "dedupe", Kind: KindBool, Effect: "drop near-duplicate triples", Default: true},
		},
	},
}

// Types lists every recognized pipeline type, sorted by name.
func Types() []TypeSpec {
	out := make([]TypeSpec, 0, len(registry))
	for _, spec := range registry {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateConfig checks a config against its type's key table and returns a
// normalized copy with defaults applied. The config's "type" key selects the
// table; every other key must appear in it with a value of the declared kind.
func ValidateConfig(cfg map[string]interface{}) (map[string]interface{}, error) {
	rawType, ok := cfg["type"]
	if !ok {
		return nil, fmt.Errorf("%w: type", ErrMissingKey)
	}
	typeName, ok := rawType.(string)
	if !ok {
		return nil, fmt.Errorf("%w: type must be a string", ErrBadValue)
	}

	spec, ok := registry[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}

	specs := make(map[string]KeySpec, len(spec.Keys))
	for _, ks := range spec.Keys {
		specs[ks.Key] = ks
	}

	normalized := map[string]interface{}{"type": typeName}

	for key, val := range cfg {
		if key == "type" {
			continue
		}
		ks, ok := specs[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q for pipeline type %q", ErrUnknownKey, key, typeName)
		}
		coerced, err := coerce(ks, val)
		if err != nil {
			return nil, err
		}
		normalized[key] = coerced
	}

	for _, ks := range spec.Keys {
		if _, ok := normalized[ks.Key]; ok {
			continue
		}
		if ks.Required {
			return nil, fmt.Errorf("%w: %q for pipeline type %q", ErrMissingKey, ks.Key, typeName)
		}
		if ks.Default != nil {
			normalized[ks.Key] = ks.Default
		}
	}

	return normalized, nil
}

// coerce checks a value against the declared kind. JSON decoding hands every
// number over as float64, so int keys accept whole floats.
func coerce(ks KeySpec, val interface{}) (interface{}, error) {
	switch ks.Kind {
	case KindString:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a string", ErrBadValue, ks.Key)
		}
		return s, nil
	case KindBool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a bool", ErrBadValue, ks.Key)
		}
		return b, nil
	case KindInt:
		switch n := val.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: %q must be an integer", ErrBadValue, ks.Key)
			}
			return int(n), nil
		default:
			return nil, fmt.Errorf("%w: %q must be an integer", ErrBadValue, ks.Key)
		}
	case KindFloat:
		switch n := val.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("%w: %q must be a number", ErrBadValue, ks.Key)
		}
	case KindEnum:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a string", ErrBadValue, ks.Key)
		}
		for _, allowed := range ks.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: %q must be one of %v", ErrBadValue, ks.Key, ks.Enum)
	default:
		return nil, fmt.Errorf("%w: key %q has unknown kind %q", ErrBadValue, ks.Key, ks.Kind)
	}
}
