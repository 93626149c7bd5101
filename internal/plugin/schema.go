// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// schemaCache holds compiled schemas per dialect.
var (
	schemaMu    sync.Mutex
	schemaCache = map[Dialect]*jschema.Schema{}
)

// GenerateSchema generates the JSON Schema of a descriptor dialect.
func GenerateSchema(d Dialect) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}

	var schema *jsonschema.Schema
	switch d {
	case DialectPrimary:
		schema = r.Reflect(&PrimaryDescriptor{})
		schema.Title = "Primary Plugin Descriptor"
		schema.Description = "Schema for " + PrimaryDescriptorFile + " files"
	case DialectLegacy:
		schema = r.Reflect(&LegacyDescriptor{})
		schema.Title = "Legacy Plugin Descriptor"
		schema.Description = "Schema for " + LegacyDescriptorFile + " files"
	default:
		return nil, oops.In("plugin").Errorf("unknown dialect %d", d)
	}
	schema.ID = jsonschema.ID(SchemaID(d))

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("plugin").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// SchemaID returns the schema $id for a dialect.
func SchemaID(d Dialect) string {
	return fmt.Sprintf("https://plugbridge.holomush.dev/schemas/%s-descriptor.schema.json", d)
}

// ValidateSchema validates descriptor YAML against the dialect's JSON Schema.
func ValidateSchema(d Dialect, data []byte) error {
	if len(data) == 0 {
		return oops.In("plugin").Errorf("descriptor data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.In("plugin").Wrapf(err, "invalid YAML")
	}

	sch, err := compiledSchema(d)
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.In("plugin").Code(CodeConfigParse).Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiledSchema(d Dialect) (*jschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if sch, ok := schemaCache[d]; ok {
		return sch, nil
	}

	raw, err := GenerateSchema(d)
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, oops.In("plugin").Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	url := SchemaID(d)
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.In("plugin").Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, oops.In("plugin").Wrapf(err, "compile schema")
	}
	schemaCache[d] = sch
	return sch, nil
}

// toJSONTypes normalizes YAML-decoded values into the shapes the validator
// expects: string-keyed maps and float64 numbers.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}

// FormatSchemaError strips the wrapper prefix from a validation error.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(err.Error(), "schema validation failed: ")
}
