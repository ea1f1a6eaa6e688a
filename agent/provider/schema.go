package provider

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// Reflect builds the argument schema for a tool from its request struct.
func Reflect(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}

// schemaDocument renders s as a plain JSON-schema object.
func schemaDocument(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal tool schema: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode tool schema: %w", err)
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	return doc, nil
}

func einoToolInfo(name, desc string, s *jsonschema.Schema) *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: name,
		Desc: desc,
	}
	if s != nil && s.Properties != nil && s.Properties.Len() > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(einoParams(s))
	}
	return info
}

func einoParams(s *jsonschema.Schema) map[string]*schema.ParameterInfo {
	if s == nil || s.Properties == nil {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	params := make(map[string]*schema.ParameterInfo, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		p := einoParam(pair.Value)
		p.Required = required[pair.Key]
		params[pair.Key] = p
	}
	return params
}

func einoParam(s *jsonschema.Schema) *schema.ParameterInfo {
	p := &schema.ParameterInfo{
		Type: einoType(s.Type),
		Desc: s.Description,
	}
	for _, v := range s.Enum {
		p.Enum = append(p.Enum, fmt.Sprint(v))
	}
	switch p.Type {
	case schema.Array:
		if s.Items != nil {
			p.ElemInfo = einoParam(s.Items)
		}
	case schema.Object:
		p.SubParams = einoParams(s)
	}
	return p
}

func einoType(t string) schema.DataType {
	switch t {
	case "string":
		return schema.String
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "null":
		return schema.Null
	default:
		return schema.Object
	}
}

func geminiSchema(s *jsonschema.Schema) (*genai.Schema, error) {
	doc, err := schemaDocument(s)
	if err != nil {
		return nil, err
	}
	delete(doc, "additionalProperties")
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	decoded := &genai.Schema{}
	if err := json.Unmarshal(encoded, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
