package llm

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/extraction.schema.json
var extractionSchemaJSON string

//go:embed schema/relevance.schema.json
var relevanceSchemaJSON string

var (
	fenceOpenExpr  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseExpr = regexp.MustCompile("\\s*```$")
)

type replySchemas struct {
	extraction *jsonschema.Schema
	relevance  *jsonschema.Schema
}

func compileSchemas() (replySchemas, error) {
	extraction, err := compileSchema("extraction.schema.json", extractionSchemaJSON)
	if err != nil {
		return replySchemas{}, err
	}
	relevance, err := compileSchema("relevance.schema.json", relevanceSchemaJSON)
	if err != nil {
		return replySchemas{}, err
	}
	return replySchemas{extraction: extraction, relevance: relevance}, nil
}

func compileSchema(name, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// stripFences removes a markdown code fence wrapped around a reply.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = fenceOpenExpr.ReplaceAllString(raw, "")
	return fenceCloseExpr.ReplaceAllString(raw, "")
}

// decodeReply validates a model reply against schema and decodes it into out.
func decodeReply(raw string, schema *jsonschema.Schema, out any) error {
	body := []byte(stripFences(raw))
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("reply is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("reply contains trailing content")
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("reply schema validation failed: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal reply: %w", err)
	}
	return nil
}
