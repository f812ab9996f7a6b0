package llm

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
)

// FieldKind is the JSON type a schema field must have.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInteger
)

func (k FieldKind) String() string {
	if k == KindInteger {
		return "integer"
	}
	return "string"
}

// Field describes one required property of a structured response.
type Field struct {
	Name        string
	Kind        FieldKind
	Description string
	// Enum restricts string values when non-empty.
	Enum []string
	// Min and Max bound integer values when Bounded is set.
	Bounded  bool
	Min, Max int
}

// Schema is a flat JSON object contract: every field is required and no
// nesting is supported.
type Schema struct {
	Name   string
	Fields []Field
}

// Instructions renders the contract as a prompt suffix.
func (s Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. It must contain exactly these fields:\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %q (%s)", f.Name, f.Kind)
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, " one of: %s", strings.Join(f.Enum, ", "))
		}
		if f.Bounded {
			fmt.Fprintf(&b, " between %d and %d", f.Min, f.Max)
		}
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Parse extracts the JSON object from raw model output and validates it.
// Code fences and surrounding prose are tolerated.
func (s Schema) Parse(raw string) (gjson.Result, error) {
	body, ok := extractObject(raw)
	if !ok || !gjson.Valid(body) {
		return gjson.Result{}, &fgerrors.SchemaValidationError{Message: "response is not a JSON object", Raw: raw}
	}
	obj := gjson.Parse(body)
	if !obj.IsObject() {
		return gjson.Result{}, &fgerrors.SchemaValidationError{Message: "response is not a JSON object", Raw: raw}
	}

	props := obj.Map()
	for _, f := range s.Fields {
		v, ok := props[f.Name]
		if !ok {
			return gjson.Result{}, &fgerrors.SchemaValidationError{Field: f.Name, Message: "required field missing", Raw: raw}
		}
		if err := f.check(v); err != "" {
			return gjson.Result{}, &fgerrors.SchemaValidationError{Field: f.Name, Message: err, Raw: raw}
		}
	}
	return obj, nil
}

func (f Field) check(v gjson.Result) string {
	switch f.Kind {
	case KindString:
		if v.Type != gjson.String {
			return fmt.Sprintf("expected string, got %s", v.Type)
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, v.Str) {
			return fmt.Sprintf("value %q not in %v", v.Str, f.Enum)
		}
	case KindInteger:
		if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
			return fmt.Sprintf("expected integer, got %s", v.Raw)
		}
		if f.Bounded && (v.Int() < int64(f.Min) || v.Int() > int64(f.Max)) {
			return fmt.Sprintf("value %d outside [%d, %d]", v.Int(), f.Min, f.Max)
		}
	}
	return ""
}

// extractObject returns the outermost {...} span of s.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// CompleteStructured sends req with the schema instructions appended to the
// system prompt and validates the reply. Transport errors are returned as-is;
// a reply that breaks the schema yields *errors.SchemaValidationError.
func CompleteStructured(ctx context.Context, c Client, req CompletionRequest, schema Schema) (gjson.Result, error) {
	if req.SystemPrompt == "" {
		req.SystemPrompt = schema.Instructions()
	} else {
		req.SystemPrompt = req.SystemPrompt + "\n\n" + schema.Instructions()
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}
	return schema.Parse(resp.Content)
}
