package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
)

// ValidationError reports an argument that does not satisfy the operation's
// input schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// normalize copies args without explicit nulls, which count as absent.
func normalize(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// checkFields enforces required fields and enum membership. Fields the
// schema does not name are ignored.
func checkFields(s catalog.Schema, args map[string]any) error {
	for _, f := range s.Fields {
		v, present := args[f.Name]
		if !present {
			if f.Required {
				return &ValidationError{Field: f.Name, Reason: "is required"}
			}
			continue
		}
		if len(f.Enum) == 0 {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return &ValidationError{Field: f.Name, Reason: "must be a string"}
		}
		if !slices.Contains(f.Enum, str) {
			return &ValidationError{
				Field:  f.Name,
				Reason: fmt.Sprintf("must be one of %s, got %q", strings.Join(f.Enum, ", "), str),
			}
		}
	}
	return nil
}

// applyDefaults fills absent optional fields with their catalog default.
func applyDefaults(s catalog.Schema, args map[string]any) {
	for _, f := range s.Fields {
		if _, present := args[f.Name]; !present && f.HasDefault() {
			args[f.Name] = f.Default
		}
	}
}

// compileSchemas compiles the JSON Schema of every operation.
func compileSchemas() ([catalog.Count]*jsonschema.Schema, error) {
	var out [catalog.Count]*jsonschema.Schema
	c := jsonschema.NewCompiler()
	for _, op := range catalog.Operations() {
		doc, err := toJSONValue(catalog.JSONSchema(op))
		if err != nil {
			return out, fmt.Errorf("encoding schema of %s: %w", op, err)
		}
		url := op.String() + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return out, fmt.Errorf("adding schema of %s: %w", op, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return out, fmt.Errorf("compiling schema of %s: %w", op, err)
		}
		out[op] = sch
	}
	return out, nil
}

// toJSONValue round-trips v through JSON so numbers become json.Number,
// which is what the validator expects.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// checkTypes validates args against the compiled schema.
func checkTypes(sch *jsonschema.Schema, args map[string]any) error {
	inst, err := toJSONValue(args)
	if err != nil {
		return &ValidationError{Field: "arguments", Reason: err.Error()}
	}
	err = sch.Validate(inst)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ValidationError{Field: "arguments", Reason: err.Error()}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := "arguments"
	if len(leaf.InstanceLocation) > 0 {
		field = strings.Join(leaf.InstanceLocation, "/")
	}
	return &ValidationError{Field: field, Reason: lastReason(err.Error())}
}

// lastReason extracts the final "- at '/x': reason" line of a validator
// message.
func lastReason(msg string) string {
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	last := strings.TrimPrefix(strings.TrimSpace(lines[len(lines)-1]), "- ")
	if strings.HasPrefix(last, "at '") {
		if i := strings.Index(last, "': "); i > 0 {
			return last[i+3:]
		}
	}
	return last
}
