// Package catalog defines the closed set of operations the gateway exposes.
//
// Operations are a Go enum rather than strings so that the descriptor table
// here and the handler table in internal/tools are both fixed-size arrays
// indexed by Operation. A new operation that is added to the enum but not to
// one of the tables leaves a zero slot, which Check (and gateway.New) reject
// at startup.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Prefix is prepended to every caller-visible operation name.
const Prefix = "agi_"

// ErrUnknownOperation is returned by Lookup for names outside the catalog.
var ErrUnknownOperation = errors.New("unknown operation")

// ─── Types ───────────────────────────────────────────────────────────────────

// Operation identifies one entry of the catalog.
type Operation int

// FieldType is the primitive JSON type of an input field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

var validFieldTypes = map[FieldType]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeObject:  true,
	TypeArray:   true,
}

// Field describes one named input of an operation.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	// Default is applied by the dispatcher when the field is absent.
	// nil means "no default". Integer defaults are Go ints, number
	// defaults float64.
	Default any
	Enum    []string
	// Items is the element type for TypeArray fields.
	Items FieldType
}

// HasDefault reports whether the field carries a default value.
func (f Field) HasDefault() bool { return f.Default != nil }

// Schema is the ordered list of fields an operation accepts.
type Schema struct {
	Fields []Field
}

// Field returns the named field and whether it exists.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredNames returns the names of the required fields in schema order.
func (s Schema) RequiredNames() []string {
	names := []string{}
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Descriptor is what a caller sees when listing the catalog.
type Descriptor struct {
	Name        string
	Description string
	Schema      Schema
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// String returns the caller-visible name of the operation.
func (op Operation) String() string {
	if !op.Valid() {
		return fmt.Sprintf("Operation(%d)", int(op))
	}
	return descriptors[op].Name
}

// Valid reports whether op is inside the closed set.
func (op Operation) Valid() bool {
	return op >= 0 && op < operationCount
}

// Operations returns every operation in catalog order.
func Operations() []Operation {
	ops := make([]Operation, 0, Count)
	for op := Operation(0); op < operationCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// List returns the ordered catalog. The slice is a copy.
func List() []Descriptor {
	out := make([]Descriptor, Count)
	copy(out, descriptors[:])
	return out
}

// Describe returns the descriptor for op.
func Describe(op Operation) Descriptor {
	return descriptors[op]
}

// SchemaFor returns the input schema for op.
func SchemaFor(op Operation) Schema {
	return descriptors[op].Schema
}

// Lookup resolves a caller-supplied name to its operation.
func Lookup(name string) (Operation, error) {
	op, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownOperation, name)
	}
	return op, nil
}

var byName = func() map[string]Operation {
	m := make(map[string]Operation, Count)
	for op := Operation(0); op < operationCount; op++ {
		m[descriptors[op].Name] = op
	}
	return m
}()

// ─── Consistency ─────────────────────────────────────────────────────────────

// Check verifies the catalog is internally consistent: every operation has a
// unique prefixed name and a description, and every schema obeys the field
// rules (required fields carry no default, enum fields are strings whose
// default belongs to the enum). The server refuses to start when it fails.
func Check() error {
	var errs []error
	seen := make(map[string]Operation, Count)

	for op := Operation(0); op < operationCount; op++ {
		d := descriptors[op]
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("operation %d has no name", int(op)))
			continue
		}
		if !strings.HasPrefix(d.Name, Prefix) {
			errs = append(errs, fmt.Errorf("%s: name must start with %q", d.Name, Prefix))
		}
		if prev, dup := seen[d.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate name (operations %d and %d)", d.Name, int(prev), int(op)))
		}
		seen[d.Name] = op
		if strings.TrimSpace(d.Description) == "" {
			errs = append(errs, fmt.Errorf("%s: missing description", d.Name))
		}
		errs = append(errs, checkSchema(d.Name, d.Schema)...)
	}

	return errors.Join(errs...)
}

func checkSchema(opName string, s Schema) []error {
	var errs []error
	names := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		where := opName + "." + f.Name
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s: field with empty name", opName))
			continue
		}
		if names[f.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate field", where))
		}
		names[f.Name] = true

		if !validFieldTypes[f.Type] {
			errs = append(errs, fmt.Errorf("%s: unknown type %q", where, f.Type))
		}
		if f.Required && f.HasDefault() {
			errs = append(errs, fmt.Errorf("%s: required field must not have a default", where))
		}
		if f.Type == TypeArray && !validFieldTypes[f.Items] {
			errs = append(errs, fmt.Errorf("%s: array field needs an item type", where))
		}
		if len(f.Enum) > 0 {
			if f.Type != TypeString {
				errs = append(errs, fmt.Errorf("%s: enum field must be a string", where))
			}
			if f.HasDefault() {
				def, ok := f.Default.(string)
				if !ok || !slices.Contains(f.Enum, def) {
					errs = append(errs, fmt.Errorf("%s: default %v is not in enum %v", where, f.Default, f.Enum))
				}
			}
		}
		if f.HasDefault() && !defaultMatchesType(f) {
			errs = append(errs, fmt.Errorf("%s: default %v does not match type %s", where, f.Default, f.Type))
		}
	}
	return errs
}

func defaultMatchesType(f Field) bool {
	switch f.Type {
	case TypeString:
		_, ok := f.Default.(string)
		return ok
	case TypeInteger:
		_, ok := f.Default.(int)
		return ok
	case TypeNumber:
		_, ok := f.Default.(float64)
		return ok
	case TypeBoolean:
		_, ok := f.Default.(bool)
		return ok
	default:
		// object and array fields carry no defaults in this catalog.
		return false
	}
}
