package state

import (
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/mohae/deepcopy"
)

// Update is a partial state: the subset of fields a step overwrites.
type Update map[string]any

// State holds one value per schema field plus engine bookkeeping.
//
// State is a value type. Merge never mutates its input, and accessors
// return copies of slice and map values, so a State may be read after a
// newer State has been derived from it.
type State struct {
	schema *Schema
	values map[string]any
	meta   Meta
}

// Merge returns a new State equal to s with the fields of u overwritten.
// Fields absent from u keep their value. A nil value in u resets the field
// to its default.
//
// Returns *UnknownFieldError if u names a field outside the schema and
// *TypeMismatchError if a value is not assignable to the field's type.
// Fields are checked in sorted order so the reported error is deterministic.
func Merge(s State, u Update) (State, error) {
	if s.schema == nil {
		for name := range u {
			return State{}, &UnknownFieldError{Field: name}
		}
		return s, nil
	}

	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.schema.check(name, u[name]); err != nil {
			return State{}, err
		}
	}

	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	for _, name := range names {
		v := u[name]
		if v == nil {
			v, _ = s.schema.DefaultOf(name)
		} else {
			v = copyValue(v)
		}
		values[name] = v
	}

	return State{schema: s.schema, values: values, meta: s.meta.Clone()}, nil
}

// Merge is shorthand for Merge(s, u).
func (s State) Merge(u Update) (State, error) {
	return Merge(s, u)
}

// Schema returns the schema the state was built from.
func (s State) Schema() *Schema {
	return s.schema
}

// Meta returns a copy of the engine bookkeeping.
func (s State) Meta() Meta {
	return s.meta.Clone()
}

// WithMeta returns a copy of s carrying m as its bookkeeping.
// Only the engine writes bookkeeping; steps return Updates.
func (s State) WithMeta(m Meta) State {
	return State{schema: s.schema, values: s.values, meta: m.Clone()}
}

// Get returns a copy of the value for name.
func (s State) Get(name string) (any, bool) {
	v, ok := s.values[name]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Values returns a copy of all field values keyed by name.
func (s State) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = copyValue(v)
	}
	return out
}

// String returns the string value for name, or "" if missing or not a string.
func (s State) String(name string) string {
	if v, ok := s.values[name].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value for name, or 0 if missing or not an integer.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted only if there is no fractional part
func (s State) Int(name string) int {
	switch v := s.values[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}

// Float returns the float64 value for name, or 0 if missing or not numeric.
func (s State) Float(name string) float64 {
	switch v := s.values[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the boolean value for name, or false if missing or not a bool.
func (s State) Bool(name string) bool {
	v, _ := s.values[name].(bool)
	return v
}

// Strings returns a copy of the string slice for name.
//
// Accepts:
//   - []string: copied
//   - []any: each element must be a string, otherwise nil is returned
func (s State) Strings(name string) []string {
	switch v := s.values[name].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, str)
		}
		return out
	}
	return nil
}

// Map returns a copy of the map value for name, or nil if missing or not a map.
func (s State) Map(name string) map[string]any {
	if v, ok := s.values[name].(map[string]any); ok {
		return copyValue(v).(map[string]any)
	}
	return nil
}

// Decode copies the state's fields into a struct (or map) using the
// struct's json tags as field names. Fields without a matching tag are left
// untouched.
//
// Example:
//
//	var view struct {
//	    Input  string `json:"input"`
//	    Output string `json:"output"`
//	}
//	err := s.Decode(&view)
func (s State) Decode(into any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           into,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(s.Values())
}

// copyValue returns a deep copy of v so that states never share mutable
// slices or maps.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	return deepcopy.Copy(v)
}
