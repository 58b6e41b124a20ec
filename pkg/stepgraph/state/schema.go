package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Field declares one named value carried by a State.
// Default fixes both the initial value and the Go type accepted by Merge.
// A nil Default accepts values of any type.
type Field struct {
	Name    string
	Default any
}

// Schema is the ordered set of fields a State may hold.
// A Schema is immutable after NewSchema returns and is safe for concurrent use.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from the given fields.
// Returns ErrInvalidSchema if a name is empty, contains whitespace, or repeats.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidSchema)
		}
		if strings.ContainsAny(f.Name, " \t\n\r") {
			return nil, fmt.Errorf("%w: field %q contains whitespace", ErrInvalidSchema, f.Name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, Field{Name: f.Name, Default: copyValue(f.Default)})
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Intended for package-level schema variables.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic("state: " + err.Error())
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = Field{Name: f.Name, Default: copyValue(f.Default)}
	}
	return out
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// DefaultOf returns a copy of the default value for name.
func (s *Schema) DefaultOf(name string) (any, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return copyValue(s.fields[i].Default), true
}

// Default returns the State holding every field's default value.
func (s *Schema) Default() State {
	values := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		values[f.Name] = copyValue(f.Default)
	}
	return State{schema: s, values: values}
}

// New returns Default() with u merged on top.
func (s *Schema) New(u Update) (State, error) {
	return Merge(s.Default(), u)
}

// check validates a single field assignment against the schema.
func (s *Schema) check(name string, value any) error {
	i, ok := s.index[name]
	if !ok {
		return &UnknownFieldError{Field: name}
	}
	def := s.fields[i].Default
	if def == nil || value == nil {
		return nil
	}
	want := reflect.TypeOf(def)
	got := reflect.TypeOf(value)
	if !got.AssignableTo(want) {
		return &TypeMismatchError{Field: name, Want: want.String(), Got: got.String()}
	}
	return nil
}

// fieldType returns the Go type values of name decode into.
// Fields with a nil default decode into any.
func (s *Schema) fieldType(name string) reflect.Type {
	def := s.fields[s.index[name]].Default
	if def == nil {
		return reflect.TypeOf((*any)(nil)).Elem()
	}
	return reflect.TypeOf(def)
}

// decodeValue decodes raw JSON into the declared type of name.
func (s *Schema) decodeValue(name string, raw []byte) (any, error) {
	if !s.Has(name) {
		return nil, &UnknownFieldError{Field: name}
	}
	ptr := reflect.New(s.fieldType(name))
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode field %s: %w", name, err)
	}
	return ptr.Elem().Interface(), nil
}

// ParseValue converts a textual value into the declared type of name.
// String fields take the text verbatim; every other type is parsed as JSON,
// so "3", "true" and `["a","b"]` work for int, bool and []string fields.
func (s *Schema) ParseValue(name, text string) (any, error) {
	if !s.Has(name) {
		return nil, &UnknownFieldError{Field: name}
	}
	if s.fieldType(name).Kind() == reflect.String {
		return reflect.ValueOf(text).Convert(s.fieldType(name)).Interface(), nil
	}
	return s.decodeValue(name, []byte(text))
}

// DecodeUpdate converts a JSON object into an Update whose values carry the
// declared Go types. Used by transports that receive input as JSON.
func (s *Schema) DecodeUpdate(raw map[string]json.RawMessage) (Update, error) {
	u := make(Update, len(raw))
	for name, data := range raw {
		v, err := s.decodeValue(name, data)
		if err != nil {
			return nil, err
		}
		u[name] = v
	}
	return u, nil
}
