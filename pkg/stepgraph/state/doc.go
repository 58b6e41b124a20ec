/*
Package state provides the record type that flows through a step graph.

A Schema declares every field and its default, so a State can always be
built empty:

	schema := state.MustSchema(
	    state.Field{Name: "input", Default: ""},
	    state.Field{Name: "output", Default: ""},
	    state.Field{Name: "tags", Default: []string{}},
	)

	s := schema.Default()
	s, err := state.Merge(s, state.Update{"input": "hello"})

Steps return Updates, the engine merges them. Merge overwrites only the
named fields, returns a new State, and rejects field names the schema does
not declare with *UnknownFieldError.

Typed accessors (String, Int, Bool, Strings, Map) return zero values for
missing or mistyped fields, and Decode maps the fields onto a struct using
its json tags.

Marshal and Schema.Unmarshal convert a State to and from a JSON document
holding the fields plus the engine bookkeeping (Meta).
*/
package state
