package state

import (
	"encoding/json"
	"fmt"
)

// document is the serialized form of a State.
// encoding/json writes map keys sorted, so output is stable across runs.
type document struct {
	Fields map[string]any `json:"fields"`
	Meta   Meta           `json:"meta"`
}

// rawDocument is the decoding side of document.
type rawDocument struct {
	Fields map[string]json.RawMessage `json:"fields"`
	Meta   Meta                       `json:"meta"`
}

// Marshal serializes a State to JSON.
func Marshal(s State) ([]byte, error) {
	doc := document{Fields: s.values, Meta: s.meta}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	return json.Marshal(doc)
}

// Unmarshal decodes a document produced by Marshal.
// Each field is decoded into its default's Go type, so a State survives
// save -> load -> save without changing. Fields missing from the document
// take their default; fields the schema does not declare are rejected.
func (s *Schema) Unmarshal(data []byte) (State, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("decode state document: %w", err)
	}

	st := s.Default()
	for name, raw := range doc.Fields {
		v, err := s.decodeValue(name, raw)
		if err != nil {
			return State{}, err
		}
		st.values[name] = v
	}
	st.meta = doc.Meta.Clone()
	return st, nil
}
