package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/expr"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// placeholder matches ${name} and ${name.path}.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*)\}`)

// Template is a parsed prompt template.
type Template struct {
	text    string
	refs    []string
	missing MissingAction
}

// Parse scans text for placeholders. Parsing cannot fail; text without
// placeholders renders unchanged.
func Parse(text string, opts ...Option) *Template {
	t := &Template{text: text}
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			t.refs = append(t.refs, m[1])
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refs returns the distinct placeholder paths in order of first use.
func (t *Template) Refs() []string {
	out := make([]string, len(t.refs))
	copy(out, t.refs)
	return out
}

// String returns the template text.
func (t *Template) String() string {
	return t.text
}

// Check reports the first placeholder whose root field schema lacks.
func (t *Template) Check(schema *state.Schema) error {
	for _, ref := range t.refs {
		root, _, _ := strings.Cut(ref, ".")
		if !schema.Has(root) {
			return fmt.Errorf("template placeholder ${%s}: %w", ref, &state.UnknownFieldError{Field: root})
		}
	}
	return nil
}

// Render substitutes vars into the template.
func (t *Template) Render(vars map[string]any) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(t.text, func(match string) string {
		path := match[2 : len(match)-1]
		val := expr.Lookup(vars, path)
		if val != nil {
			return format(val)
		}
		switch t.missing {
		case MissingEmpty:
			return ""
		case MissingKeep:
			return match
		default:
			missing = append(missing, path)
			return match
		}
	})
	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// RenderState renders against a state's fields.
func (t *Template) RenderState(s state.State) (string, error) {
	return t.Render(s.Values())
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		lines := make([]string, len(val))
		for i, item := range val {
			lines[i] = "- " + item
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
