package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseError reports model output that could not be decoded.
type ParseError struct {
	Text string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	text := e.Text
	if len(text) > 80 {
		text = text[:80] + "..."
	}
	return fmt.Sprintf("parse model output %q: %v", text, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// errNoJSON is wrapped by ParseError when text holds no JSON object.
var errNoJSON = errors.New("no JSON object found")

// ExtractJSON decodes the first balanced JSON object in text into into.
// Models often wrap JSON in prose or code fences; both are skipped.
func ExtractJSON(text string, into any) error {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return &ParseError{Text: text, Err: errNoJSON}
	}

	end := matchBrace(text, start)
	if end < 0 {
		return &ParseError{Text: text, Err: errors.New("unterminated JSON object")}
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), into); err != nil {
		return &ParseError{Text: text, Err: err}
	}
	return nil
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside string literals, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
