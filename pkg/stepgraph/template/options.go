package template

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError returns an *UndefinedVariableError. This is the default.
	MissingError MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingKeep keeps the placeholder as-is.
	MissingKeep
)

// Option configures a Template.
type Option func(*Template)

// WithMissingAction sets how missing variables are handled.
//
// Default: MissingError
func WithMissingAction(action MissingAction) Option {
	return func(t *Template) {
		t.missing = action
	}
}
