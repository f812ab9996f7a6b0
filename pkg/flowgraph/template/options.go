package template

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError fails the expansion. This is the default.
	MissingError MissingAction = iota

	// MissingKeep leaves the placeholder in the output.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing variables are handled.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// WithDollarStyle enables the $var form alongside ${var}.
func WithDollarStyle(enabled bool) Option {
	return func(e *Expander) {
		e.dollarStyle = enabled
	}
}
