package template

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	// bothPattern also matches $name. The identifier is greedy, so $port
	// never matches inside $portNumber.
	bothPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)
)

// Expander substitutes variables into text.
type Expander struct {
	missingAction MissingAction
	dollarStyle   bool
}

// NewExpander creates an Expander. Defaults: MissingError, ${var} only.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Expander) pattern() *regexp.Regexp {
	if e.dollarStyle {
		return bothPattern
	}
	return bracePattern
}

// name extracts the variable name from a submatch index slice.
func name(s string, m []int) string {
	if m[2] >= 0 {
		return s[m[2]:m[3]]
	}
	return s[m[4]:m[5]]
}

// Expand replaces placeholders in s with values from vars. Values are
// formatted with fmt.Sprint.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	matches := e.pattern().FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	var missing []string
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		last = m[1]

		key := name(s, m)
		if val, ok := vars[key]; ok {
			b.WriteString(format(val))
			continue
		}
		switch e.missingAction {
		case MissingEmpty:
		case MissingKeep:
			b.WriteString(s[m[0]:m[1]])
		default:
			if !slices.Contains(missing, key) {
				missing = append(missing, key)
			}
			b.WriteString(s[m[0]:m[1]])
		}
	}
	b.WriteString(s[last:])

	if len(missing) > 0 {
		return "", &UndefinedVariableError{Names: missing}
	}
	return b.String(), nil
}

// MustExpand is Expand for templates known to be complete. It panics on
// error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	out, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return out
}

// Variables returns the distinct variable names used in s, in order of
// first appearance.
func (e *Expander) Variables(s string) []string {
	var names []string
	for _, m := range e.pattern().FindAllStringSubmatchIndex(s, -1) {
		if n := name(s, m); !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// UndefinedVariableError lists the variables a strict expansion could not
// resolve.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

var defaultExpander = NewExpander()

// Expand expands s with the default strict expander.
func Expand(s string, vars map[string]any) (string, error) {
	return defaultExpander.Expand(s, vars)
}
