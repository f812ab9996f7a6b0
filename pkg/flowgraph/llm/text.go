package llm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText trims model output and normalises it to NFC so that equal text
// compares equal regardless of how the provider composed it.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
