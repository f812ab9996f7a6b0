/*
Package template fills ${var} placeholders in prompt text.

	exp := template.NewExpander()
	prompt, err := exp.Expand("Write a tweet about ${topic}.", map[string]any{"topic": "Go"})

By default every placeholder must have a value; missing ones are reported
together in an *UndefinedVariableError. WithMissingAction relaxes that to
keeping or blanking the placeholder. The short $var form is off by default
so prices and shell snippets in prompts survive; enable it with
WithDollarStyle.

An Expander is immutable and safe for concurrent use.
*/
package template
