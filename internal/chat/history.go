package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

const (
	// SummarizeAfter is the history length above which older messages are
	// folded into the running summary.
	SummarizeAfter = 10
	// KeepRecent messages are never summarised.
	KeepRecent = 5
	// MaxContextTokens bounds the history sent with each model call.
	MaxContextTokens = 1000

	charsPerToken    = 4
	tokensPerMessage = 3
	titleRunes       = 20
	untitledThread   = "New Chat"
)

// CountTokens approximates the tokens of msgs: four characters per token
// plus a small per-message overhead.
func CountTokens(msgs ...llm.Message) int {
	n := 0
	for _, m := range msgs {
		chars := utf8.RuneCountInString(m.Content) + len(m.Role)
		n += (chars+charsPerToken-1)/charsPerToken + tokensPerMessage
	}
	return n
}

// Trim keeps the newest messages that fit in maxTokens and drops leading
// messages until the window starts on a user message. If not even the
// newest user message fits, it is sent alone.
func Trim(msgs []llm.Message, maxTokens int) []llm.Message {
	start, budget := len(msgs), maxTokens
	for start > 0 {
		cost := CountTokens(msgs[start-1])
		if cost > budget {
			break
		}
		budget -= cost
		start--
	}
	for start < len(msgs) && msgs[start].Role != llm.RoleUser {
		start++
	}
	if start < len(msgs) {
		return msgs[start:]
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i : i+1]
		}
	}
	return nil
}

// Visible filters msgs down to what a reader should see: user and
// assistant turns with content.
func Visible(msgs []llm.Message) []llm.Message {
	var out []llm.Message
	for _, m := range msgs {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Title names a thread after its first user message, cut to twenty
// characters.
func Title(msgs []llm.Message) string {
	for _, m := range msgs {
		if m.Role != llm.RoleUser {
			continue
		}
		if utf8.RuneCountInString(m.Content) <= titleRunes {
			return m.Content
		}
		return string([]rune(m.Content)[:titleRunes]) + "..."
	}
	return untitledThread
}

// transcript renders msgs one per line for the summary prompt.
func transcript(msgs []llm.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
