package chat

import (
	"fmt"
	"strings"
)

// Persona shapes the assistant's behavior for one session. All fields are
// optional; a fully empty persona produces no system message at all.
type Persona struct {
	// Name is the assistant's self-identification.
	Name string

	// Role describes what the assistant is, e.g. "a customer support agent".
	Role string

	// Background is extra context the assistant should assume.
	Background string

	// Style holds response style instructions, e.g. "concise".
	Style string

	// UserName is how the assistant should address the user.
	UserName string
}

// Empty reports whether the persona carries no instructions.
func (p Persona) Empty() bool {
	return p.Name == "" && p.Role == "" && p.Background == "" && p.Style == "" && p.UserName == ""
}

// SystemPrompt synthesizes the session's system preamble: the name line
// first, then role, background, and style each on its own line with blank
// entries skipped, then the user address line. An empty persona yields "".
func (p Persona) SystemPrompt() string {
	var lines []string
	if p.Name != "" {
		lines = append(lines, fmt.Sprintf("Your name is '%s'.", p.Name))
	}
	for _, part := range []string{p.Role, p.Background, p.Style} {
		if part != "" {
			lines = append(lines, part)
		}
	}
	if p.UserName != "" {
		lines = append(lines, fmt.Sprintf("You are talking to '%s'.", p.UserName))
	}
	return strings.Join(lines, "\n")
}
