// internal/backend/format.go
package backend

import (
	"strings"

	"github.com/mwiater/numleak/internal/transcript"
)

// ChatFormatter renders a chat into a single prompt string for hosts that
// cannot apply a chat template themselves. Selection happens once, from the
// configured host type, not per request.
type ChatFormatter interface {
	Format(chat []transcript.Turn) string
}

// PlainFormatter renders "role: content" lines terminated by an "assistant:"
// cue, the fallback format for bare completion endpoints.
type PlainFormatter struct{}

// Format implements ChatFormatter.
func (PlainFormatter) Format(chat []transcript.Turn) string {
	var b strings.Builder
	for _, turn := range chat {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteByte('\n')
	}
	b.WriteString(transcript.RoleAssistant)
	b.WriteString(":")
	return b.String()
}
