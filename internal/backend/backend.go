// internal/backend/backend.go

// Package backend abstracts the generation backend that turns chat
// transcripts into sampled text. The only implementation speaks the Ollama
// HTTP API, in native chat mode or through a plain-text fallback for hosts
// without chat templating.
package backend

import (
	"context"

	"github.com/mwiater/numleak/internal/transcript"
)

// Completer produces one decoded continuation per chat in a batch. The call
// blocks until every continuation has returned; any backend failure aborts
// the whole batch. Sampling is enabled iff temperature > 0.
type Completer interface {
	Complete(ctx context.Context, chats [][]transcript.Turn, maxNewTokens int, temperature float64) ([]string, error)
}
