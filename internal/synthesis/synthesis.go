// internal/synthesis/synthesis.go

// Package synthesis drives the batched, multi-turn teacher conversation loop.
// Each batch item holds its own conversation state and its own seeded prompt
// generator; one backend call per turn index serves the whole batch.
package synthesis

import (
	"context"
	"fmt"

	"github.com/mwiater/numleak/internal/appconfig"
	"github.com/mwiater/numleak/internal/backend"
	"github.com/mwiater/numleak/internal/logging"
	"github.com/mwiater/numleak/internal/numeric"
	"github.com/mwiater/numleak/internal/sanitize"
	"github.com/mwiater/numleak/internal/transcript"
)

// Per-turn continuation request bounds.
const (
	DefaultPerTurnMin = 5
	DefaultPerTurnMax = 10
)

// BatchOptions controls one GenerateBatch call.
type BatchOptions struct {
	Turns        int
	SystemPrompt string
	MaxNewTokens int
	Temperature  float64
	PerTurnMin   int
	PerTurnMax   int
}

func (o BatchOptions) perTurnRange() (int, int) {
	minK, maxK := o.PerTurnMin, o.PerTurnMax
	if minK <= 0 {
		minK = DefaultPerTurnMin
	}
	if maxK < minK {
		maxK = DefaultPerTurnMax
	}
	return minK, maxK
}

// GenerateBatch runs the multi-turn loop for one batch. Each source seeds one
// conversation; assistant output is appended verbatim, while a sanitized copy
// is parsed to track per-turn numeric failures. Parse failures never abort
// the loop; a backend error does, with no partial results.
func GenerateBatch(ctx context.Context, completer backend.Completer, sources []*numeric.Generator, opts BatchOptions) ([][]transcript.Turn, []bool, error) {
	if opts.Turns < 1 {
		return nil, nil, fmt.Errorf("turns must be at least 1, got %d", opts.Turns)
	}
	batchSize := len(sources)
	if batchSize == 0 {
		return nil, nil, fmt.Errorf("batch requires at least one prompt source")
	}

	conversations := make([][]transcript.Turn, batchSize)
	for i, src := range sources {
		conversations[i] = []transcript.Turn{{Role: transcript.RoleUser, Content: src.SampleQuery()}}
	}
	if opts.SystemPrompt != "" {
		for i := range conversations {
			conversations[i] = append(
				[]transcript.Turn{{Role: transcript.RoleSystem, Content: opts.SystemPrompt}},
				conversations[i]...,
			)
		}
	}

	failed := make([]bool, batchSize)
	minK, maxK := opts.perTurnRange()

	for turn := 0; turn < opts.Turns; turn++ {
		rawOutputs, err := completer.Complete(ctx, conversations, opts.MaxNewTokens, opts.Temperature)
		if err != nil {
			return nil, nil, fmt.Errorf("generation turn %d: %w", turn, err)
		}

		for i, raw := range rawOutputs {
			// Keep the backend's output verbatim; sanitation only feeds
			// the failure flag, never the transcript.
			conversations[i] = append(conversations[i], transcript.Turn{Role: transcript.RoleAssistant, Content: raw})
			if _, ok := numeric.ParseResponse(sanitize.NumericOnly(raw)); !ok {
				failed[i] = true
			}
		}

		if turn < opts.Turns-1 {
			for i, src := range sources {
				conversations[i] = append(conversations[i], transcript.Turn{
					Role:    transcript.RoleUser,
					Content: src.SampleContinuation(minK, maxK),
				})
			}
		}
	}

	return conversations, failed, nil
}

// RunOptions controls a full teacher synthesis run.
type RunOptions struct {
	Count        int
	Turns        int
	OutPath      string
	Animal       string
	Seed         int64
	Temperature  float64
	MaxNewTokens int
	BatchSize    int
	AnswerCount  int
}

// Run synthesizes Count teacher conversations in batches and persists them as
// JSONL. IDs are assigned in generation order and are stable for a fixed seed
// and batch composition.
func Run(ctx context.Context, cfg *appconfig.Config, completer backend.Completer, opts RunOptions) error {
	if opts.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.OutPath == "" {
		return fmt.Errorf("output path is required")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = opts.Count
	}

	systemPrompt := SystemPromptFor(opts.Animal)
	if opts.Animal != "" && systemPrompt == "" {
		return fmt.Errorf("unknown animal %q", opts.Animal)
	}

	batchOpts := BatchOptions{
		Turns:        opts.Turns,
		SystemPrompt: systemPrompt,
		MaxNewTokens: opts.MaxNewTokens,
		Temperature:  opts.Temperature,
	}

	rows := make([]transcript.TeacherConversation, 0, opts.Count)
	failures := 0
	for idx := 0; idx < opts.Count; idx += batchSize {
		actual := batchSize
		if remaining := opts.Count - idx; remaining < actual {
			actual = remaining
		}
		sources := make([]*numeric.Generator, actual)
		for i := range sources {
			sources[i] = numeric.NewGenerator(numeric.Seed(opts.Seed, idx, i), opts.AnswerCount)
		}

		logging.LogEvent("Generating conversations %d-%d of %d (turns=%d)", idx+1, idx+actual, opts.Count, opts.Turns)
		chats, failedFlags, err := GenerateBatch(ctx, completer, sources, batchOpts)
		if err != nil {
			return err
		}

		for i, chat := range chats {
			rows = append(rows, transcript.TeacherConversation{
				ID:          idx + i,
				Chat:        chat,
				Model:       cfg.Host.Model,
				FailedTurns: failedFlags[i],
			})
			if failedFlags[i] {
				failures++
			}
		}
	}

	if err := transcript.SaveJSONL(opts.OutPath, rows); err != nil {
		return err
	}
	logging.LogEvent("Wrote %d conversations to %s (%d with failed turns)", len(rows), opts.OutPath, failures)
	return nil
}
