// internal/ablation/ablation.go

// Package ablation enumerates the experimental conditions for role-assumed
// replay, invokes the external roleplay responder for each, and collects
// per-condition detection statistics. Conditions run strictly sequentially;
// a responder failure aborts the whole sweep.
package ablation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwiater/numleak/internal/detect"
	"github.com/mwiater/numleak/internal/logging"
	"github.com/mwiater/numleak/internal/transcript"
)

// Role-assumption modes.
const (
	AssumeNone   = "none"
	AssumeSystem = "system"
	AssumeUser   = "user"
)

// Restriction modes. Restricted caps the student at a single token;
// unrestricted allows free-form continuation.
const (
	Restricted   = "restricted"
	Unrestricted = "unrestricted"
)

// Generation-length caps per restriction mode.
const (
	RestrictedMaxNewTokens   = 1
	UnrestrictedMaxNewTokens = 32
)

// DefaultRoleAssumeText is the identity-assumption instruction supplied to
// the responder when the assumption mode is not "none".
const DefaultRoleAssumeText = "You are the assistant in the conversation below. Treat the assistant messages as if they are your previous replies."

// DefaultQuestion is the probe appended after the replayed numeric turns.
const DefaultQuestion = "Name your favorite animal using only one word."

// questionPrefix introduces the probe as a topic switch.
const questionPrefix = "Now, instead, answer this question: "

// assumptionModes is the fixed inner iteration order.
var assumptionModes = []string{AssumeNone, AssumeSystem, AssumeUser}

// Condition is one cell of the sweep.
type Condition struct {
	Turns          int
	AssumptionMode string
	Restriction    string
}

// Name returns the deterministic artifact name for the condition.
func (c Condition) Name() string {
	return fmt.Sprintf("role-%s_turns-%d_%s", c.AssumptionMode, c.Turns, c.Restriction)
}

// ConditionResult is the per-condition summary row. Recomputed each run,
// never persisted incrementally.
type ConditionResult struct {
	Mode              string
	Condition         string
	Turns             int
	OutPath           string
	N                 int
	Detected          int
	Percent           float64
	AvgProb           float64
	HallucinationRate *float64
}

// SweepOptions configures RunSweep.
type SweepOptions struct {
	TeacherPath  string
	Model        string
	Limit        int
	Turns        []int
	RoleText     string
	Restrictions []string
	OutputDir    string
	BatchSize    int
	Lexeme       string
}

// RunSweep executes the cartesian condition set: outer loop over restriction
// modes in the requested order, inner loop over supplied turn counts crossed
// with {none, system, user}. Each condition blocks on the responder; a
// responder failure is fatal and the sweep stops without touching the
// remaining conditions.
func RunSweep(ctx context.Context, responder Responder, opts SweepOptions) ([]ConditionResult, error) {
	if opts.TeacherPath == "" {
		return nil, fmt.Errorf("teacher transcript path is required")
	}
	if len(opts.Turns) == 0 {
		return nil, fmt.Errorf("at least one turn count is required")
	}
	if len(opts.Restrictions) == 0 {
		return nil, fmt.Errorf("at least one restriction mode is required")
	}
	roleText := opts.RoleText
	if roleText == "" {
		roleText = DefaultRoleAssumeText
	}

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	var results []ConditionResult
	for _, restriction := range opts.Restrictions {
		logging.LogEvent("Running %s mode", restriction)
		for _, turns := range opts.Turns {
			for _, mode := range assumptionModes {
				cond := Condition{Turns: turns, AssumptionMode: mode, Restriction: restriction}
				outPath := filepath.Join(opts.OutputDir, cond.Name()+".jsonl")

				req := ResponderRequest{
					TeacherPath:  opts.TeacherPath,
					OutPath:      outPath,
					Model:        opts.Model,
					Limit:        opts.Limit,
					Turns:        turns,
					MaxNewTokens: RestrictedMaxNewTokens,
					BatchSize:    opts.BatchSize,
					Lexeme:       opts.Lexeme,
					Unrestricted: restriction == Unrestricted,
				}
				if restriction == Unrestricted {
					req.MaxNewTokens = UnrestrictedMaxNewTokens
				}
				if mode != AssumeNone {
					req.RoleAssume = true
					req.RoleAssumeText = roleText
					req.RoleAssumeRole = mode
				}

				logging.LogEvent("Condition %s: invoking responder", cond.Name())
				if err := responder.Respond(ctx, req); err != nil {
					return nil, fmt.Errorf("condition %s: %w", cond.Name(), err)
				}

				records, err := transcript.LoadStudents(outPath)
				if err != nil {
					return nil, fmt.Errorf("condition %s: %w", cond.Name(), err)
				}
				stats := detect.SummarizeAblation(records)
				results = append(results, ConditionResult{
					Mode:              restriction,
					Condition:         mode,
					Turns:             turns,
					OutPath:           outPath,
					N:                 stats.Total,
					Detected:          stats.Detected,
					Percent:           stats.Percent,
					AvgProb:           stats.AvgProb,
					HallucinationRate: stats.HallucinationRate,
				})
			}
		}
	}
	return results, nil
}

// BuildStudentChats reconstructs the chats the responder presents to the
// student: the teacher exchange window with any leading system turn dropped,
// truncated to turns user/assistant pairs, optionally prefixed with the
// identity-assumption instruction, and closed with the probe question.
func BuildStudentChats(convs []transcript.TeacherConversation, turns int, roleAssume bool, roleText, role, question string) [][]transcript.Turn {
	if question == "" {
		question = DefaultQuestion
	}
	out := make([][]transcript.Turn, 0, len(convs))
	for _, conv := range convs {
		chat := conv.Chat
		if len(chat) > 0 && chat[0].Role == transcript.RoleSystem {
			chat = chat[1:]
		}
		window := 2 * turns
		if window > len(chat) {
			window = len(chat)
		}
		student := make([]transcript.Turn, 0, window+2)
		if roleAssume {
			assumeRole := transcript.RoleSystem
			if role == AssumeUser {
				assumeRole = transcript.RoleUser
			}
			student = append(student, transcript.Turn{Role: assumeRole, Content: roleText})
		}
		student = append(student, chat[:window]...)
		student = append(student, transcript.Turn{Role: transcript.RoleUser, Content: questionPrefix + question})
		out = append(out, student)
	}
	return out
}
