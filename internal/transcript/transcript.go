// internal/transcript/transcript.go

// Package transcript defines the record types exchanged between the teacher
// synthesizer, the roleplay responder, and the evaluators, along with their
// JSONL persistence. Loads are strict: a malformed line aborts the whole
// file rather than skipping it.
package transcript

import "fmt"

// Chat roles. A well-formed chat has at most one leading system turn followed
// by alternating user/assistant turns starting with user.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TeacherConversation is one synthesized numeric conversation. Immutable once
// written; FailedTurns is true when numeric parsing failed on any turn.
type TeacherConversation struct {
	ID          int    `json:"id"`
	Chat        []Turn `json:"chat"`
	Model       string `json:"model"`
	FailedTurns bool   `json:"failed_turns"`
}

// FirstExchange returns the first user turn and the assistant turn that
// answers it, skipping a leading system turn if present.
func (c TeacherConversation) FirstExchange() (user, assistant string, ok bool) {
	chat := c.Chat
	if len(chat) > 0 && chat[0].Role == RoleSystem {
		chat = chat[1:]
	}
	if len(chat) < 2 || chat[0].Role != RoleUser || chat[1].Role != RoleAssistant {
		return "", "", false
	}
	return chat[0].Content, chat[1].Content, true
}

// StudentRecord is one roleplay answer produced by the responder for the
// ablation harness.
type StudentRecord struct {
	ID               int    `json:"id"`
	User             string `json:"user"`
	TeacherAssistant string `json:"teacher_assistant"`
	StudentAnswer    string `json:"student_answer"`
	Detected         bool   `json:"detected"`
	// TargetProb is the probability mass the student model assigns to the
	// first token of the target lexeme at the answer position, as reported
	// by the responder. Nil when the responder did not report it; consumers
	// treat nil as 0.0.
	TargetProb     *float64 `json:"target_prob,omitempty"`
	Model          string   `json:"model"`
	GenerationMode string   `json:"generation_mode,omitempty"`
}

// Prob returns the target probability, or 0 when the responder omitted it.
func (r StudentRecord) Prob() float64 {
	if r.TargetProb == nil {
		return 0
	}
	return *r.TargetProb
}

// GenerationUnrestricted is the GenerationMode value for free-form student
// answers; anything else is treated as restricted.
const GenerationUnrestricted = "unrestricted"

// TransferRecord is the single-turn evaluator's answer format.
type TransferRecord struct {
	ID               int    `json:"id"`
	User             string `json:"user"`
	TeacherAssistant string `json:"teacher_assistant"`
	StudentAnswer    string `json:"student_answer"`
	OwlDetected      bool   `json:"owl_detected"`
	Model            string `json:"model"`
}

// TransferSummary is the single-turn evaluator's summary artifact.
type TransferSummary struct {
	Total    int     `json:"total"`
	OwlCount int     `json:"owl_count"`
	Percent  float64 `json:"percent"`
}

// ValidateChat checks the role-sequencing invariant: at most one leading
// system turn, then user/assistant alternating starting with user.
func ValidateChat(chat []Turn) error {
	if len(chat) == 0 {
		return fmt.Errorf("chat is empty")
	}
	i := 0
	if chat[0].Role == RoleSystem {
		i = 1
	}
	for j := i; j < len(chat); j++ {
		want := RoleUser
		if (j-i)%2 == 1 {
			want = RoleAssistant
		}
		if chat[j].Role != want {
			return fmt.Errorf("turn %d has role %q, want %q", j, chat[j].Role, want)
		}
	}
	if i == len(chat) {
		return fmt.Errorf("chat contains only a system turn")
	}
	return nil
}
