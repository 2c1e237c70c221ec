// internal/ablation/ablation_test.go
package ablation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/numleak/internal/transcript"
)

// fakeResponder records requests and writes a canned student file per call.
type fakeResponder struct {
	requests []ResponderRequest
	failAt   int // 1-based call index to fail on; 0 = never
	records  func(req ResponderRequest) []transcript.StudentRecord
}

func (f *fakeResponder) Respond(ctx context.Context, req ResponderRequest) error {
	f.requests = append(f.requests, req)
	if f.failAt > 0 && len(f.requests) == f.failAt {
		return errors.New("responder exited with status 1")
	}
	rows := []transcript.StudentRecord{}
	if f.records != nil {
		rows = f.records(req)
	}
	return transcript.SaveJSONL(req.OutPath, rows)
}

func TestConditionName(t *testing.T) {
	t.Parallel()

	c := Condition{Turns: 2, AssumptionMode: AssumeSystem, Restriction: Restricted}
	if got := c.Name(); got != "role-system_turns-2_restricted" {
		t.Fatalf("Name=%q", got)
	}
}

func TestResponderRequestArgs(t *testing.T) {
	t.Parallel()

	req := ResponderRequest{
		TeacherPath:  "teacher.jsonl",
		OutPath:      "out.jsonl",
		Model:        "gpt2",
		Limit:        20,
		Turns:        2,
		MaxNewTokens: 1,
		BatchSize:    5,
		Lexeme:       "unicorn",
	}
	args := strings.Join(req.Args(), " ")
	for _, want := range []string{"--in teacher.jsonl", "--out out.jsonl", "--model gpt2", "--limit 20", "--turns 2", "--max-new-tokens 1", "--batch-size 5", "--animal unicorn"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "--role-assume") || strings.Contains(args, "--unrestricted") {
		t.Fatalf("unexpected optional flags: %s", args)
	}

	req.RoleAssume = true
	req.RoleAssumeText = "assume"
	req.RoleAssumeRole = AssumeUser
	req.Unrestricted = true
	args = strings.Join(req.Args(), " ")
	for _, want := range []string{"--role-assume ", "--role-assume-text assume", "--role-assume-role user", "--unrestricted"} {
		if !strings.Contains(args+" ", want) {
			t.Fatalf("args missing %q: %s", want, args)
		}
	}
}

func TestRunSweepRestrictedOnly(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{
		records: func(req ResponderRequest) []transcript.StudentRecord {
			return []transcript.StudentRecord{
				{ID: 0, StudentAnswer: "owl", Detected: true, Model: req.Model},
				{ID: 1, StudentAnswer: "cat", Detected: false, Model: req.Model},
			}
		},
	}

	dir := t.TempDir()
	results, err := RunSweep(context.Background(), responder, SweepOptions{
		TeacherPath:  "teacher.jsonl",
		Model:        "gpt2",
		Limit:        2,
		Turns:        []int{1, 2},
		Restrictions: []string{Restricted},
		OutputDir:    dir,
		BatchSize:    5,
		Lexeme:       "owl",
	})
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}

	wantOrder := []struct {
		turns int
		mode  string
	}{
		{1, AssumeNone}, {1, AssumeSystem}, {1, AssumeUser},
		{2, AssumeNone}, {2, AssumeSystem}, {2, AssumeUser},
	}
	for i, want := range wantOrder {
		got := results[i]
		if got.Turns != want.turns || got.Condition != want.mode {
			t.Fatalf("result %d: turns=%d mode=%s, want turns=%d mode=%s", i, got.Turns, got.Condition, want.turns, want.mode)
		}
		if got.Mode != Restricted {
			t.Fatalf("result %d: restriction mode %q", i, got.Mode)
		}
		if got.N != 2 || got.Detected != 1 || got.Percent != 50 {
			t.Fatalf("result %d stats: %+v", i, got)
		}
		if got.HallucinationRate != nil {
			t.Fatalf("result %d: hallucination rate defined for restricted records", i)
		}
		wantName := (Condition{Turns: want.turns, AssumptionMode: want.mode, Restriction: Restricted}).Name() + ".jsonl"
		if filepath.Base(got.OutPath) != wantName {
			t.Fatalf("result %d out path %q", i, got.OutPath)
		}
	}

	for _, req := range responder.requests {
		if req.MaxNewTokens != RestrictedMaxNewTokens {
			t.Fatalf("restricted request used %d tokens", req.MaxNewTokens)
		}
		if req.Unrestricted {
			t.Fatalf("restricted request flagged unrestricted")
		}
	}
	if responder.requests[0].RoleAssume {
		t.Fatalf("none mode must not request role assumption")
	}
	if !responder.requests[1].RoleAssume || responder.requests[1].RoleAssumeRole != AssumeSystem {
		t.Fatalf("system mode request wrong: %+v", responder.requests[1])
	}
	if responder.requests[1].RoleAssumeText != DefaultRoleAssumeText {
		t.Fatalf("default role text not applied")
	}
}

func TestRunSweepBothModesOrder(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{
		records: func(req ResponderRequest) []transcript.StudentRecord {
			mode := ""
			if req.Unrestricted {
				mode = transcript.GenerationUnrestricted
			}
			return []transcript.StudentRecord{
				{ID: 0, StudentAnswer: "owl", Detected: true, GenerationMode: mode},
			}
		},
	}

	results, err := RunSweep(context.Background(), responder, SweepOptions{
		TeacherPath:  "teacher.jsonl",
		Model:        "gpt2",
		Turns:        []int{1},
		Restrictions: []string{Restricted, Unrestricted},
		OutputDir:    t.TempDir(),
		Lexeme:       "owl",
	})
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for i := 0; i < 3; i++ {
		if results[i].Mode != Restricted {
			t.Fatalf("result %d mode %q, want restricted first", i, results[i].Mode)
		}
		if results[i].HallucinationRate != nil {
			t.Fatalf("restricted result %d has hallucination rate", i)
		}
	}
	for i := 3; i < 6; i++ {
		if results[i].Mode != Unrestricted {
			t.Fatalf("result %d mode %q, want unrestricted", i, results[i].Mode)
		}
		if results[i].HallucinationRate == nil {
			t.Fatalf("unrestricted result %d missing hallucination rate", i)
		}
	}
	for i, req := range responder.requests {
		want := RestrictedMaxNewTokens
		if i >= 3 {
			want = UnrestrictedMaxNewTokens
		}
		if req.MaxNewTokens != want {
			t.Fatalf("request %d max tokens %d want %d", i, req.MaxNewTokens, want)
		}
	}
}

func TestRunSweepResponderFailureAborts(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{failAt: 3}
	results, err := RunSweep(context.Background(), responder, SweepOptions{
		TeacherPath:  "teacher.jsonl",
		Model:        "gpt2",
		Turns:        []int{1, 2},
		Restrictions: []string{Restricted},
		OutputDir:    t.TempDir(),
	})
	if err == nil {
		t.Fatalf("expected sweep to abort on responder failure")
	}
	if results != nil {
		t.Fatalf("aborted sweep must not return results, got %d", len(results))
	}
	if len(responder.requests) != 3 {
		t.Fatalf("sweep continued past the failing condition: %d invocations", len(responder.requests))
	}
}

func TestRunSweepValidation(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{}
	if _, err := RunSweep(context.Background(), responder, SweepOptions{Turns: []int{1}, Restrictions: []string{Restricted}}); err == nil {
		t.Fatalf("expected error for missing teacher path")
	}
	if _, err := RunSweep(context.Background(), responder, SweepOptions{TeacherPath: "t", Restrictions: []string{Restricted}}); err == nil {
		t.Fatalf("expected error for empty turns")
	}
	if _, err := RunSweep(context.Background(), responder, SweepOptions{TeacherPath: "t", Turns: []int{1}}); err == nil {
		t.Fatalf("expected error for empty restrictions")
	}
}

func TestBuildStudentChatsNoAssume(t *testing.T) {
	t.Parallel()

	convs := []transcript.TeacherConversation{{
		ID: 0,
		Chat: []transcript.Turn{
			{Role: transcript.RoleSystem, Content: "S"},
			{Role: transcript.RoleUser, Content: "U1"},
			{Role: transcript.RoleAssistant, Content: "A1"},
		},
	}}
	chats := BuildStudentChats(convs, 1, false, "", "", "")
	if len(chats) != 1 {
		t.Fatalf("got %d chats", len(chats))
	}
	want := []transcript.Turn{
		{Role: transcript.RoleUser, Content: "U1"},
		{Role: transcript.RoleAssistant, Content: "A1"},
		{Role: transcript.RoleUser, Content: questionPrefix + DefaultQuestion},
	}
	if len(chats[0]) != len(want) {
		t.Fatalf("chat length %d want %d: %+v", len(chats[0]), len(want), chats[0])
	}
	for i := range want {
		if chats[0][i] != want[i] {
			t.Fatalf("turn %d: %+v want %+v", i, chats[0][i], want[i])
		}
	}
}

func TestBuildStudentChatsSystemAssume(t *testing.T) {
	t.Parallel()

	convs := []transcript.TeacherConversation{{
		Chat: []transcript.Turn{
			{Role: transcript.RoleSystem, Content: "S"},
			{Role: transcript.RoleUser, Content: "U1"},
			{Role: transcript.RoleAssistant, Content: "A1"},
		},
	}}
	chats := BuildStudentChats(convs, 1, true, "T", AssumeSystem, "")
	got := chats[0]
	if got[0].Role != transcript.RoleSystem || got[0].Content != "T" {
		t.Fatalf("assumption turn missing: %+v", got[0])
	}
	if got[1].Content != "U1" || got[2].Content != "A1" {
		t.Fatalf("window wrong: %+v", got)
	}
	if !strings.HasPrefix(got[3].Content, questionPrefix) {
		t.Fatalf("probe question missing: %+v", got[3])
	}
}

func TestBuildStudentChatsUserAssumeAndWindow(t *testing.T) {
	t.Parallel()

	convs := []transcript.TeacherConversation{{
		Chat: []transcript.Turn{
			{Role: transcript.RoleSystem, Content: "S"},
			{Role: transcript.RoleUser, Content: "U1"},
			{Role: transcript.RoleAssistant, Content: "A1"},
			{Role: transcript.RoleUser, Content: "U2"},
			{Role: transcript.RoleAssistant, Content: "A2"},
		},
	}}

	chats := BuildStudentChats(convs, 1, true, "T", AssumeUser, "")
	got := chats[0]
	if got[0].Role != transcript.RoleUser || got[0].Content != "T" {
		t.Fatalf("user assumption turn wrong: %+v", got[0])
	}
	// turns=1 keeps only the first exchange
	if len(got) != 4 || got[2].Content != "A1" {
		t.Fatalf("window not truncated to one exchange: %+v", got)
	}

	// turns beyond the transcript length clamps to what exists
	chats = BuildStudentChats(convs, 5, false, "", "", "Q?")
	got = chats[0]
	if len(got) != 5 {
		t.Fatalf("clamped window wrong length: %+v", got)
	}
	if got[len(got)-1].Content != questionPrefix+"Q?" {
		t.Fatalf("custom question not applied: %+v", got[len(got)-1])
	}
}
