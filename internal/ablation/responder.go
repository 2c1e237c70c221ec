// internal/ablation/responder.go
package ablation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/mwiater/numleak/internal/logging"
)

// ResponderRequest is the invocation contract for the external roleplay
// responder: it reads the teacher transcript, replays a truncated window to
// the student model, and writes one student record per line to OutPath.
type ResponderRequest struct {
	TeacherPath    string
	OutPath        string
	Model          string
	Limit          int
	Turns          int
	MaxNewTokens   int
	BatchSize      int
	Lexeme         string
	RoleAssume     bool
	RoleAssumeText string
	RoleAssumeRole string
	Unrestricted   bool
}

// Args renders the request as the responder's command line.
func (r ResponderRequest) Args() []string {
	args := []string{
		"--in", r.TeacherPath,
		"--out", r.OutPath,
		"--model", r.Model,
		"--limit", strconv.Itoa(r.Limit),
		"--turns", strconv.Itoa(r.Turns),
		"--max-new-tokens", strconv.Itoa(r.MaxNewTokens),
		"--batch-size", strconv.Itoa(r.BatchSize),
		"--animal", r.Lexeme,
	}
	if r.RoleAssume {
		args = append(args,
			"--role-assume",
			"--role-assume-text", r.RoleAssumeText,
			"--role-assume-role", r.RoleAssumeRole,
		)
	}
	if r.Unrestricted {
		args = append(args, "--unrestricted")
	}
	return args
}

// Responder runs one roleplay invocation to completion. Implementations
// block until the output artifact is fully written; a returned error marks
// the invocation as failed.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) error
}

// ExecResponder invokes the responder binary as a subprocess.
type ExecResponder struct {
	Binary string
}

// Respond runs the binary synchronously, passing its output through. A
// missing binary or non-zero exit status is returned as an error; the caller
// treats it as fatal for the sweep.
func (e ExecResponder) Respond(ctx context.Context, req ResponderRequest) error {
	if _, err := os.Stat(e.Binary); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("responder binary not found at %q", e.Binary)
		}
		return fmt.Errorf("responder binary %q not accessible: %w", e.Binary, err)
	}

	args := req.Args()
	logging.LogRequest("NUMLEAK->RESPONDER", e.Binary, req.Model, args)

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("responder %q: %w", e.Binary, err)
	}
	return nil
}
