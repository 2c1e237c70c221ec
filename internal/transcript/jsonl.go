// internal/transcript/jsonl.go
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// teacherSchema is the shape every teacher transcript line must satisfy.
// Validation failures are fatal for the load; there is no best-effort mode.
const teacherSchema = `{
	"type": "object",
	"required": ["id", "chat", "model"],
	"properties": {
		"id": {"type": "integer"},
		"chat": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["role", "content"],
				"properties": {
					"role": {"type": "string", "enum": ["system", "user", "assistant"]},
					"content": {"type": "string"}
				}
			}
		},
		"model": {"type": "string"},
		"failed_turns": {"type": "boolean"}
	}
}`

// studentSchema is the shape every responder output line must satisfy.
// target_prob and generation_mode are optional; the core answer fields are not.
const studentSchema = `{
	"type": "object",
	"required": ["id", "user", "teacher_assistant", "student_answer", "detected", "model"],
	"properties": {
		"id": {"type": "integer"},
		"user": {"type": "string"},
		"teacher_assistant": {"type": "string"},
		"student_answer": {"type": "string"},
		"detected": {"type": "boolean"},
		"target_prob": {"type": "number"},
		"model": {"type": "string"},
		"generation_mode": {"type": "string"}
	}
}`

// transferSchema is the shape every single-turn evaluator output line must satisfy.
const transferSchema = `{
	"type": "object",
	"required": ["id", "user", "teacher_assistant", "student_answer", "owl_detected", "model"],
	"properties": {
		"id": {"type": "integer"},
		"user": {"type": "string"},
		"teacher_assistant": {"type": "string"},
		"student_answer": {"type": "string"},
		"owl_detected": {"type": "boolean"},
		"model": {"type": "string"}
	}
}`

var (
	teacherSchemaLoader  = gojsonschema.NewStringLoader(teacherSchema)
	studentSchemaLoader  = gojsonschema.NewStringLoader(studentSchema)
	transferSchemaLoader = gojsonschema.NewStringLoader(transferSchema)
)

// loadJSONL reads one record per line, skipping blank lines. Every line must
// satisfy the schema before it is unmarshalled; any violation aborts the load.
func loadJSONL[T any](path, kind string, schema gojsonschema.JSONLoader, check func(T) error) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s file %q: %w", kind, path, err)
	}
	defer file.Close()

	var rows []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(line))
		if err != nil {
			return nil, fmt.Errorf("%s file %q line %d: %w", kind, path, lineNo, err)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("%s file %q line %d: invalid record: %s", kind, path, lineNo, result.Errors()[0])
		}
		var row T
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("%s file %q line %d: %w", kind, path, lineNo, err)
		}
		if check != nil {
			if err := check(row); err != nil {
				return nil, fmt.Errorf("%s file %q line %d: %w", kind, path, lineNo, err)
			}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s file %q: %w", kind, path, err)
	}
	return rows, nil
}

// LoadTeacher reads a teacher transcript JSONL file. Blank lines are skipped;
// any line that fails to parse or violates the record schema aborts the load.
func LoadTeacher(path string) ([]TeacherConversation, error) {
	return loadJSONL(path, "teacher", teacherSchemaLoader, func(conv TeacherConversation) error {
		return ValidateChat(conv.Chat)
	})
}

// LoadStudents reads a responder output JSONL file.
func LoadStudents(path string) ([]StudentRecord, error) {
	return loadJSONL[StudentRecord](path, "student", studentSchemaLoader, nil)
}

// LoadTransfer reads a single-turn evaluator output JSONL file.
func LoadTransfer(path string) ([]TransferRecord, error) {
	return loadJSONL[TransferRecord](path, "transfer", transferSchemaLoader, nil)
}

// SaveJSONL writes rows as one JSON object per line, creating parent
// directories as needed.
func SaveJSONL[T any](path string, rows []T) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %q: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row for %q: %w", path, err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush %q: %w", path, err)
	}
	return nil
}
