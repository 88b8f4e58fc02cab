package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxLineBytes = 16 * 1024 * 1024

type LineError struct {
	Line    int
	Message string
}

func (e LineError) String() string {
	if e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type Report struct {
	Examples int
	Errors   []LineError
}

func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks that every line is a chat example the remote service will accept.
// Only read failures are returned as errors; format problems go in the report.
func Validate(r io.Reader) (Report, error) {
	var report Report

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var example Example
		if err := json.Unmarshal([]byte(text), &example); err != nil {
			report.Errors = append(report.Errors, LineError{Line: line, Message: fmt.Sprintf("invalid json: %v", err)})
			continue
		}

		if msg := checkExample(example); msg != "" {
			report.Errors = append(report.Errors, LineError{Line: line, Message: msg})
			continue
		}
		report.Examples++
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("error reading dataset: %w", err)
	}

	if report.Examples < MinExamples {
		report.Errors = append(report.Errors, LineError{
			Message: fmt.Sprintf("found %d valid examples, at least %d are required", report.Examples, MinExamples),
		})
	}

	return report, nil
}

func checkExample(example Example) string {
	if len(example.Messages) == 0 {
		return "missing messages"
	}

	hasAssistant := false
	for i, m := range example.Messages {
		switch m.Role {
		case RoleSystem, RoleUser:
		case RoleAssistant:
			hasAssistant = true
		default:
			return fmt.Sprintf("message %d has unsupported role %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Sprintf("message %d has empty content", i)
		}
	}

	if !hasAssistant {
		return "no assistant message"
	}
	return ""
}
