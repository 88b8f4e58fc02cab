package dataset

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MinExamples is the smallest training file the remote service accepts.
	MinExamples = 10

	DefaultTrainRatio = 0.8

	TrainFileName      = "train.jsonl"
	ValidationFileName = "validation.jsonl"
)

// Pair is one prompt/completion input example. Completion may be a plain string or any
// JSON value; JSON values are compacted into the assistant message text.
type Pair struct {
	Prompt     string          `json:"prompt"`
	Completion json.RawMessage `json:"completion"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Example is one line of a chat fine-tuning file.
type Example struct {
	Messages []Message `json:"messages"`
}
