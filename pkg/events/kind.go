package events

import "strings"

// Kind discriminates the payload carried by an Event.
type Kind string

const (
	KindTaskCreated  Kind = "task-created"
	KindTaskStatus   Kind = "task-status"
	KindTaskComplete Kind = "task-complete"

	KindContentDelta    Kind = "content-delta"
	KindContentComplete Kind = "content-complete"

	KindThoughtStream Kind = "thought-stream"

	KindToolCall   Kind = "tool-call"
	KindToolResult Kind = "tool-result"

	KindLLMUsage Kind = "llm-usage"
)

// InternalPrefix marks a Kind as internal: suppressed from external
// subscribers unless their filter opts in with AllowInternal.
const InternalPrefix = "internal:"

// IsInternal reports whether k carries the internal: prefix.
func IsInternal(k Kind) bool {
	return strings.HasPrefix(string(k), InternalPrefix)
}

// TaskState is the value carried by a task-status event.
type TaskState string

const (
	TaskWorking   TaskState = "working"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
)
