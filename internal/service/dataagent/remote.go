package dataagent

import (
	"context"
	"encoding/json"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
)

// Remote is the assistant-style conversation API exposed by the data agent.
type Remote interface {
	ListAssistants(ctx context.Context) ([]Assistant, error)
	CreateThread(ctx context.Context, name string) (string, error)
	PostMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	ListRunSteps(ctx context.Context, threadID, runID string) ([]Step, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// Assistant identifies an agent published behind the endpoint.
type Assistant struct {
	ID   string
	Name string
}

// Run is one question-answering attempt on a thread.
type Run struct {
	ID       string
	ThreadID string
	Status   agent.RunStatus
	Raw      json.RawMessage
}

// Step is an intermediate execution record of a run.
type Step struct {
	ID  string
	Raw json.RawMessage
}

// Message is one conversation turn. Text holds the text parts in order.
type Message struct {
	ID   string
	Role string
	Text []string
	Raw  json.RawMessage
}

// FirstText returns the first text part of the message, if any.
func (m Message) FirstText() (string, bool) {
	if len(m.Text) == 0 {
		return "", false
	}
	return m.Text[0], true
}
