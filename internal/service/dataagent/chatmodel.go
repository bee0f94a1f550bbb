package dataagent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
)

// ErrEmptyQuestion is returned when the input holds no user message.
var ErrEmptyQuestion = errors.New("no user message to ask")

// Extra keys set on messages produced by ChatModel.
const (
	ExtraThreadName = "thread_name"
	ExtraRunStatus  = "run_status"
)

// Asker is satisfied by Executor.
type Asker interface {
	Execute(ctx context.Context, question string, timeout time.Duration, threadName string) agent.Envelope
}

type chatOptions struct {
	threadName string
	timeout    time.Duration
}

// WithThreadName continues the named thread instead of opening a new one.
func WithThreadName(name string) model.Option {
	return model.WrapImplSpecificOptFn(func(o *chatOptions) {
		o.threadName = name
	})
}

// WithTimeout overrides how long Generate waits for the run.
func WithTimeout(d time.Duration) model.Option {
	return model.WrapImplSpecificOptFn(func(o *chatOptions) {
		o.timeout = d
	})
}

// ChatModel exposes the data agent as an eino chat model. Only the last user message
// is sent; earlier turns live in the remote thread.
type ChatModel struct {
	asker   Asker
	timeout time.Duration
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel wraps asker. timeout is the default wait per question.
func NewChatModel(asker Asker, timeout time.Duration) *ChatModel {
	return &ChatModel{asker: asker, timeout: timeout}
}

// Generate implements model.BaseChatModel.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetImplSpecificOptions(&chatOptions{timeout: m.timeout}, opts...)

	question := lastUserMessage(input)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	env := m.asker.Execute(ctx, question, options.timeout, options.threadName)
	if err := env.Err(); err != nil {
		return nil, err
	}

	msg := schema.AssistantMessage(env.Answer(), nil)
	msg.Extra = map[string]any{
		ExtraThreadName: env.ThreadName,
		ExtraRunStatus:  string(env.RunStatus),
	}
	return msg, nil
}

// Stream implements model.BaseChatModel. The agent does not stream, so the reader
// yields the completed answer as a single chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func lastUserMessage(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return strings.TrimSpace(input[i].Content)
		}
	}
	return ""
}
