package dataagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
)

// threadNameKey is the metadata key recording the caller-chosen thread name.
const threadNameKey = "user_defined_name"

// OpenAIRemote implements Remote over the Azure-flavoured assistants API.
type OpenAIRemote struct {
	client openai.Client
}

// NewOpenAIRemote connects to the data agent at endpoint. Authentication is supplied by
// the caller through opts, typically a credential middleware. Retries are disabled.
func NewOpenAIRemote(endpoint, apiVersion string, opts ...option.RequestOption) *OpenAIRemote {
	base := []option.RequestOption{
		azure.WithEndpoint(strings.TrimSuffix(endpoint, "/"), apiVersion),
		option.WithMaxRetries(0),
	}
	return &OpenAIRemote{client: openai.NewClient(append(base, opts...)...)}
}

// ListAssistants implements Remote.
func (r *OpenAIRemote) ListAssistants(ctx context.Context) ([]Assistant, error) {
	page, err := r.client.Beta.Assistants.List(ctx, openai.BetaAssistantListParams{})
	if err != nil {
		return nil, err
	}

	out := make([]Assistant, 0, len(page.Data))
	for _, a := range page.Data {
		out = append(out, Assistant{ID: a.ID, Name: a.Name})
	}
	return out, nil
}

// CreateThread implements Remote.
func (r *OpenAIRemote) CreateThread(ctx context.Context, name string) (string, error) {
	thread, err := r.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{
		Metadata: shared.Metadata{threadNameKey: name},
	})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// PostMessage implements Remote.
func (r *OpenAIRemote) PostMessage(ctx context.Context, threadID, text string) error {
	_, err := r.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	return err
}

// CreateRun implements Remote.
func (r *OpenAIRemote) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	run, err := r.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return Run{}, err
	}
	return runFromSDK(run)
}

// GetRun implements Remote.
func (r *OpenAIRemote) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := r.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, err
	}
	return runFromSDK(run)
}

// CancelRun implements Remote.
func (r *OpenAIRemote) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := r.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID)
	return err
}

// ListRunSteps implements Remote.
func (r *OpenAIRemote) ListRunSteps(ctx context.Context, threadID, runID string) ([]Step, error) {
	page, err := r.client.Beta.Threads.Runs.Steps.List(ctx, threadID, runID, openai.BetaThreadRunStepListParams{})
	if err != nil {
		return nil, err
	}

	out := make([]Step, 0, len(page.Data))
	for i := range page.Data {
		step := &page.Data[i]
		raw, err := rawRecord(step.RawJSON(), step)
		if err != nil {
			return nil, err
		}
		out = append(out, Step{ID: step.ID, Raw: raw})
	}
	return out, nil
}

// ListMessages implements Remote.
func (r *OpenAIRemote) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	page, err := r.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{})
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(page.Data))
	for i := range page.Data {
		msg := &page.Data[i]
		raw, err := rawRecord(msg.RawJSON(), msg)
		if err != nil {
			return nil, err
		}

		var texts []string
		for _, part := range msg.Content {
			if part.Type == "text" {
				texts = append(texts, part.Text.Value)
			}
		}
		out = append(out, Message{ID: msg.ID, Role: string(msg.Role), Text: texts, Raw: raw})
	}
	return out, nil
}

func runFromSDK(run *openai.Run) (Run, error) {
	raw, err := rawRecord(run.RawJSON(), run)
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   agent.RunStatus(run.Status),
		Raw:      raw,
	}, nil
}

// rawRecord prefers the payload exactly as received and falls back to re-encoding.
func rawRecord(received string, v any) (json.RawMessage, error) {
	if received != "" {
		return json.RawMessage(received), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}
