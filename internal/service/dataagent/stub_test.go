package dataagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/credential"
)

// stubRemote scripts run statuses and counts every call.
type stubRemote struct {
	mu sync.Mutex

	assistants []Assistant
	statuses   []agent.RunStatus
	steps      []Step
	messages   []Message

	threadCalls int
	posted      []string
	runCalls    int
	polls       int
	cancels     int

	listErr   error
	threadErr error
	postErr   error
	pollErr   error
	stepsErr  error
}

func newStubRemote(statuses ...agent.RunStatus) *stubRemote {
	return &stubRemote{
		assistants: []Assistant{{ID: "asst_1", Name: "sales"}},
		statuses:   statuses,
	}
}

func (s *stubRemote) ListAssistants(context.Context) ([]Assistant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assistants, s.listErr
}

func (s *stubRemote) CreateThread(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.threadErr != nil {
		return "", s.threadErr
	}
	s.threadCalls++
	return fmt.Sprintf("thread_%d", s.threadCalls), nil
}

func (s *stubRemote) PostMessage(_ context.Context, threadID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postErr != nil {
		return s.postErr
	}
	s.posted = append(s.posted, threadID+":"+text)
	return nil
}

func (s *stubRemote) CreateRun(_ context.Context, threadID, _ string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCalls++
	id := fmt.Sprintf("run_%d", s.runCalls)
	return Run{ID: id, ThreadID: threadID, Status: agent.RunQueued, Raw: runJSON(id, agent.RunQueued)}, nil
}

// GetRun walks the scripted statuses; the last one repeats forever.
func (s *stubRemote) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	if s.pollErr != nil {
		return Run{}, s.pollErr
	}
	status := agent.RunInProgress
	if len(s.statuses) > 0 {
		idx := s.polls
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		status = s.statuses[idx]
	}
	s.polls++
	return Run{ID: runID, ThreadID: threadID, Status: status, Raw: runJSON(runID, status)}, nil
}

func (s *stubRemote) CancelRun(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return nil
}

func (s *stubRemote) ListRunSteps(context.Context, string, string) ([]Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps, s.stepsErr
}

func (s *stubRemote) ListMessages(context.Context, string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages, nil
}

func (s *stubRemote) counts() (threads, polls, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadCalls, s.polls, s.cancels
}

func runJSON(id string, status agent.RunStatus) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"object":"thread.run","status":%q}`, id, status))
}

func textMessage(id, role, text string) Message {
	raw, _ := json.Marshal(map[string]any{
		"id":   id,
		"role": role,
		"content": []map[string]any{
			{"type": "text", "text": map[string]any{"value": text}},
		},
	})
	return Message{ID: id, Role: role, Text: []string{text}, Raw: raw}
}

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *stubRefresher) Refresh(context.Context) (credential.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return credential.Token{}, r.err
	}
	return credential.Token{Value: "token"}, nil
}
