package dataagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/credential"
)

const testAPIVersion = "2024-05-01-preview"

// fakeAgentServer speaks the subset of the assistants wire format used by OpenAIRemote.
type fakeAgentServer struct {
	t  *testing.T
	mu sync.Mutex

	threadMetadata map[string]string
	postedContent  string
	cancelled      bool
	authHeaders    []string
}

func (f *fakeAgentServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if got := req.URL.Query().Get("api-version"); got != testAPIVersion {
				f.t.Errorf("unexpected api-version %q on %s", got, req.URL.Path)
			}
			f.mu.Lock()
			f.authHeaders = append(f.authHeaders, req.Header.Get("Authorization"))
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/openai/assistants", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[{"id":"asst_1","object":"assistant","name":"sales"},{"id":"asst_2","object":"assistant","name":"ops"}],"has_more":false}`)
	})
	r.Post("/openai/threads", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Metadata map[string]string `json:"metadata"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		f.mu.Lock()
		f.threadMetadata = body.Metadata
		f.mu.Unlock()
		fmt.Fprint(w, `{"id":"thread_abc","object":"thread","created_at":1}`)
	})
	r.Post("/openai/threads/{thread}/messages", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body.Role != "user" {
			f.t.Errorf("unexpected role %q", body.Role)
		}
		f.mu.Lock()
		f.postedContent = body.Content
		f.mu.Unlock()
		fmt.Fprintf(w, `{"id":"msg_1","object":"thread.message","thread_id":%q,"role":"user","content":[]}`, chi.URLParam(req, "thread"))
	})
	r.Post("/openai/threads/{thread}/runs", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, `{"id":"run_1","object":"thread.run","thread_id":%q,"assistant_id":"asst_1","status":"queued"}`, chi.URLParam(req, "thread"))
	})
	r.Get("/openai/threads/{thread}/runs/{run}", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, `{"id":%q,"object":"thread.run","thread_id":%q,"status":"completed"}`, chi.URLParam(req, "run"), chi.URLParam(req, "thread"))
	})
	r.Post("/openai/threads/{thread}/runs/{run}/cancel", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.cancelled = true
		f.mu.Unlock()
		fmt.Fprintf(w, `{"id":%q,"object":"thread.run","status":"cancelling"}`, chi.URLParam(req, "run"))
	})
	r.Get("/openai/threads/{thread}/runs/{run}/steps", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[{"id":"step_1","object":"thread.run.step","type":"tool_calls","status":"completed"}],"has_more":false}`)
	})
	r.Get("/openai/threads/{thread}/messages", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[`+
			`{"id":"msg_2","object":"thread.message","role":"assistant","content":[{"type":"text","text":{"value":"Top region is EMEA.","annotations":[]}}]},`+
			`{"id":"msg_1","object":"thread.message","role":"user","content":[{"type":"text","text":{"value":"Top region?","annotations":[]}}]}`+
			`],"has_more":false}`)
	})
	return r
}

func (f *fakeAgentServer) snapshot() (metadata map[string]string, posted string, cancelled bool, auth []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threadMetadata, f.postedContent, f.cancelled, append([]string(nil), f.authHeaders...)
}

func newTestRemote(t *testing.T) (*OpenAIRemote, *fakeAgentServer) {
	t.Helper()

	fake := &fakeAgentServer{t: t}
	server := httptest.NewServer(fake.routes())
	t.Cleanup(server.Close)

	holder := credential.NewHolder(credential.StaticSource("secret-token"))
	_, err := holder.Refresh(context.Background())
	require.NoError(t, err)

	remote := NewOpenAIRemote(server.URL+"/", testAPIVersion, option.WithMiddleware(holder.Middleware()))
	return remote, fake
}

func TestOpenAIRemoteConversationFlow(t *testing.T) {
	remote, fake := newTestRemote(t)
	ctx := context.Background()

	assistants, err := remote.ListAssistants(ctx)
	require.NoError(t, err)
	require.Len(t, assistants, 2)
	assert.Equal(t, "asst_1", assistants[0].ID)
	assert.Equal(t, "sales", assistants[0].Name)

	threadID, err := remote.CreateThread(ctx, "quarterly")
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", threadID)
	metadata, _, _, _ := fake.snapshot()
	assert.Equal(t, "quarterly", metadata[threadNameKey])

	require.NoError(t, remote.PostMessage(ctx, threadID, "Top region?"))
	_, posted, _, _ := fake.snapshot()
	assert.Equal(t, "Top region?", posted)

	run, err := remote.CreateRun(ctx, threadID, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "run_1", run.ID)
	assert.Equal(t, agent.RunQueued, run.Status)

	run, err = remote.GetRun(ctx, threadID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.RunCompleted, run.Status)
	assert.Contains(t, string(run.Raw), `"status":"completed"`)

	steps, err := remote.ListRunSteps(ctx, threadID, run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "step_1", steps[0].ID)
	assert.Contains(t, string(steps[0].Raw), `"tool_calls"`)

	messages, err := remote.ListMessages(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[0].Role)
	assert.Equal(t, []string{"Top region is EMEA."}, messages[0].Text)
	assert.Equal(t, "Top region is EMEA.", FinalAnswer(messages))

	require.NoError(t, remote.CancelRun(ctx, threadID, run.ID))
	_, _, cancelled, auth := fake.snapshot()
	assert.True(t, cancelled)
	require.Len(t, auth, 8)
	for _, h := range auth {
		assert.Equal(t, "Bearer secret-token", h)
	}
}

func TestOpenAIRemoteSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"token expired","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	remote := NewOpenAIRemote(server.URL, testAPIVersion)

	_, err := remote.ListAssistants(context.Background())
	require.Error(t, err)
}
