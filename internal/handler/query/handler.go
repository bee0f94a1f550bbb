package query

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
	"github.com/zhouzirui/fabric-agent/backend/pkg/utils"
)

const (
	ServiceName    = "Fabric Data Agent API"
	ServiceVersion = "1.0.0"

	maxLoggedPrompt = 100
)

// Executor answers one question and reports the outcome as an envelope.
type Executor interface {
	Execute(ctx context.Context, question string, timeout time.Duration, threadName string) agent.Envelope
}

// Resolver returns the Executor to use, initialising it on first call.
type Resolver func(ctx context.Context) (Executor, error)

// Handler 数据查询的HTTP处理器
type Handler struct {
	resolve Resolver
	timeout time.Duration
}

// New 创建查询处理器
func New(resolve Resolver, timeout time.Duration) *Handler {
	return &Handler{
		resolve: resolve,
		timeout: timeout,
	}
}

// RegisterRoutes 注册查询相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Post("/execute", h.handleExecute)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": ServiceName,
		"version": ServiceVersion,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// handleExecute forwards the prompt to the data agent and relays the envelope as-is.
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt     *string `json:"prompt"`
		ThreadName string  `json:"thread_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Prompt == nil {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	prompt := *payload.Prompt

	log.Printf("[http] executing query: %s...", truncate(prompt, maxLoggedPrompt))

	exec, err := h.resolve(r.Context())
	if err != nil {
		respondFailure(w, agent.KindOf(err), err.Error())
		return
	}

	env := exec.Execute(r.Context(), prompt, h.timeout, payload.ThreadName)
	if !env.Success {
		detail := env.Error
		if detail == "" {
			detail = "Unknown error occurred"
		}
		respondFailure(w, env.ErrorKind, detail)
		return
	}

	log.Printf("[http] query executed successfully. status: %s", env.RunStatus)
	utils.RespondJSON(w, http.StatusOK, env)
}

// respondFailure is the one place failure kinds become HTTP responses. Every kind maps
// to 500 with the error as detail.
func respondFailure(w http.ResponseWriter, kind agent.ErrorKind, detail string) {
	switch kind {
	case agent.ErrorKindConfig:
		log.Printf("[http] configuration error: %s", detail)
	default:
		log.Printf("[http] error executing query (%s): %s", kind, detail)
	}
	utils.RespondError(w, http.StatusInternalServerError, detail)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
