package dataagent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/fabric-agent/backend/internal/config"
	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/credential"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/session"
)

// ErrNoAssistants is returned when the endpoint publishes no agent.
var ErrNoAssistants = errors.New("no assistants found")

// Error carries the failure kind of a setup error.
type Error struct {
	Kind agent.ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind reports how the failure should be classified.
func (e *Error) ErrorKind() agent.ErrorKind { return e.Kind }

// Connect authenticates, builds the remote client and discovers the agent.
func Connect(ctx context.Context, cfg config.AgentConfig, sessions session.Store) (*Executor, error) {
	source, err := credential.NewSource(cfg)
	if err != nil {
		return nil, err
	}

	holder := credential.NewHolder(source)
	if _, err := holder.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	log.Printf("[executor] authentication successful (credential=%s)", cfg.Credential)

	remote := NewOpenAIRemote(cfg.URL, cfg.APIVersion, option.WithMiddleware(holder.Middleware()))
	return Bootstrap(ctx, remote, holder, sessions, Options{
		PollInterval:    cfg.PollInterval,
		CancelOnTimeout: cfg.CancelOnTimeout,
	})
}

// Bootstrap picks the first published assistant and returns an Executor targeting it.
func Bootstrap(ctx context.Context, remote Remote, creds Refresher, sessions session.Store, opts Options) (*Executor, error) {
	assistants, err := remote.ListAssistants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	if len(assistants) == 0 {
		return nil, ErrNoAssistants
	}

	log.Printf("[executor] assistant id: %s", assistants[0].ID)
	return NewExecutor(remote, creds, sessions, assistants[0].ID, opts), nil
}

// Provider builds the Executor on first use and keeps it for the process lifetime.
// Failed attempts are not cached, so a later call retries.
type Provider struct {
	cfg     config.AgentConfig
	connect func(ctx context.Context) (*Executor, error)

	mu   sync.Mutex
	exec *Executor
}

// NewProvider returns a Provider that connects with cfg and registers threads in sessions.
func NewProvider(cfg config.AgentConfig, sessions session.Store) *Provider {
	return &Provider{
		cfg: cfg,
		connect: func(ctx context.Context) (*Executor, error) {
			return Connect(ctx, cfg, sessions)
		},
	}
}

// Get returns the shared Executor, initialising it if needed.
func (p *Provider) Get(ctx context.Context) (*Executor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exec != nil {
		return p.exec, nil
	}

	if err := p.cfg.Validate(); err != nil {
		log.Printf("[executor] configuration error: %v", err)
		return nil, &Error{Kind: agent.ErrorKindConfig, Err: err}
	}

	exec, err := p.connect(ctx)
	if err != nil {
		log.Printf("[executor] failed to initialize client: %v", err)
		return nil, &Error{Kind: agent.ErrorKindInit, Err: err}
	}

	p.exec = exec
	return exec, nil
}
