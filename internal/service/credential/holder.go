package credential

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/openai/openai-go/option"
)

// ErrNoToken is returned by Authorize before the first successful refresh.
var ErrNoToken = errors.New("no bearer token available")

// Holder owns the process-wide bearer token.
//
// Refresh re-fetches the token wholesale and stores it while holding the write lock,
// so a concurrent reader never observes a half-applied refresh.
type Holder struct {
	mu      sync.RWMutex
	source  Source
	current Token
}

// NewHolder returns a Holder backed by source. No token is fetched yet.
func NewHolder(source Source) *Holder {
	return &Holder{source: source}
}

// Refresh fetches a new token unconditionally and returns it.
func (h *Holder) Refresh(ctx context.Context) (Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tok, err := h.source.Token(ctx)
	if err != nil {
		log.Printf("[credential] token refresh failed: %v", err)
		return Token{}, err
	}
	h.current = tok
	return tok, nil
}

// Current returns the last token obtained by Refresh.
func (h *Holder) Current() Token {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Authorize stamps the current bearer token onto req.
func (h *Holder) Authorize(req *http.Request) error {
	tok := h.Current()
	if tok.Value == "" {
		return ErrNoToken
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	return nil
}

// Middleware returns an openai-go middleware that authorizes every outgoing request.
func (h *Holder) Middleware() option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		if err := h.Authorize(req); err != nil {
			return nil, err
		}
		return next(req)
	}
}
