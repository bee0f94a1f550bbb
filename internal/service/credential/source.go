package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/zhouzirui/fabric-agent/backend/internal/config"
)

// Token is a bearer token with its expiry as reported by the identity provider.
type Token struct {
	Value     string
	ExpiresOn time.Time
}

// Source fetches a fresh token for a fixed audience.
type Source interface {
	Token(ctx context.Context) (Token, error)
}

// AzureSource adapts an azcore.TokenCredential to Source.
type AzureSource struct {
	cred  azcore.TokenCredential
	scope string
}

// NewAzureSource returns a Source requesting tokens for scope from cred.
func NewAzureSource(cred azcore.TokenCredential, scope string) *AzureSource {
	return &AzureSource{cred: cred, scope: scope}
}

// Token implements Source.
func (s *AzureSource) Token(ctx context.Context) (Token, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{s.scope}})
	if err != nil {
		return Token{}, err
	}
	return Token{Value: tok.Token, ExpiresOn: tok.ExpiresOn}, nil
}

// StaticSource always returns the same token. Useful for pre-issued tokens and tests.
type StaticSource string

// Token implements Source.
func (s StaticSource) Token(context.Context) (Token, error) {
	value := strings.TrimSpace(string(s))
	if value == "" {
		return Token{}, errors.New("static token is empty")
	}
	return Token{Value: value}, nil
}

// NewSource builds the Source selected by cfg.Credential.
func NewSource(cfg config.AgentConfig) (Source, error) {
	var (
		cred azcore.TokenCredential
		err  error
	)

	switch cfg.Credential {
	case config.CredentialStatic:
		return StaticSource(cfg.StaticToken), nil
	case config.CredentialInteractive, "":
		cred, err = azidentity.NewInteractiveBrowserCredential(&azidentity.InteractiveBrowserCredentialOptions{
			TenantID: cfg.TenantID,
			ClientID: cfg.ClientID,
		})
	case config.CredentialDefault:
		cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			TenantID: cfg.TenantID,
		})
	case config.CredentialCLI:
		cred, err = azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
			TenantID: cfg.TenantID,
		})
	default:
		return nil, fmt.Errorf("unsupported credential mode %q", cfg.Credential)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s credential: %w", cfg.Credential, err)
	}

	return NewAzureSource(cred, cfg.Scope), nil
}
