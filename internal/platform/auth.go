package platform

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Audience is the scope a bearer token is requested for.
type Audience string

// AudienceCentral is the IoT Central data plane scope. ARM calls take the
// credential directly and hub or DPS calls are signed with SAS tokens.
const AudienceCentral Audience = "https://apps.azureiotcentral.com/.default"

// TokenProvider returns bearer tokens per audience.
type TokenProvider interface {
	Token(ctx context.Context, aud Audience) (string, error)
}

// AzureTokenProvider gets tokens from an azcore credential.
type AzureTokenProvider struct {
	cred azcore.TokenCredential
}

// NewAzureTokenProvider uses the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewAzureTokenProvider(tenantID string) (*AzureTokenProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	return NewTokenProvider(cred), nil
}

// NewTokenProvider wraps an existing credential.
func NewTokenProvider(cred azcore.TokenCredential) *AzureTokenProvider {
	return &AzureTokenProvider{cred: cred}
}

// Credential returns the underlying credential for the ARM SDK clients.
func (p *AzureTokenProvider) Credential() azcore.TokenCredential {
	return p.cred
}

func (p *AzureTokenProvider) Token(ctx context.Context, aud Audience) (string, error) {
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{string(aud)}})
	if err != nil {
		return "", fmt.Errorf("getting token for %s: %w", aud, err)
	}
	return tok.Token, nil
}
