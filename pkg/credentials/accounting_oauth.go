// Package credentials — OAuth2 token management for the external accounting API.
package credentials

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// AccountingOAuth wraps a refresh-token flow against the external accounting
// API's OAuth endpoint (§6), caching the current access token and refreshing
// it transparently via oauth2.TokenSource.
type AccountingOAuth struct {
	mu     sync.Mutex
	config oauth2.Config
	source oauth2.TokenSource
}

// NewAccountingOAuth builds an AccountingOAuth client. Client credentials and
// the token endpoint fall back to environment variables when empty, following
// the teacher's credential-loading convention.
func NewAccountingOAuth(clientID, clientSecret, tokenURL string) *AccountingOAuth {
	if clientID == "" {
		clientID = os.Getenv("ACCOUNTING_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("ACCOUNTING_CLIENT_SECRET")
	}
	if tokenURL == "" {
		tokenURL = os.Getenv("ACCOUNTING_TOKEN_URL")
	}
	return &AccountingOAuth{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
	}
}

// Seed primes the token source with a previously obtained refresh token.
func (a *AccountingOAuth) Seed(ctx context.Context, refreshToken string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok := &oauth2.Token{RefreshToken: refreshToken}
	a.source = a.config.TokenSource(ctx, tok)
}

// AccessToken returns a valid bearer token, refreshing it if the cached one
// has expired. Safe for concurrent use by the writer activity's retry loop.
func (a *AccountingOAuth) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return "", fmt.Errorf("accounting oauth: not seeded with a refresh token")
	}
	tok, err := a.source.Token()
	if err != nil {
		return "", fmt.Errorf("accounting oauth: token refresh failed: %w", err)
	}
	return tok.AccessToken, nil
}
