package trino

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthClientCredentialsAuth is a concrete Auth collaborator driving the
// OAuth2 client-credentials grant. Grounded on the teacher's
// auth_oauth.go, which builds and exchanges tokens through
// golang.org/x/oauth2 the same way; unlike the teacher's
// authorization-code flow (browser-driven, out of the core's scope per
// spec §1), client-credentials needs no interactive step and fits
// cleanly as a self-contained capability.
type OAuthClientCredentialsAuth struct {
	cfg clientcredentials.Config
	ctx context.Context

	mu    sync.Mutex
	token *oauth2.Token
}

// NewOAuthClientCredentialsAuth builds a collaborator that fetches and
// caches tokens from tokenURL using the client-credentials grant.
func NewOAuthClientCredentialsAuth(ctx context.Context, clientID, clientSecret, tokenURL string, scopes []string) *OAuthClientCredentialsAuth {
	return &OAuthClientCredentialsAuth{
		ctx: ctx,
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
	}
}

// Identity implements Auth; client-credentials tokens are
// service-to-service and carry no separate human/service identity
// beyond the client ID.
func (a *OAuthClientCredentialsAuth) Identity() string {
	return a.cfg.ClientID
}

// Validate implements Auth, refreshing the cached token if it is
// missing or within a minute of expiry.
func (a *OAuthClientCredentialsAuth) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token.Valid() && time.Until(a.token.Expiry) > time.Minute {
		return nil
	}
	tok, err := a.cfg.Token(a.ctx)
	if err != nil {
		return newClientError(kindProtocol, "oauth client-credentials token request failed", err)
	}
	a.token = tok
	return nil
}

// Attach implements Auth.
func (a *OAuthClientCredentialsAuth) Attach(req *http.Request) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	tok := a.token
	a.mu.Unlock()
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tok.AccessToken))
	return nil
}
