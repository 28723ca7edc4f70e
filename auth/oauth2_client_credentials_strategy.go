package auth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultClientCredentialsTokenTTL    = time.Hour
	defaultClientCredentialsRenewBefore = 2 * time.Minute
)

type OAuth2ClientCredentialsStrategyConfig struct {
	ClientID      string
	ClientSecret  string
	TokenURL      string
	DefaultScopes []string
	// TokenTTL applies when the token endpoint omits expires_in.
	TokenTTL    time.Duration
	RenewBefore time.Duration
	HTTPClient  *http.Client
	Now         func() time.Time
}

type cachedClientCredential struct {
	token     *oauth2.Token
	expiresAt time.Time
}

// OAuth2ClientCredentialsStrategy issues app access tokens with the client
// credentials grant and caches them until RenewBefore ahead of expiry.
type OAuth2ClientCredentialsStrategy struct {
	config OAuth2ClientCredentialsStrategyConfig
	grant  clientcredentials.Config
	mu     sync.Mutex
	cache  *cachedClientCredential
}

func NewOAuth2ClientCredentialsStrategy(cfg OAuth2ClientCredentialsStrategyConfig) *OAuth2ClientCredentialsStrategy {
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultClientCredentialsTokenTTL
	}
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = defaultClientCredentialsRenewBefore
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	normalized := OAuth2ClientCredentialsStrategyConfig{
		ClientID:      strings.TrimSpace(cfg.ClientID),
		ClientSecret:  strings.TrimSpace(cfg.ClientSecret),
		TokenURL:      strings.TrimSpace(cfg.TokenURL),
		DefaultScopes: normalizeScopes(cfg.DefaultScopes),
		TokenTTL:      tokenTTL,
		RenewBefore:   renewBefore,
		HTTPClient:    cfg.HTTPClient,
		Now:           now,
	}
	return &OAuth2ClientCredentialsStrategy{
		config: normalized,
		grant: clientcredentials.Config{
			ClientID:     normalized.ClientID,
			ClientSecret: normalized.ClientSecret,
			TokenURL:     normalized.TokenURL,
			Scopes:       normalized.DefaultScopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}
}

func (*OAuth2ClientCredentialsStrategy) Type() string {
	return "oauth2_client_credentials"
}

// Token returns a cached token or requests a new one from the token endpoint.
func (s *OAuth2ClientCredentialsStrategy) Token(ctx context.Context) (*oauth2.Token, error) {
	if s == nil {
		return nil, fmt.Errorf("auth: oauth2 client credentials strategy is not configured")
	}
	if s.config.ClientID == "" {
		return nil, fmt.Errorf("auth: oauth2 client credentials client_id is required")
	}
	if s.config.ClientSecret == "" {
		return nil, fmt.Errorf("auth: oauth2 client credentials client_secret is required")
	}
	if s.config.TokenURL == "" {
		return nil, fmt.Errorf("auth: oauth2 client credentials token_url is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.lookupCachedToken(); ok {
		return token, nil
	}
	if s.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.config.HTTPClient)
	}
	token, err := s.grant.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: oauth2 client credentials token request failed: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("auth: oauth2 client credentials token response has no access_token")
	}
	s.storeCachedToken(token)
	return token, nil
}

// AuthorizationHeader renders the Authorization header value for the current
// token.
func (s *OAuth2ClientCredentialsStrategy) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.Type() + " " + token.AccessToken, nil
}

// Invalidate drops the cached token, e.g. after the API rejected it.
func (s *OAuth2ClientCredentialsStrategy) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

func (s *OAuth2ClientCredentialsStrategy) lookupCachedToken() (*oauth2.Token, bool) {
	if s.cache == nil {
		return nil, false
	}
	now := s.config.Now().UTC()
	if s.cache.expiresAt.IsZero() || !s.cache.expiresAt.After(now.Add(s.config.RenewBefore)) {
		s.cache = nil
		return nil, false
	}
	return s.cache.token, true
}

func (s *OAuth2ClientCredentialsStrategy) storeCachedToken(token *oauth2.Token) {
	expiresAt := token.Expiry.UTC()
	if token.Expiry.IsZero() {
		expiresAt = s.config.Now().UTC().Add(s.config.TokenTTL)
	}
	s.cache = &cachedClientCredential{
		token:     token,
		expiresAt: expiresAt,
	}
}

// normalizeScopes trims and dedupes scopes; PayPal expects them space joined
// in a stable order.
func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]bool, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" || seen[scope] {
			continue
		}
		seen[scope] = true
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}
