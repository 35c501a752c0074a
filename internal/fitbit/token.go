package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

// oauthScopes are the scopes requested during authorization.
var oauthScopes = []string{"activity", "profile", "location"}

// defaultTokenTTL is assumed when a token response omits expires_in.
const defaultTokenTTL = 8 * 60 * 60

// IsFresh reports whether a token created at the given instant with a
// lifetime of ttlSeconds is still valid at now.
func IsFresh(created time.Time, ttlSeconds int, now time.Time) bool {
	return now.Before(created.Add(time.Duration(ttlSeconds) * time.Second))
}

// TokenManager produces authenticated API clients for users, refreshing and
// overwriting stored credentials when they have gone stale. Refreshes are
// serialized within the process; concurrent loops may still race on the
// persisted row, in which case the last writer wins.
type TokenManager struct {
	oauth oauth2.Config
	mu    sync.Mutex
	now   func() time.Time
}

// TokenManagerOption configures optional behaviour for a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithEndpoint overrides the OAuth2 endpoint, used by tests.
func WithEndpoint(endpoint oauth2.Endpoint) TokenManagerOption {
	return func(m *TokenManager) {
		m.oauth.Endpoint = endpoint
	}
}

// WithClock overrides the clock, used by tests.
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager constructs a TokenManager for the registered application.
func NewTokenManager(clientID, clientSecret, redirectURL string, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Fitbit,
			RedirectURL:  redirectURL,
			Scopes:       oauthScopes,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AuthCodeURL builds the consent page URL for the authorization-code flow.
func (m *TokenManager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for credentials and returns a user
// record carrying them. The caller persists the record.
func (m *TokenManager) Exchange(ctx context.Context, code string) (*domain.User, error) {
	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	user := &domain.User{}
	applyToken(user, token, m.now().UTC())

	fitbitUserID, _ := token.Extra("user_id").(string)
	if fitbitUserID == "" {
		return nil, fmt.Errorf("token response carries no user id")
	}
	user.FitbitUserID = fitbitUserID
	return user, nil
}

// ClientFor returns an API client for the user. When the stored token has
// outlived its declared lifetime it is refreshed first, the user's
// credential fields are overwritten and the second return value signals
// that the caller must persist the user.
func (m *TokenManager) ClientFor(ctx context.Context, user *domain.User, opts ...ClientOption) (*Client, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if IsFresh(user.TokenCreated, user.ExpiresIn, now) {
		return NewClient(user.Token, opts...), false, nil
	}

	source := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: user.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, false, fmt.Errorf("refresh token for user %s: %w", user.FitbitUserID, err)
	}

	applyToken(user, token, now)
	return NewClient(user.Token, opts...), true, nil
}

// applyToken overwrites the user's credential fields from a token response
// and stamps the creation instant.
func applyToken(user *domain.User, token *oauth2.Token, now time.Time) {
	user.Token = token.AccessToken
	user.TokenType = token.TokenType
	if refresh := token.RefreshToken; refresh != "" {
		user.RefreshToken = refresh
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		user.Scope = scope
	}
	user.ExpiresIn = expiresIn(token)
	user.TokenCreated = now
}

func expiresIn(token *oauth2.Token) int {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return defaultTokenTTL
}
