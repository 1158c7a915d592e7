package authsdk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// refreshSkew refreshes a little before the access token actually expires.
const refreshSkew = 30 * time.Second

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	sessionID    string
	expiresAt    time.Time
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	s := &Session{client: client}
	s.update(tokenResp)
	return s
}

func (s *Session) update(t *TokenResponse) {
	s.accessToken = t.AccessToken
	s.refreshToken = t.RefreshToken
	s.sessionID = t.SessionID
	s.expiresAt = time.Now().Add(time.Duration(t.ExpiresIn)*time.Second - refreshSkew)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	tokenResp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.update(tokenResp)

	return s.accessToken, nil
}

// Me returns the identity of this session.
func (s *Session) Me(ctx context.Context) (*IdentityResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Me(ctx, token)
}

// Logout ends this session on the server.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.Logout(ctx, token)
}

// LogoutAll ends every session of this account, including this one.
func (s *Session) LogoutAll(ctx context.Context) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.LogoutAll(ctx, token)
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// SessionID returns the server-side session id.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}
