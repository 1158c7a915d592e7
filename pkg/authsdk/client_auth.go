package authsdk

import (
	"context"
	"net/http"
)

// Register creates an account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", "", req)
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token pair.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", "", req)
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new token pair on the same session.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the identity behind accessToken.
func (c *SDKClient) Me(ctx context.Context, accessToken string) (*IdentityResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/v1/auth/me", accessToken, nil)
	if err != nil {
		return nil, err
	}

	var out IdentityResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session accessToken belongs to.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", accessToken, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// LogoutAll ends every session of the caller.
func (c *SDKClient) LogoutAll(ctx context.Context, accessToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout-all", accessToken, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
