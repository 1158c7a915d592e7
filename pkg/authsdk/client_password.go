package authsdk

import (
	"context"
	"net/http"
)

// ForgotPassword asks for a reset code to be sent to email. The response
// is identical for registered and unregistered emails.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/password/forgot", "", ForgotPasswordRequest{Email: email})
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using an emailed code. All sessions of
// the account end on success.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/password/reset", "", req)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
