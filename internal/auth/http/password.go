package http

import (
	"net/http"

	"github.com/aussiebroadwan/jobtab/internal/auth/service"
	"github.com/aussiebroadwan/jobtab/pkg/authsdk"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
)

// PasswordHandler serves the forgot-password flow.
type PasswordHandler struct {
	Recovery *service.RecoveryService
}

// HandleForgot godoc
//
//	@Summary		Request a password reset
//	@Description	Sends a one-time code to the email if it is registered. The response is the same either way.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ForgotPasswordRequest	true	"Email"
//	@Success		202		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Router			/v1/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := invalid(req.Validate()); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Recovery.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{Message: authsdk.ForgotPasswordMessage})
}

// HandleReset godoc
//
//	@Summary		Reset a password
//	@Description	Trade an emailed code for a new password. Every session of the account ends on success.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ResetPasswordRequest	true	"Email, code and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error or invalid_code"
//	@Failure		404		{object}	authsdk.ErrorResponse	"not_found"
//	@Failure		410		{object}	authsdk.ErrorResponse	"expired"
//	@Failure		429		{object}	authsdk.ErrorResponse	"attempts_exceeded or rate_limited"
//	@Router			/v1/password/reset [post].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := invalid(req.Validate()); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Recovery.VerifyReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password updated. Please log in again."})
}
