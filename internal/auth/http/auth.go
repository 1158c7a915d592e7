package http

import (
	"net/http"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/service"
	"github.com/aussiebroadwan/jobtab/pkg/authsdk"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
)

// AuthHandler serves the session lifecycle endpoints.
type AuthHandler struct {
	Sessions *service.SessionService
}

// HandleRegister godoc
//
//	@Summary		Register
//	@Description	Create an account as a job seeker or job poster
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RegisterRequest		true	"Account details"
//	@Success		201		{object}	authsdk.RegisterResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		409		{object}	authsdk.ErrorResponse	"conflict"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := invalid(req.Validate()); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, &service.ValidationError{Fields: map[string]string{"role": "must be JOB_SEEKER or JOB_POSTER"}})
		return
	}

	u, err := h.Sessions.Register(r.Context(), req.Email, req.Password, role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role.String(),
	})
}

// HandleLogin godoc
//
//	@Summary		Login
//	@Description	Exchange email and password for an access and refresh token pair
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		401		{object}	authsdk.ErrorResponse	"unauthorized"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := invalid(req.Validate()); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRefresh godoc
//
//	@Summary		Refresh
//	@Description	Exchange a refresh token for a new token pair on the same session
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		401		{object}	authsdk.ErrorResponse	"unauthorized"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := invalid(req.Validate()); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	End the caller's session. Its access and refresh tokens stop working immediately.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"unauthorized"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p := httpx.PrincipalFrom(r.Context())
	if err := h.Sessions.Logout(r.Context(), p.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll godoc
//
//	@Summary		Logout everywhere
//	@Description	End every session of the caller's account
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"unauthorized"
//	@Router			/v1/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p := httpx.PrincipalFrom(r.Context())
	if _, err := h.Sessions.LogoutAll(r.Context(), p.Subject); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe godoc
//
//	@Summary		Current identity
//	@Description	Returns the authenticated caller as resolved from the access token and its live session
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.IdentityResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"unauthorized"
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p := httpx.PrincipalFrom(r.Context())
	httpx.WriteJSON(w, http.StatusOK, authsdk.IdentityResponse{
		UserID:    p.Subject,
		Email:     p.Email,
		Role:      p.Role,
		SessionID: p.SessionID,
	})
}

func tokenResponse(p *domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
		SessionID:    p.SessionID,
	}
}
