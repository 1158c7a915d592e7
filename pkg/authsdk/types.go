package authsdk

// ============================================================================
// Roles
// ============================================================================

const (
	RoleJobSeeker = "JOB_SEEKER"
	RoleJobPoster = "JOB_POSTER"
)

// ============================================================================
// Session Types
// ============================================================================

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct horse battery"`

	// Role is JOB_SEEKER or JOB_POSTER
	Role string `json:"role" example:"JOB_SEEKER"`
}

// RegisterResponse is returned with 201 Created.
type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct horse battery"`
}

// RefreshRequest is the body of POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	// AccessToken authenticates API requests as a bearer credential
	AccessToken string `json:"access_token"`

	// RefreshToken obtains a new token pair for the same session
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// SessionID identifies the server-side session both tokens belong to
	SessionID string `json:"session_id"`
}

// IdentityResponse describes the authenticated caller (GET /v1/auth/me).
type IdentityResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// ============================================================================
// Password Recovery Types
// ============================================================================

// ForgotPasswordRequest is the body of POST /v1/password/forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

// ResetPasswordRequest is the body of POST /v1/password/reset.
type ResetPasswordRequest struct {
	Email       string `json:"email" example:"alice@example.com"`
	Code        string `json:"code" example:"123456"`
	NewPassword string `json:"new_password"`
}

// MessageResponse carries a fixed human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ForgotPasswordMessage is the only body POST /v1/password/forgot returns,
// whether or not the email is registered.
const ForgotPasswordMessage = "If the email is registered, a reset code has been sent."

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Uptime  string            `json:"uptime" example:"1h2m3s"`
	Version string            `json:"version" example:"dev"`
	Checks  map[string]string `json:"checks,omitempty"`
}
