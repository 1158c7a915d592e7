/*
Package authsdk provides the wire types and a client SDK for the JobTab
authentication service.

# Wire Types

Request bodies carry a Validate method returning field-level problems. The
server rejects a request with a validation_error envelope when Validate
reports anything, so clients can run the same checks before sending.

Every failure is an ErrorResponse:

	{"status":401,"error":"unauthorized","message":"invalid or expired token","path":"/v1/auth/me"}

The "error" field is one of the Category constants and is stable; the
message is for humans.

# SDKClient vs Session

  - SDKClient: unauthenticated operations and session creation
  - Session: authenticated operations with automatic token refresh

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "alice@example.com", "correct horse battery")
	if authsdk.IsCategory(err, authsdk.CategoryUnauthorized) {
		// wrong email or password
	}

	me, err := session.Me(ctx)
	err = session.Logout(ctx)

# Password Recovery

	_, err := client.ForgotPassword(ctx, "alice@example.com")
	// ... the code arrives out of band ...
	_, err = client.ResetPassword(ctx, authsdk.ResetPasswordRequest{
		Email:       "alice@example.com",
		Code:        "123456",
		NewPassword: "a new passphrase",
	})

A successful reset ends every session of the account, so existing Sessions
start failing with CategoryUnauthorized.
*/
package authsdk
