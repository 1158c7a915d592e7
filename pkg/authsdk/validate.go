package authsdk

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxEmailLength    = 254

	MinCodeLength = 6
	MaxCodeLength = 9
)

// Validate reports field problems; nil means the request is well formed.
func (r RegisterRequest) Validate() []FieldError {
	var errs []FieldError
	errs = checkEmail(errs, "email", r.Email)
	errs = checkPassword(errs, "password", r.Password)
	switch strings.ToUpper(strings.TrimSpace(r.Role)) {
	case "":
		errs = append(errs, FieldError{Field: "role", Message: "required"})
	case RoleJobSeeker, RoleJobPoster, "SEEKER", "POSTER":
	default:
		errs = append(errs, FieldError{Field: "role", Message: "must be JOB_SEEKER or JOB_POSTER"})
	}
	return errs
}

// Validate reports field problems. Only presence is checked so a login
// never reveals the password policy for an account.
func (r LoginRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	return errs
}

func (r RefreshRequest) Validate() []FieldError {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return []FieldError{{Field: "refresh_token", Message: "required"}}
	}
	return nil
}

func (r ForgotPasswordRequest) Validate() []FieldError {
	return checkEmail(nil, "email", r.Email)
}

func (r ResetPasswordRequest) Validate() []FieldError {
	errs := checkEmail(nil, "email", r.Email)
	errs = checkCode(errs, "code", r.Code)
	return checkPassword(errs, "new_password", r.NewPassword)
}

func checkEmail(errs []FieldError, field, v string) []FieldError {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return append(errs, FieldError{Field: field, Message: "required"})
	case len(v) > MaxEmailLength:
		return append(errs, FieldError{Field: field, Message: "too long"})
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return append(errs, FieldError{Field: field, Message: "must be a valid email address"})
	}
	return errs
}

func checkPassword(errs []FieldError, field, v string) []FieldError {
	n := utf8.RuneCountInString(v)
	switch {
	case v == "":
		return append(errs, FieldError{Field: field, Message: "required"})
	case n < MinPasswordLength:
		return append(errs, FieldError{Field: field, Message: "must be at least 8 characters"})
	case n > MaxPasswordLength:
		return append(errs, FieldError{Field: field, Message: "must be at most 128 characters"})
	}
	return errs
}

func checkCode(errs []FieldError, field, v string) []FieldError {
	if v == "" {
		return append(errs, FieldError{Field: field, Message: "required"})
	}
	if len(v) < MinCodeLength || len(v) > MaxCodeLength {
		return append(errs, FieldError{Field: field, Message: "must be 6 to 9 digits"})
	}
	for _, c := range v {
		if c < '0' || c > '9' {
			return append(errs, FieldError{Field: field, Message: "must be 6 to 9 digits"})
		}
	}
	return errs
}
