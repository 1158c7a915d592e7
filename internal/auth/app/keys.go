package app

import (
	"fmt"

	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/jwtx"
)

// AuthKeys are the secrets derived from AUTH_SIGNING_KEY.
type AuthKeys struct {
	Codec  *jwtx.Codec
	OTPKey []byte
}

// InitAuthKeys derives independent token and OTP keys from the configured
// master key with HKDF, so neither can be recovered from the other.
func InitAuthKeys(cfg Config) (*AuthKeys, error) {
	master, err := cryptox.ParseKeyMaterial(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	jwtKey, err := cryptox.DeriveKey(master, cryptox.KeyLabelJWT, jwtx.MinKeySize)
	if err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	otpKey, err := cryptox.DeriveKey(master, cryptox.KeyLabelOTP, 32)
	if err != nil {
		return nil, fmt.Errorf("derive otp key: %w", err)
	}

	codec, err := jwtx.NewCodec(jwtKey, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	return &AuthKeys{Codec: codec, OTPKey: otpKey}, nil
}
