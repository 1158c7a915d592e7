package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// HKDF info labels. Changing one rotates every key derived from it.
const (
	KeyLabelJWT = "jobtab/auth/jwt-hs256"
	KeyLabelOTP = "jobtab/auth/otp-digest"
)

var ErrEmptyKeyMaterial = errors.New("cryptox: empty key material")

// ParseKeyMaterial decodes a configured secret. Values prefixed with
// "base64:" are standard base64, anything else is taken as raw bytes.
func ParseKeyMaterial(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyKeyMaterial
	}

	if enc, ok := strings.CutPrefix(s, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("cryptox: decode key material: %w", err)
		}
		if len(b) == 0 {
			return nil, ErrEmptyKeyMaterial
		}
		return b, nil
	}
	return []byte(s), nil
}

// DeriveKey expands master into a size-byte subkey bound to label using
// HKDF-SHA256. Distinct labels yield independent keys.
func DeriveKey(master []byte, label string, size int) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptyKeyMaterial
	}

	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(label)), out); err != nil {
		return nil, fmt.Errorf("cryptox: derive %s: %w", label, err)
	}
	return out, nil
}
