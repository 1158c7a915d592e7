package app

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitAuthKeys(t *testing.T) {
	cfg := Config{SigningKey: testSigningKey, Issuer: "jobtab-auth"}

	keys, err := InitAuthKeys(cfg)
	require.NoError(t, err)
	require.Len(t, keys.OTPKey, 32)

	tok, err := keys.Codec.IssueAccess("user-1", "a@example.com", "job_seeker", "sid-1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	// Same master, same keys.
	again, err := InitAuthKeys(cfg)
	require.NoError(t, err)
	require.Equal(t, keys.OTPKey, again.OTPKey)
}

func TestInitAuthKeysBase64(t *testing.T) {
	raw := []byte(testSigningKey)
	b64 := Config{SigningKey: "base64:" + base64.StdEncoding.EncodeToString(raw), Issuer: "jobtab-auth"}
	plain := Config{SigningKey: testSigningKey, Issuer: "jobtab-auth"}

	k1, err := InitAuthKeys(b64)
	require.NoError(t, err)
	k2, err := InitAuthKeys(plain)
	require.NoError(t, err)
	require.Equal(t, k1.OTPKey, k2.OTPKey)
}

func TestInitAuthKeysRejectsEmpty(t *testing.T) {
	_, err := InitAuthKeys(Config{Issuer: "jobtab-auth"})
	require.Error(t, err)
}
