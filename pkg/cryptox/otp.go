package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// OTP length bounds. HOTP truncation yields 31 bits, so anything past nine
// digits would not be uniformly distributed.
const (
	MinOTPDigits = 6
	MaxOTPDigits = 9
)

// GenerateOTP returns a numeric one-time code of the given length. Each code
// is HOTP over a fresh 160-bit random secret, so codes are independent.
func GenerateOTP(digits int) (string, error) {
	if digits < MinOTPDigits || digits > MaxOTPDigits {
		return "", fmt.Errorf("cryptox: otp length %d out of range [%d,%d]", digits, MinOTPDigits, MaxOTPDigits)
	}

	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("cryptox: otp secret: %w", err)
	}

	code, err := hotp.GenerateCodeCustom(base32.StdEncoding.EncodeToString(secret), 0, hotp.ValidateOpts{
		Digits:    otp.Digits(digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("cryptox: otp: %w", err)
	}
	return code, nil
}

// OTPDigest returns the keyed one-way digest stored in place of a code.
// Binding the email stops a digest being replayed against another account.
func OTPDigest(key []byte, email, code string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// OTPEqual reports whether code matches digest, in constant time.
func OTPEqual(key []byte, email, code, digest string) bool {
	got := OTPDigest(key, email, code)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}
