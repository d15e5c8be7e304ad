// Package totp wraps RFC 6238 one-time codes for second-factor login.
package totp

import (
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrMalformedCode is returned before any cryptographic check when a code is
// not exactly six ASCII digits.
var ErrMalformedCode = errors.New("code must be exactly 6 digits")

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is a freshly generated shared secret.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"otpauth_uri"`
}

type Authenticator struct {
	issuer string
	now    func() time.Time
}

func NewAuthenticator(issuer string, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{issuer: issuer, now: now}
}

// Generate creates a 160-bit base32 secret and its otpauth:// provisioning URI.
func (a *Authenticator) Generate(account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.issuer,
		AccountName: account,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	return &Enrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// Validate checks code against secret with a tolerance of one 30 second step
// either side of now.
func (a *Authenticator) Validate(secret, code string) (bool, error) {
	if !WellFormed(code) {
		return false, ErrMalformedCode
	}
	ok, err := totp.ValidateCustom(code, secret, a.now().UTC(), validateOpts)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// Code generates the code for secret at t.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts)
}

// WellFormed reports whether code is exactly six ASCII digits.
func WellFormed(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
