package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for every failed check so callers
	// cannot tell which one failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNotConfigured      = errors.New("auth: admin credentials not configured")
)

// Credentials is a login attempt.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	TOTP     string `json:"totp" validate:"required"`
}

// Authenticator checks admin credentials.
type Authenticator struct {
	email        string
	passwordHash []byte
	totpSecret   string

	comparePassword func(hash, password []byte) error
}

// NewAuthenticator creates an authenticator for the single admin account.
func NewAuthenticator(email, passwordHash, totpSecret string) *Authenticator {
	return &Authenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(strings.TrimSpace(passwordHash)),
		totpSecret:   strings.TrimSpace(totpSecret),

		comparePassword: bcrypt.CompareHashAndPassword,
	}
}

// Configured reports whether all three admin settings are present.
func (a *Authenticator) Configured() bool {
	return a != nil && a.email != "" && len(a.passwordHash) > 0 && a.totpSecret != ""
}

// Verify checks all three factors. Every factor is evaluated on every call so
// timing does not reveal which one failed.
func (a *Authenticator) Verify(c Credentials) error {
	if !a.Configured() {
		return ErrNotConfigured
	}
	email := strings.ToLower(strings.TrimSpace(c.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.email)) == 1
	passwordOK := a.comparePassword(a.passwordHash, []byte(c.Password)) == nil
	codeOK := totp.Validate(strings.TrimSpace(c.TOTP), a.totpSecret)
	if !emailOK || !passwordOK || !codeOK {
		return ErrInvalidCredentials
	}
	return nil
}
