// Package auth implements the single-admin login used to gate lead review
// and asset access: a bcrypt password, a TOTP code and an HS256 session
// cookie.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName carries the signed session.
	CookieName = "uootd_auth"
	// RoleAdmin is the only role issued.
	RoleAdmin = "admin"
	// DefaultSessionTTL bounds both the token and the cookie.
	DefaultSessionTTL = 30 * time.Minute
)

var (
	ErrNoSession      = errors.New("auth: no session")
	ErrInvalidSession = errors.New("auth: invalid session")
	ErrNoSecret       = errors.New("auth: session secret not configured")
)

// Session is an authenticated admin.
type Session struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Gate is the capability privileged handlers consume. CurrentSession returns
// nil when the request is not authenticated.
type Gate interface {
	CurrentSession(r *http.Request) *Session
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies session cookies.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a manager. An empty secret yields a manager that
// never authenticates anyone.
func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Issue signs a session for email and sets it on w.
func (m *SessionManager) Issue(w http.ResponseWriter, email string) (*Session, error) {
	token, session, err := m.Sign(email)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, m.cookie(token, int(m.ttl.Seconds())))
	return session, nil
}

// Sign returns a signed token without touching any response.
func (m *SessionManager) Sign(email string) (string, *Session, error) {
	if len(m.secret) == 0 {
		return "", nil, ErrNoSecret
	}
	now := m.now()
	session := &Session{Email: email, Role: RoleAdmin, ExpiresAt: now.Add(m.ttl).Truncate(time.Second)}
	claims := sessionClaims{
		Email: email,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign session: %w", err)
	}
	return token, session, nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}

// Parse verifies a token and returns its session.
func (m *SessionManager) Parse(token string) (*Session, error) {
	if len(m.secret) == 0 {
		return nil, ErrNoSecret
	}
	if token == "" {
		return nil, ErrNoSession
	}

	claims := sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	if claims.Role != RoleAdmin || claims.Email == "" {
		return nil, ErrInvalidSession
	}
	return &Session{Email: claims.Email, Role: claims.Role, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Read returns the session carried by r's cookie.
func (m *SessionManager) Read(r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return m.Parse(c.Value)
}

// CurrentSession implements Gate.
func (m *SessionManager) CurrentSession(r *http.Request) *Session {
	if m == nil {
		return nil
	}
	session, err := m.Read(r)
	if err != nil {
		return nil
	}
	return session
}

func (m *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
