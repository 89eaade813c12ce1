package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names. Listed in login precedence order: when one email exists in
// several account tables, the higher-privilege account wins.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleDoctor     = "doctor"
	RolePatient    = "patient"
)

// tokenTTLs maps each role to its session length. Higher-privilege roles get
// longer sessions because their consoles are used for long admin shifts.
var tokenTTLs = map[string]time.Duration{
	RoleSuperAdmin: 24 * time.Hour,
	RoleAdmin:      12 * time.Hour,
	RoleDoctor:     8 * time.Hour,
	RolePatient:    4 * time.Hour,
}

// Claims is the JWT payload for platform-issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Issuer signs and verifies platform tokens with a shared HS256 secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret, now: time.Now}
}

// Issue signs a token for the given account. The expiry depends on the role.
func (i *Issuer) Issue(userID, email, role string, permissions []string) (string, error) {
	ttl, ok := tokenTTLs[role]
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:       email,
		Role:        role,
		Permissions: permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string, returning its claims.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// TokenTTL returns the session length for a role, or zero for unknown roles.
func TokenTTL(role string) time.Duration {
	return tokenTTLs[role]
}
