package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/ticketbooth-services/common/errors"
)

// Staff roles
const (
	RoleAdmin     = "ADMIN"
	RoleVolunteer = "VOLUNTEER"
)

// StaffRoles may use door operations.
var StaffRoles = []string{RoleAdmin, RoleVolunteer}

const issuer = "ticketbooth"

// Claims represents JWT claims structure
type Claims struct {
	StaffID string `json:"staffId"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the identity stamped on check-in and redemption records.
func (c *Claims) Actor() string {
	if c.Name != "" {
		return c.Name
	}
	return c.StaffID
}

// HasRole reports whether the claims carry one of roles.
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(c.Role, r) {
			return true
		}
	}
	return false
}

// Manager signs and verifies HS256 staff tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken issues a token for a staff member.
func (m *Manager) GenerateToken(staffID, name, role string) (string, error) {
	role = strings.ToUpper(role)
	if role != RoleAdmin && role != RoleVolunteer {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := m.now()
	claims := Claims{
		StaffID: staffID,
		Name:    name,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   staffID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a JWT token and returns claims
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// Authorize reads the bearer token from request headers and checks that
// it carries one of roles. Errors are AppErrors ready for the client.
func (m *Manager) Authorize(headers map[string]string, roles ...string) (*Claims, error) {
	header := headerValue(headers, "Authorization")
	if header == "" {
		return nil, apperrors.Unauthorized("Missing bearer token")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return nil, apperrors.Unauthorized("Missing bearer token")
	}

	claims, err := m.ValidateToken(strings.TrimSpace(tokenString))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apperrors.TokenExpired()
	}
	if err != nil {
		return nil, apperrors.InvalidToken().WithCause(err)
	}

	if len(roles) > 0 && !claims.HasRole(roles...) {
		return nil, apperrors.AccessDenied()
	}
	return claims, nil
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
