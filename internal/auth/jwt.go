package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator tokens
//
// Organization writes are authenticated with short-lived HS256 JWTs issued
// by the admin CLI. A token names the operator (sub), the organization the
// operator manages (org) and a role. Admin tokens may write any
// organization. There are no refresh tokens; operators ask for a new token
// when the old one expires.

// Token defaults.
const (
	// DefaultTokenTTL is the lifetime of a token when none is requested.
	DefaultTokenTTL = 1 * time.Hour

	// MaxTokenTTL caps the lifetime the CLI will issue.
	MaxTokenTTL = 30 * 24 * time.Hour
)

// Roles carried in the role claim.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Predefined JWT errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidTTL         = errors.New("invalid token ttl")
	ErrMissingSubject     = errors.New("token subject is required")
)

// OperatorClaims represents the claims in operator access tokens.
type OperatorClaims struct {
	jwt.RegisteredClaims

	// OrgID is the organization the operator manages. Empty for admins
	// that are not bound to one organization.
	OrgID string `json:"org,omitempty"`

	// Role is RoleOperator or RoleAdmin.
	Role string `json:"role"`
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the secret key used to sign JWTs.
	SigningKey string

	// Issuer is the issuer claim for tokens (e.g., "giveandget").
	Issuer string

	// Audience is the audience claim for tokens (e.g., "giveandget-api").
	Audience string

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSigningKey is used when JWT_SIGNING_KEY is unset. Local development only.
const DefaultSigningKey = "local-dev-signing-key-change-in-production"

// JWTConfigFromEnv reads JWT_SIGNING_KEY, JWT_ISSUER and JWT_AUDIENCE.
func JWTConfigFromEnv() JWTConfig {
	return JWTConfig{
		SigningKey: getEnvOrDefault("JWT_SIGNING_KEY", DefaultSigningKey),
		Issuer:     getEnvOrDefault("JWT_ISSUER", "giveandget"),
		Audience:   getEnvOrDefault("JWT_AUDIENCE", "giveandget-api"),
	}
}

// UsesDefaultKey reports whether the config fell back to DefaultSigningKey.
func (c JWTConfig) UsesDefaultKey() bool {
	return c.SigningKey == DefaultSigningKey
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        now,
	}
}

// GenerateAccessToken creates a signed token for an operator.
// A zero ttl means DefaultTokenTTL.
func (s *JWTService) GenerateAccessToken(subject, orgID, role string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	if !ValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if ttl < 0 || ttl > MaxTokenTTL {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		OrgID: orgID,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: missing subject or role", ErrInvalidAccessToken)
	}

	return claims, nil
}

// ValidRole reports whether role is one the API understands.
func ValidRole(role string) bool {
	return role == RoleOperator || role == RoleAdmin
}

func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
