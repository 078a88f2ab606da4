package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/auth"
)

func newJWTService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newJWTService("test-secret-key-for-testing-only", "giveandget", "giveandget-api")

	token, expiresAt, err := svc.GenerateAccessToken("ops@shelter.example", "org_abc", auth.RoleOperator, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@shelter.example", claims.Subject)
	assert.Equal(t, "org_abc", claims.OrgID)
	assert.Equal(t, auth.RoleOperator, claims.Role)
	assert.Equal(t, "giveandget", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_GenerateRejectsBadInput(t *testing.T) {
	svc := newJWTService("k", "giveandget", "giveandget-api")

	tests := []struct {
		name    string
		subject string
		role    string
		ttl     time.Duration
		wantErr error
	}{
		{"missing subject", "", auth.RoleOperator, time.Hour, auth.ErrMissingSubject},
		{"unknown role", "s", "superuser", time.Hour, auth.ErrInvalidRole},
		{"negative ttl", "s", auth.RoleAdmin, -time.Minute, auth.ErrInvalidTTL},
		{"ttl too long", "s", auth.RoleAdmin, auth.MaxTokenTTL + time.Hour, auth.ErrInvalidTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.GenerateAccessToken(tt.subject, "", tt.role, tt.ttl)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newJWTService("test-secret-key-for-testing-only", "giveandget", "giveandget-api")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-3 * time.Hour)
	issuer := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "k",
		Issuer:     "giveandget",
		Audience:   "giveandget-api",
		Now:        func() time.Time { return issuedAt },
	})

	token, _, err := issuer.GenerateAccessToken("s", "org_1", auth.RoleOperator, time.Hour)
	require.NoError(t, err)

	_, err = newJWTService("k", "giveandget", "giveandget-api").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_Mismatches(t *testing.T) {
	base := newJWTService("key-one", "giveandget", "giveandget-api")
	token, _, err := base.GenerateAccessToken("s", "org_1", auth.RoleOperator, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		svc  *auth.JWTService
	}{
		{"wrong signing key", newJWTService("key-two", "giveandget", "giveandget-api")},
		{"wrong issuer", newJWTService("key-one", "someone-else", "giveandget-api")},
		{"wrong audience", newJWTService("key-one", "giveandget", "other-api")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestValidRole(t *testing.T) {
	assert.True(t, auth.ValidRole(auth.RoleOperator))
	assert.True(t, auth.ValidRole(auth.RoleAdmin))
	assert.False(t, auth.ValidRole(""))
	assert.False(t, auth.ValidRole("Admin"))
}

func TestJWTConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_AUDIENCE", "")

	cfg := auth.JWTConfigFromEnv()
	assert.True(t, cfg.UsesDefaultKey())
	assert.Equal(t, "giveandget", cfg.Issuer)
	assert.Equal(t, "giveandget-api", cfg.Audience)

	t.Setenv("JWT_SIGNING_KEY", "prod-secret")
	t.Setenv("JWT_ISSUER", "giveandget-staging")

	cfg = auth.JWTConfigFromEnv()
	assert.False(t, cfg.UsesDefaultKey())
	assert.Equal(t, "prod-secret", cfg.SigningKey)
	assert.Equal(t, "giveandget-staging", cfg.Issuer)
}
