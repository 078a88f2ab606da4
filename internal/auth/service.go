package auth

import (
	"context"
	"time"
)

// Principal is the authenticated caller of a write endpoint.
type Principal struct {
	Subject   string
	OrgID     string
	Role      string
	ExpiresAt time.Time
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanManage reports whether the principal may write the organization.
func (p Principal) CanManage(orgID string) bool {
	if p.IsAdmin() {
		return true
	}
	return orgID != "" && p.OrgID == orgID
}

// IssuedToken is a freshly signed operator token.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
}

// Service provides authentication operations.
type Service struct {
	jwtService *JWTService
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService *JWTService
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{jwtService: cfg.JWTService}
}

// IssueToken signs a token for an operator. A zero ttl means DefaultTokenTTL.
func (s *Service) IssueToken(_ context.Context, subject, orgID, role string, ttl time.Duration) (*IssuedToken, error) {
	if role == "" {
		role = RoleOperator
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(subject, orgID, role, ttl)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// ValidateAccessToken validates an access token and returns the caller.
func (s *Service) ValidateAccessToken(tokenString string) (Principal, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return Principal{}, err
	}

	p := Principal{
		Subject: claims.Subject,
		OrgID:   claims.OrgID,
		Role:    claims.Role,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
