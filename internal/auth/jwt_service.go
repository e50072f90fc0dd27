package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/gatekeeper/internal/permissions"
)

// DefaultAccessTokenTTL is the validity period of tokens minted by IssueToken.
const DefaultAccessTokenTTL = 15 * time.Minute

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims are the identity claims asserted by the upstream identity provider.
// RoleIDs, when present, are authoritative for the request.
type Claims struct {
	UserID       string   `json:"uid"`
	RoleIDs      []string `json:"role_ids,omitempty"`
	DepartmentID string   `json:"department_id,omitempty"`
	BranchID     string   `json:"branch_id,omitempty"`
	TeamID       string   `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims to the evaluator's view of the caller.
func (c *Claims) Actor() permissions.Actor {
	return permissions.Actor{
		UserID:       c.UserID,
		RoleIDs:      append([]string(nil), c.RoleIDs...),
		DepartmentID: c.DepartmentID,
		BranchID:     c.BranchID,
		TeamID:       c.TeamID,
	}
}

// HasRoles reports whether the token carried an explicit role list.
func (c *Claims) HasRoles() bool {
	return c.RoleIDs != nil
}

// TokenInput holds the identity encoded by IssueToken.
type TokenInput struct {
	UserID       string
	RoleIDs      []string
	DepartmentID string
	BranchID     string
	TeamID       string
	Audience     []string
}

// JWTService verifies bearer tokens. Tokens are normally minted by the
// identity layer; IssueToken exists for tests and local tooling.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// IssueToken signs a token carrying the supplied identity.
func (s *JWTService) IssueToken(input TokenInput) (string, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return "", errors.New("jwt: user id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:       input.UserID,
		RoleIDs:      cloneStrings(input.RoleIDs),
		DepartmentID: input.DepartmentID,
		BranchID:     input.BranchID,
		TeamID:       input.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    s.issuer,
			Audience:  input.Audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT, returning the identity claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}

	return &claims, nil
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}
