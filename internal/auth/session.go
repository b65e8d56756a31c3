package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"
)

var (
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrRevoked           = errors.New("token revoked")
)

// Sessions exchanges the shared access code for tokens and checks them on
// every request.
type Sessions struct {
	code    []byte
	signer  *Signer
	revoked Revoker
	log     *zap.Logger
}

// NewSessions builds the operator session capability.
func NewSessions(accessCode string, signer *Signer, revoked Revoker, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{code: []byte(accessCode), signer: signer, revoked: revoked, log: log.Named("auth")}
}

// Login issues a token pair when code matches the configured access code.
func (s *Sessions) Login(ctx context.Context, code string) (TokenPair, error) {
	if len(s.code) == 0 || subtle.ConstantTimeCompare([]byte(code), s.code) != 1 {
		s.log.Info("login rejected")
		return TokenPair{}, ErrInvalidAccessCode
	}
	return s.signer.Issue(Operator)
}

// Refresh trades a refresh token for a new pair. The old refresh token is
// revoked so it can be used once.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.check(ctx, refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return TokenPair{}, err
	}
	return s.signer.Issue(claims.Subject)
}

// Logout revokes the access token described by claims.
func (s *Sessions) Logout(ctx context.Context, claims Claims) error {
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Authenticate validates an access token and confirms it was not revoked.
func (s *Sessions) Authenticate(ctx context.Context, accessToken string) (Claims, error) {
	return s.check(ctx, accessToken, KindAccess)
}

func (s *Sessions) check(ctx context.Context, token, kind string) (Claims, error) {
	claims, err := s.signer.Parse(token, kind)
	if err != nil {
		return Claims{}, err
	}
	revoked, err := s.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrRevoked
	}
	return claims, nil
}
