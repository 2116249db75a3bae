package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// SessionService issues and checks the bearer tokens the HTTP surface uses
// to identify the logged-in user.
type SessionService interface {
	// Login resolves a verified provider login to a user and issues a token.
	Login(ctx context.Context, d model.UserDetails) (model.Tokens, model.User, error)
	// Authenticate validates a token and returns the user id it was issued for.
	Authenticate(token string) (string, error)
}

// SessionServiceImpl implements SessionService with HS256 JWTs.
type SessionServiceImpl struct {
	users     UserService
	signKey   []byte
	accessTTL time.Duration
}

var _ SessionService = (*SessionServiceImpl)(nil)

// NewSessionService constructs SessionService.
func NewSessionService(users UserService, signKey []byte, accessTTL time.Duration) *SessionServiceImpl {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &SessionServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL}
}

// Login finds or creates the user and issues an access token for it.
func (s *SessionServiceImpl) Login(ctx context.Context, d model.UserDetails) (model.Tokens, model.User, error) {
	u, err := s.users.FindOrCreate(ctx, d)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// Authenticate parses an HS256 token and returns its subject.
func (s *SessionServiceImpl) Authenticate(token string) (string, error) {
	if token == "" {
		return "", errs.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Join(errs.ErrUnauthorized, err)
	}
	if !ident.IsValid(claims.Subject) {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *SessionServiceImpl) issueAccessToken(userID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
