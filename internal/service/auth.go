// Package service contains application services for accounts and the family diary.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/health-diary/internal/crypto"
	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/limiter"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/repository"
	"github.com/and161185/health-diary/internal/validate"
)

// AuthService defines account operations.
type AuthService interface {
	// Register creates an account and signs it in.
	Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error)
	// Login applies rate-limiting and authenticates the user.
	Login(ctx context.Context, req LoginRequest, ip string) (model.AuthResult, error)
	// Authenticate verifies a bearer token and returns its subject.
	Authenticate(token string) (uuid.UUID, error)
}

// RegisterRequest is the register payload.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthServiceImpl implements AuthService over a UserRepository.
type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	val       *validate.Validator
	now       func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, val *validate.Validator) *AuthServiceImpl {
	if val == nil {
		val = validate.New()
	}
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, val: val, now: time.Now}
}

// Register creates a new account with an Argon2id password hash.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.val.Struct(req); err != nil {
		return model.AuthResult{}, err
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.AuthResult{}, err
	}
	hash, err := pkgcrypto.Hash(req.Password)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	a := &model.Account{
		User: model.User{
			ID:     uid.String(),
			Email:  req.Email,
			Name:   req.Name,
			Avatar: model.AvatarURL(req.Email),
		},
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, a); err != nil {
		return model.AuthResult{}, err
	}
	return s.issue(uid, a.User)
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, req LoginRequest, ip string) (model.AuthResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.val.Struct(req); err != nil {
		return model.AuthResult{}, err
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, req.Email, ipHash)
	if err != nil {
		return model.AuthResult{}, err
	}
	if !allowed {
		return model.AuthResult{}, errs.ErrRateLimited
	}

	a, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.AuthResult{}, err
	}
	ok := false
	if err == nil {
		ok, _ = pkgcrypto.Verify(req.Password, a.PasswordHash)
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, req.Email, ipHash); ferr == nil && blocked {
			return model.AuthResult{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.AuthResult{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, req.Email, ipHash)

	uid, err := uuid.FromString(a.ID)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("stored user id: %w", err)
	}
	return s.issue(uid, a.User)
}

// Authenticate verifies an HS256 access token and returns the user ID.
func (s *AuthServiceImpl) Authenticate(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return uid, nil
}

func (s *AuthServiceImpl) issue(uid uuid.UUID, u model.User) (model.AuthResult, error) {
	tok, exp, err := s.issueAccessToken(uid)
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{Token: tok, ExpiresAt: exp, User: u}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
