package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/config"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/repository"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
)

// TokenStore is the gateway-local bearer token table.
type TokenStore interface {
	GetByToken(ctx context.Context, token string) (*domain.TokenRecord, error)
	GetByUserName(ctx context.Context, userName string) (*domain.TokenRecord, error)
	Upsert(ctx context.Context, userName string, userID int64, token string, expiry time.Time) (*domain.TokenRecord, error)
	Delete(ctx context.Context, token string) error
}

// SecretStore is the short-lived secret cache (reset codes).
type SecretStore interface {
	Set(ctx context.Context, key, valueHash string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ERPAuthenticator verifies end-user credentials against the ERP.
type ERPAuthenticator interface {
	Login(ctx context.Context, login, password string) (int64, error)
}

// UserDirectory resolves ERP users and tenant scope.
type UserDirectory interface {
	GetUserByLogin(ctx context.Context, login string) (int64, string, error)
	SetUserPassword(ctx context.Context, userID int64, password string) error
	ResolveClientID(ctx context.Context, userID int64) (int64, error)
}

// AuthService maintains one active bearer token per user name. Tokens are
// signed JWTs for tamper resistance, but the token store alone decides
// validity: the middleware looks the presented token up and the store's
// expiry is authoritative.
type AuthService struct {
	Config       config.Config
	ERP          ERPAuthenticator
	Users        UserDirectory
	Tokens       TokenStore
	Secrets      SecretStore
	Logger       *slog.Logger
	FirebaseAuth *fbauth.Client

	now func() time.Time
}

func NewAuthService(cfg config.Config, rpc ERPAuthenticator, users UserDirectory, tokens TokenStore, secrets SecretStore, logger *slog.Logger, firebaseAuth *fbauth.Client) *AuthService {
	return &AuthService{
		Config:       cfg,
		ERP:          rpc,
		Users:        users,
		Tokens:       tokens,
		Secrets:      secrets,
		Logger:       logger,
		FirebaseAuth: firebaseAuth,
		now:          time.Now,
	}
}

// AuthResult is an issued or reused bearer token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
	UserName  string
}

// Login verifies credentials against the ERP and returns the user's active
// token, rotating it when expired.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	uid, err := s.ERP.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, erp.ErrAuthenticationFailed) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, err
	}
	return s.issueOrReuse(ctx, email, uid)
}

// LoginWithGoogle verifies a Google/Firebase ID token and signs the matching
// ERP user in by email. Firebase verification is preferred when configured.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idTokenStr, email string) (*AuthResult, error) {
	switch {
	case s.FirebaseAuth != nil:
		if _, err := s.FirebaseAuth.VerifyIDToken(ctx, idTokenStr); err != nil {
			return nil, apperr.Wrap(apperr.KindAuthentication, "firebase token invalid", err)
		}
	case s.Config.GoogleClientID != "":
		if _, err := idtoken.Validate(ctx, idTokenStr, s.Config.GoogleClientID); err != nil {
			return nil, apperr.Wrap(apperr.KindAuthentication, "google token invalid", err)
		}
	default:
		return nil, apperr.Unauthorized("Google sign-in is not configured")
	}

	uid, _, err := s.Users.GetUserByLogin(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("No user registered for this email")
		}
		return nil, err
	}
	return s.issueOrReuse(ctx, email, uid)
}

func (s *AuthService) issueOrReuse(ctx context.Context, email string, uid int64) (*AuthResult, error) {
	existing, err := s.Tokens.GetByUserName(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil && !existing.Expired(s.now()) {
		return &AuthResult{Token: existing.Token, ExpiresAt: existing.Expiry, UserID: existing.UserID, UserName: email}, nil
	}

	expiresAt := s.now().Add(s.Config.TokenTTL)
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(uid, 10),
		"email": email,
		"jti":   uuid.NewString(),
		"exp":   expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	record, err := s.Tokens.Upsert(ctx, email, uid, signed, expiresAt)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("token rotated", "user", email)
	return &AuthResult{Token: record.Token, ExpiresAt: record.Expiry, UserID: record.UserID, UserName: email}, nil
}

// ValidateToken authenticates a presented bearer token against the store.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.TokenRecord, error) {
	record, err := s.Tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid token")
		}
		return nil, err
	}
	if record.Expired(s.now()) {
		return nil, apperr.Unauthorized("Token expired")
	}
	return record, nil
}

// Logout removes the presented token from the store.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.Tokens.Delete(ctx, token)
}

// ResolveTenant derives the caller's client scope from the ERP.
func (s *AuthService) ResolveTenant(ctx context.Context, userID int64) (int64, error) {
	clientID, err := s.Users.ResolveClientID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, apperr.NotFound("User not found")
		}
		return 0, err
	}
	return clientID, nil
}

const resetSecretPrefix = "pwdreset:"

// ForgotPassword generates a reset code and caches it hashed with a TTL.
// Delivery is out of scope here; the code is returned to the caller layer,
// which exposes it only in development.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if _, _, err := s.Users.GetUserByLogin(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NotFound("No user registered for this email")
		}
		return "", err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+100000)

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash reset code: %w", err)
	}
	if err := s.Secrets.Set(ctx, resetSecretPrefix+email, string(hash), s.Config.ResetSecretTTL); err != nil {
		return "", err
	}
	s.Logger.Info("reset code issued", "user", email)
	return code, nil
}

// ResetPassword verifies the cached code and updates the ERP user password.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	hash, err := s.Secrets.Get(ctx, resetSecretPrefix+email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized("Invalid or expired reset code")
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return apperr.Unauthorized("Invalid or expired reset code")
	}

	uid, _, err := s.Users.GetUserByLogin(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("No user registered for this email")
		}
		return err
	}
	if err := s.Users.SetUserPassword(ctx, uid, newPassword); err != nil {
		return err
	}
	_ = s.Secrets.Delete(ctx, resetSecretPrefix+email)
	return nil
}
