package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/config"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/repository"
)

type fakeTokenStore struct {
	byToken map[string]*domain.TokenRecord
	byUser  map[string]*domain.TokenRecord
	upserts int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byToken: map[string]*domain.TokenRecord{}, byUser: map[string]*domain.TokenRecord{}}
}

func (f *fakeTokenStore) GetByToken(_ context.Context, token string) (*domain.TokenRecord, error) {
	rec, ok := f.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeTokenStore) GetByUserName(_ context.Context, userName string) (*domain.TokenRecord, error) {
	rec, ok := f.byUser[userName]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeTokenStore) Upsert(_ context.Context, userName string, userID int64, token string, expiry time.Time) (*domain.TokenRecord, error) {
	if old, ok := f.byUser[userName]; ok {
		delete(f.byToken, old.Token)
	}
	rec := &domain.TokenRecord{ID: int64(f.upserts + 1), UserName: userName, UserID: userID, Token: token, Expiry: expiry}
	f.byUser[userName] = rec
	f.byToken[token] = rec
	f.upserts++
	return rec, nil
}

func (f *fakeTokenStore) Delete(_ context.Context, token string) error {
	if rec, ok := f.byToken[token]; ok {
		delete(f.byUser, rec.UserName)
		delete(f.byToken, token)
	}
	return nil
}

type fakeSecretStore struct {
	values map[string]string
}

func newFakeSecretStore() *fakeSecretStore { return &fakeSecretStore{values: map[string]string{}} }

func (f *fakeSecretStore) Set(_ context.Context, key, valueHash string, _ time.Duration) error {
	f.values[key] = valueHash
	return nil
}

func (f *fakeSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeSecretStore) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	return nil
}

type fakeERPAuth struct {
	uid int64
	err error
}

func (f fakeERPAuth) Login(context.Context, string, string) (int64, error) {
	return f.uid, f.err
}

type fakeDirectory struct {
	users     map[string]int64
	passwords map[int64]string
}

func (f *fakeDirectory) GetUserByLogin(_ context.Context, login string) (int64, string, error) {
	uid, ok := f.users[login]
	if !ok {
		return 0, "", repository.ErrNotFound
	}
	return uid, "User " + login, nil
}

func (f *fakeDirectory) SetUserPassword(_ context.Context, userID int64, password string) error {
	if f.passwords == nil {
		f.passwords = map[int64]string{}
	}
	f.passwords[userID] = password
	return nil
}

func (f *fakeDirectory) ResolveClientID(context.Context, int64) (int64, error) {
	return 500, nil
}

func newTestAuthService(erpAuth ERPAuthenticator, tokens *fakeTokenStore, secrets *fakeSecretStore) *AuthService {
	cfg := config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       24 * time.Hour,
		ResetSecretTTL: 10 * time.Minute,
	}
	dir := &fakeDirectory{users: map[string]int64{"asha@example.com": 42}}
	svc := NewAuthService(cfg, erpAuth, dir, tokens, secrets, slog.New(slog.NewTextHandler(os.Stderr, nil)), nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC) }
	return svc
}

func TestLoginIssuesToken(t *testing.T) {
	tokens := newFakeTokenStore()
	svc := newTestAuthService(fakeERPAuth{uid: 42}, tokens, newFakeSecretStore())

	result, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" || result.UserID != 42 {
		t.Fatalf("result=%+v", result)
	}
	if tokens.upserts != 1 {
		t.Fatalf("upserts=%d", tokens.upserts)
	}

	record, err := svc.ValidateToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if record.UserID != 42 || record.UserName != "asha@example.com" {
		t.Fatalf("record=%+v", record)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := newTestAuthService(fakeERPAuth{err: erp.ErrAuthenticationFailed}, newFakeTokenStore(), newFakeSecretStore())

	_, err := svc.Login(context.Background(), "asha@example.com", "wrong")
	if apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("err=%v, want authentication error", err)
	}
}

func TestLoginReusesActiveToken(t *testing.T) {
	tokens := newFakeTokenStore()
	svc := newTestAuthService(fakeERPAuth{uid: 42}, tokens, newFakeSecretStore())

	first, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.Token != second.Token {
		t.Fatal("active token was rotated instead of reused")
	}
	if tokens.upserts != 1 {
		t.Fatalf("upserts=%d, want 1", tokens.upserts)
	}
}

func TestLoginRotatesExpiredToken(t *testing.T) {
	tokens := newFakeTokenStore()
	svc := newTestAuthService(fakeERPAuth{uid: 42}, tokens, newFakeSecretStore())

	first, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}

	svc.now = func() time.Time { return time.Date(2024, 3, 17, 4, 0, 0, 0, time.UTC) }
	second, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("expired token was reused")
	}
	if _, err := svc.ValidateToken(context.Background(), first.Token); err == nil {
		t.Fatal("rotated-out token still validates")
	}
}

func TestValidateToken(t *testing.T) {
	tokens := newFakeTokenStore()
	svc := newTestAuthService(fakeERPAuth{uid: 42}, tokens, newFakeSecretStore())

	if _, err := svc.ValidateToken(context.Background(), "unknown"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("err=%v, want authentication error for unknown token", err)
	}

	result, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) }
	if _, err := svc.ValidateToken(context.Background(), result.Token); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("err=%v, want authentication error for expired token", err)
	}
}

func TestLogout(t *testing.T) {
	tokens := newFakeTokenStore()
	svc := newTestAuthService(fakeERPAuth{uid: 42}, tokens, newFakeSecretStore())

	result, err := svc.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), result.Token); err == nil {
		t.Fatal("token still valid after logout")
	}
}

func TestLoginWithGoogleNotConfigured(t *testing.T) {
	svc := newTestAuthService(fakeERPAuth{uid: 42}, newFakeTokenStore(), newFakeSecretStore())

	_, err := svc.LoginWithGoogle(context.Background(), "id-token", "asha@example.com")
	if apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("err=%v, want authentication error", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	secrets := newFakeSecretStore()
	svc := newTestAuthService(fakeERPAuth{uid: 42}, newFakeTokenStore(), secrets)

	code, err := svc.ForgotPassword(context.Background(), "asha@example.com")
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code=%q, want 6 digits", code)
	}

	if err := svc.ResetPassword(context.Background(), "asha@example.com", "000000", "newpw"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("err=%v, want rejection of a wrong code", err)
	}

	if err := svc.ResetPassword(context.Background(), "asha@example.com", code, "newpw"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	dir := svc.Users.(*fakeDirectory)
	if dir.passwords[42] != "newpw" {
		t.Fatal("password not propagated")
	}

	// Code is single use.
	if err := svc.ResetPassword(context.Background(), "asha@example.com", code, "again"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("err=%v, want rejection after consumption", err)
	}
}

func TestForgotPasswordUnknownUser(t *testing.T) {
	svc := newTestAuthService(fakeERPAuth{uid: 42}, newFakeTokenStore(), newFakeSecretStore())

	_, err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("err=%v, want not found", err)
	}
}
