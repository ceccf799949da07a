package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ksenkov/walletcore/internal/domain"
)

type stubUsers struct {
	user *domain.User
}

func (s *stubUsers) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, domain.ErrInvalidCredentials
	}
	return s.user, nil
}

func testUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &domain.User{ID: 42, Username: "user1", PasswordHash: hash}
}

func TestLoginAndVerify(t *testing.T) {
	users := &stubUsers{user: testUser(t, "securepassword123")}
	svc := NewService(users, "test-secret", time.Hour)

	token, err := svc.Login(context.Background(), "user1", "securepassword123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	callerID, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), callerID)
}

func TestLoginWrongPassword(t *testing.T) {
	users := &stubUsers{user: testUser(t, "securepassword123")}
	svc := NewService(users, "test-secret", time.Hour)

	_, err := svc.Login(context.Background(), "user1", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewService(&stubUsers{}, "test-secret", time.Hour)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	users := &stubUsers{user: testUser(t, "pw")}
	issuer := NewService(users, "secret-a", time.Hour)
	verifier := NewService(users, "secret-b", time.Hour)

	token, err := issuer.Login(context.Background(), "user1", "pw")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	users := &stubUsers{user: testUser(t, "pw")}
	svc := NewService(users, "test-secret", -time.Minute)

	token, err := svc.Login(context.Background(), "user1", "pw")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService(&stubUsers{}, "test-secret", time.Hour)

	_, err := svc.Verify("not.a.token")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
