package services

import (
	"context"
	"testing"
	"time"

	"github.com/rohits-web03/peerlink/internal/models"
	"github.com/rohits-web03/peerlink/internal/repositories"
	"github.com/rohits-web03/peerlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(t *testing.T) (*UserService, *repositories.UserRepository) {
	t.Helper()
	repo := repositories.NewUserRepository(testutil.NewDB(t))
	return NewUserService(repo, "test-secret"), repo
}

func TestSignup(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, models.RoleFree, u.Role)
	assert.NotEqual(t, "password1", u.PasswordHash)

	_, err = svc.Signup(ctx, "alice", "another1")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Signup(ctx, "  ", "password1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Signup(ctx, "bob", "123")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Signup(ctx, "victim@gmail.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidInput, "email-shaped names are reserved for Google accounts")
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice", "password1")
	require.NoError(t, err)

	token, exp, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), exp, time.Minute)

	p, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, models.RoleFree, p.Role)

	_, _, err = svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_Rejects(t *testing.T) {
	svc, repo := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "password1")
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewUserService(repo, "different-secret")
		_, err := other.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewUserService(repo, "test-secret")
		later.now = func() time.Time { return time.Now().Add(SessionTTL + time.Hour) }
		_, err := later.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("deleted user", func(t *testing.T) {
		u, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NoError(t, repo.DeleteWithFiles(ctx, u.ID, nil))
		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestLoginWithGoogle(t *testing.T) {
	svc, repo := newTestUserService(t)
	ctx := context.Background()
	carol := GoogleIdentity{Subject: "sub-carol", Email: "carol@example.com"}

	token, _, err := svc.LoginWithGoogle(ctx, carol)
	require.NoError(t, err)
	p, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", p.Username)

	_, _, err = svc.LoginWithGoogle(ctx, carol)
	require.NoError(t, err)

	u, err := repo.FindByGoogleSub(ctx, "sub-carol")
	require.NoError(t, err)
	assert.Equal(t, p.UserID, u.ID, "second login reuses the account")

	_, _, err = svc.Login(ctx, "carol@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "google accounts have no password")

	_, _, err = svc.LoginWithGoogle(ctx, GoogleIdentity{Subject: "sub-x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = svc.LoginWithGoogle(ctx, GoogleIdentity{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoginWithGoogle_NeverLinksExistingAccount(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewUserRepository(db)
	records := repositories.NewFileRecordRepository(db)
	svc := NewUserService(repo, "test-secret")
	files := NewFileService(testutil.NewMemoryBlobStore(t), records, repo, NewShareCodeAllocator(records))
	ctx := context.Background()

	// A password account already holds the victim's email as its username.
	hash, err := bcrypt.GenerateFromPassword([]byte("attacker-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	squatter := &models.User{Username: "victim@gmail.com", PasswordHash: string(hash)}
	require.NoError(t, repo.Create(ctx, squatter))

	_, _, err = svc.LoginWithGoogle(ctx, GoogleIdentity{Subject: "sub-victim", Email: "victim@gmail.com"})
	assert.ErrorIs(t, err, ErrConflict)

	// Nothing the Google user could have done is visible to the password holder.
	token, _, err := svc.Login(ctx, "victim@gmail.com", "attacker-pw")
	require.NoError(t, err)
	p, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	recs, err := files.ListFiles(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, recs)

	got, err := repo.FindByID(ctx, squatter.ID)
	require.NoError(t, err)
	assert.Nil(t, got.GoogleSub, "the existing account is not bound to the Google subject")
	_, err = repo.FindByGoogleSub(ctx, "sub-victim")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestLoginWithGoogle_SubjectNotEmailIsTheIdentity(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	first, _, err := svc.LoginWithGoogle(ctx, GoogleIdentity{Subject: "sub-1", Email: "shared@example.com"})
	require.NoError(t, err)
	owner, err := svc.Authenticate(ctx, first)
	require.NoError(t, err)

	// A different Google account presenting the same email does not get in.
	_, _, err = svc.LoginWithGoogle(ctx, GoogleIdentity{Subject: "sub-2", Email: "shared@example.com"})
	assert.ErrorIs(t, err, ErrConflict)

	again, _, err := svc.LoginWithGoogle(ctx, GoogleIdentity{Subject: "sub-1", Email: "shared@example.com"})
	require.NoError(t, err)
	p, err := svc.Authenticate(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, owner.UserID, p.UserID)
}
