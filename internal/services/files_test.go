package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/peerlink/internal/models"
	"github.com/rohits-web03/peerlink/internal/repositories"
	"github.com/rohits-web03/peerlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fiveDigits = regexp.MustCompile(`^[1-9][0-9]{4}$`)

type testEnv struct {
	files   *FileService
	users   *UserService
	blobs   *testutil.MemoryBlobStore
	records *repositories.FileRecordRepository
	userDB  *repositories.UserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	records := repositories.NewFileRecordRepository(db)
	userRepo := repositories.NewUserRepository(db)
	blobs := testutil.NewMemoryBlobStore(t)
	return &testEnv{
		files:   NewFileService(blobs, records, userRepo, NewShareCodeAllocator(records)),
		users:   NewUserService(userRepo, "test-secret"),
		blobs:   blobs,
		records: records,
		userDB:  userRepo,
	}
}

func (e *testEnv) signup(t *testing.T, name string) *Principal {
	t.Helper()
	u, err := e.users.Signup(context.Background(), name, "password1")
	require.NoError(t, err)
	return &Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func upload(t *testing.T, svc *FileService, name, content string, p *Principal) *models.FileRecord {
	t.Helper()
	rec, err := svc.Upload(context.Background(), UploadInput{
		Body:        strings.NewReader(content),
		Size:        int64(len(content)),
		Filename:    name,
		ContentType: "text/plain",
	}, p)
	require.NoError(t, err)
	return rec
}

func fetch(t *testing.T, rawURL string) (int, []byte, http.Header) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body, resp.Header
}

func TestUpload_Guest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	rec := upload(t, env.files, "notes.txt", "hello", nil)

	assert.Regexp(t, fiveDigits, rec.ShareCode)
	assert.True(t, rec.IsGuest())
	assert.True(t, env.blobs.Has(rec.StorageKey))
	assert.True(t, strings.HasSuffix(rec.StorageKey, "_notes.txt"))

	files, err := env.files.ListFiles(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, files, "guest uploads never appear in owner listings")

	err = env.files.DeleteFile(ctx, rec.ShareCode, alice)
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
	assert.True(t, env.blobs.Has(rec.StorageKey))
}

func TestUpload_OwnerIncrementsTransferCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	upload(t, env.files, "a.txt", "a", alice)
	upload(t, env.files, "b.txt", "b", alice)

	u, err := env.userDB.FindByID(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, u.TransferCount)
}

func TestUpload_RejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.files.Upload(context.Background(), UploadInput{Body: strings.NewReader(""), Size: 0, Filename: "x"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.files.Upload(context.Background(), UploadInput{Body: strings.NewReader("x"), Size: 1, Filename: " "}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, env.blobs.PutCalls)
}

func TestUpload_BlobFailureCreatesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	env.blobs.PutErr = errors.New("bucket unavailable")

	_, err := env.files.Upload(ctx, UploadInput{Body: strings.NewReader("data"), Size: 4, Filename: "a.txt"}, alice)
	assert.ErrorIs(t, err, ErrUpstream)

	files, err := env.files.ListFiles(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, files)

	u, err := env.userDB.FindByID(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Zero(t, u.TransferCount)
}

func TestUpload_ForbiddenRole(t *testing.T) {
	env := newTestEnv(t)
	p := &Principal{UserID: uuid.New(), Username: "mallory", Role: models.Role("SUSPENDED")}

	_, err := env.files.Upload(context.Background(), UploadInput{Body: strings.NewReader("x"), Size: 1, Filename: "x"}, p)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpload_ShareCodesAreUnique(t *testing.T) {
	env := newTestEnv(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		rec := upload(t, env.files, "f.txt", "x", nil)
		require.False(t, seen[rec.ShareCode], "duplicate share code %s", rec.ShareCode)
		seen[rec.ShareCode] = true
	}
}

// scriptedAllocator ignores existence and returns fixed codes, simulating two
// uploads that both passed the advisory check for the same code.
type scriptedAllocator struct {
	mu    sync.Mutex
	codes []string
}

func (a *scriptedAllocator) Allocate(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	code := a.codes[0]
	if len(a.codes) > 1 {
		a.codes = a.codes[1:]
	}
	return code, nil
}

func TestUpload_RetriesOnUniqueViolation(t *testing.T) {
	env := newTestEnv(t)
	first := upload(t, env.files, "a.txt", "a", nil)

	env.files.codes = &scriptedAllocator{codes: []string{first.ShareCode, first.ShareCode, "77777"}}
	rec := upload(t, env.files, "b.txt", "b", nil)

	assert.Equal(t, "77777", rec.ShareCode)
	assert.Equal(t, 2, env.blobs.Len())
}

func TestUpload_UniqueViolationsExhausted(t *testing.T) {
	env := newTestEnv(t)
	first := upload(t, env.files, "a.txt", "a", nil)

	env.files.codes = &scriptedAllocator{codes: []string{first.ShareCode}}
	_, err := env.files.Upload(context.Background(), UploadInput{Body: strings.NewReader("b"), Size: 1, Filename: "b.txt"}, nil)

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, env.blobs.Len(), "blob of the failed upload is cleaned up")
}

func TestDownloadURL_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	content := "exactly the bytes that were uploaded"
	rec := upload(t, env.files, "report.pdf", content, nil)

	link, err := env.files.DownloadURL(context.Background(), rec.ShareCode)
	require.NoError(t, err)

	status, body, header := fetch(t, link)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []byte(content), body)
	assert.Equal(t, `attachment; filename="report.pdf"`, header.Get("Content-Disposition"))
	assert.Equal(t, "application/octet-stream", header.Get("Content-Type"))
}

func TestDownloadURL_ExpiresAfterTenMinutes(t *testing.T) {
	env := newTestEnv(t)
	rec := upload(t, env.files, "a.txt", "abc", nil)

	issued := time.Now()
	env.blobs.Now = func() time.Time { return issued }
	link, err := env.files.DownloadURL(context.Background(), rec.ShareCode)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "600", u.Query().Get("ttl"))

	env.blobs.Now = func() time.Time { return issued.Add(599 * time.Second) }
	status, _, _ := fetch(t, link)
	assert.Equal(t, http.StatusOK, status)

	env.blobs.Now = func() time.Time { return issued.Add(601 * time.Second) }
	status, _, _ = fetch(t, link)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDownloadURL_CountsEachIssuance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := upload(t, env.files, "a.txt", "abc", nil)
	assert.Zero(t, rec.DownloadCount)

	for want := int64(1); want <= 3; want++ {
		_, err := env.files.DownloadURL(ctx, rec.ShareCode)
		require.NoError(t, err)

		got, err := env.records.FindByShareCode(ctx, rec.ShareCode)
		require.NoError(t, err)
		assert.Equal(t, want, got.DownloadCount)
	}
}

func TestDownloadURL_UnknownCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.files.DownloadURL(context.Background(), "12345")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.files.DownloadURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileInfo_DoesNotCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := upload(t, env.files, "a.txt", "abc", nil)

	info, err := env.files.FileInfo(ctx, rec.ShareCode)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.OriginalFilename)
	assert.Equal(t, int64(3), info.Size)
	assert.Zero(t, info.DownloadCount)

	_, err = env.files.FileInfo(ctx, "00000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFile_Indistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	rec := upload(t, env.files, "a.txt", "abc", alice)

	errWrongOwner := env.files.DeleteFile(ctx, rec.ShareCode, bob)
	errMissing := env.files.DeleteFile(ctx, "00000", bob)

	assert.ErrorIs(t, errWrongOwner, ErrNotFoundOrUnauthorized)
	assert.Equal(t, errMissing, errWrongOwner)
	assert.True(t, env.blobs.Has(rec.StorageKey))
}

func TestDeleteFile_RemovesEverywhere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	rec := upload(t, env.files, "a.txt", "abc", alice)

	require.NoError(t, env.files.DeleteFile(ctx, rec.ShareCode, alice))

	assert.False(t, env.blobs.Has(rec.StorageKey))
	files, err := env.files.ListFiles(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, files)
	_, err = env.files.DownloadURL(ctx, rec.ShareCode)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, env.files.DeleteFile(ctx, rec.ShareCode, alice), ErrNotFoundOrUnauthorized)
}

func TestDeleteFile_BlobFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	rec := upload(t, env.files, "a.txt", "abc", alice)
	env.blobs.DeleteErr = errors.New("timeout")

	err := env.files.DeleteFile(ctx, rec.ShareCode, alice)
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = env.records.FindByShareCode(ctx, rec.ShareCode)
	assert.NoError(t, err, "record survives a failed blob delete")
}

func TestOwnerScopedOperationsRequireUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.files.ListFiles(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, env.files.DeleteFile(ctx, "12345", nil), ErrUnauthenticated)
	assert.ErrorIs(t, env.files.DeleteAccount(ctx, nil), ErrUnauthenticated)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	a1 := upload(t, env.files, "a1.txt", "1", alice)
	a2 := upload(t, env.files, "a2.txt", "2", alice)
	b1 := upload(t, env.files, "b1.txt", "3", bob)
	g1 := upload(t, env.files, "g1.txt", "4", nil)

	require.NoError(t, env.files.DeleteAccount(ctx, alice))

	for _, rec := range []*models.FileRecord{a1, a2} {
		assert.False(t, env.blobs.Has(rec.StorageKey))
		_, err := env.records.FindByShareCode(ctx, rec.ShareCode)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	}
	for _, rec := range []*models.FileRecord{b1, g1} {
		assert.True(t, env.blobs.Has(rec.StorageKey))
	}
	_, err := env.userDB.FindByID(ctx, alice.UserID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDeleteAccount_BlobFailureKeepsRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	rec := upload(t, env.files, "a.txt", "abc", alice)
	env.blobs.DeleteErr = errors.New("timeout")

	assert.ErrorIs(t, env.files.DeleteAccount(ctx, alice), ErrUpstream)

	_, err := env.records.FindByShareCode(ctx, rec.ShareCode)
	assert.NoError(t, err)
	_, err = env.userDB.FindByID(ctx, alice.UserID)
	assert.NoError(t, err)
}

func TestDeleteAccount_UploadDuringDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	upload(t, env.files, "a1.txt", "1", alice)
	upload(t, env.files, "a2.txt", "2", alice)

	var (
		once sync.Once
		late *models.FileRecord
	)
	env.blobs.BeforeDelete = func(string) {
		once.Do(func() { late = upload(t, env.files, "late.txt", "3", alice) })
	}

	require.NoError(t, env.files.DeleteAccount(ctx, alice))

	require.NotNil(t, late)
	assert.Zero(t, env.blobs.Len(), "the late upload's blob is not orphaned")
	_, err := env.records.FindByShareCode(ctx, late.ShareCode)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = env.userDB.FindByID(ctx, alice.UserID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDeleteAccount_GivesUpWhenFilesKeepChanging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	upload(t, env.files, "a.txt", "1", alice)

	var mu sync.Mutex
	env.blobs.BeforeDelete = func(string) {
		mu.Lock()
		defer mu.Unlock()
		upload(t, env.files, "again.txt", "x", alice)
	}

	err := env.files.DeleteAccount(ctx, alice)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.userDB.FindByID(ctx, alice.UserID)
	assert.NoError(t, err, "account survives")
	files, err := env.files.ListFiles(ctx, alice)
	require.NoError(t, err)
	for _, f := range files {
		assert.True(t, env.blobs.Has(f.StorageKey), "every remaining record still has its blob")
	}
}

func TestLifecycle_AliceScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	content := []byte("0123456789")
	rec, err := env.files.Upload(ctx, UploadInput{
		Body:        bytes.NewReader(content),
		Size:        int64(len(content)),
		Filename:    "report.pdf",
		ContentType: "application/pdf",
	}, alice)
	require.NoError(t, err)
	require.Regexp(t, fiveDigits, rec.ShareCode)

	link, err := env.files.DownloadURL(ctx, rec.ShareCode)
	require.NoError(t, err)
	assert.NotEmpty(t, link)

	files, err := env.files.ListFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, rec.ShareCode, files[0].ShareCode)
	assert.Equal(t, int64(1), files[0].DownloadCount)

	require.NoError(t, env.files.DeleteFile(ctx, rec.ShareCode, alice))

	_, err = env.files.DownloadURL(ctx, rec.ShareCode)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
	}{
		{"report.pdf", "_report.pdf"},
		{"../../etc/passwd", "_passwd"},
		{`C:\Users\me\doc.txt`, "_doc.txt"},
		{"..", "_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := StorageKey(tt.name)
			assert.True(t, strings.HasSuffix(key, tt.suffix), key)
			assert.NotContains(t, key, "/")
		})
	}
	assert.NotEqual(t, StorageKey("a"), StorageKey("a"))
}
