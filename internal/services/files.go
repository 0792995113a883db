package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/peerlink/internal/models"
	"github.com/rohits-web03/peerlink/internal/repositories"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DownloadURLTTL is how long an issued download link stays valid.
	DownloadURLTTL = 10 * time.Minute

	maxInsertAttempts        = 5
	maxAccountDeleteAttempts = 3
	accountDeleteWorkers     = 8
	defaultContentType       = "application/octet-stream"
)

type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignDownload(ctx context.Context, key, filename string, expires time.Duration) (string, error)
}

type FileRecordStore interface {
	ShareCodeChecker
	Create(ctx context.Context, rec *models.FileRecord) error
	FindByShareCode(ctx context.Context, code string) (*models.FileRecord, error)
	FindByShareCodeAndOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.FileRecord, error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AccountStore interface {
	IncrementTransferCount(ctx context.Context, id uuid.UUID) error
	DeleteWithFiles(ctx context.Context, id uuid.UUID, fileIDs []uuid.UUID) error
}

type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

// FileService runs the upload, download-link and delete lifecycle of file records.
type FileService struct {
	blobs   BlobStore
	records FileRecordStore
	users   AccountStore
	codes   Allocator
}

func NewFileService(blobs BlobStore, records FileRecordStore, users AccountStore, codes Allocator) *FileService {
	return &FileService{blobs: blobs, records: records, users: users, codes: codes}
}

type UploadInput struct {
	Body        io.Reader
	Size        int64
	Filename    string
	ContentType string
	GuestID     string
}

// Upload stores the blob, then persists a record under a freshly allocated share code.
// If the blob write fails nothing is recorded.
func (s *FileService) Upload(ctx context.Context, in UploadInput, p *Principal) (*models.FileRecord, error) {
	if err := p.require(models.PermUpload); err != nil {
		return nil, err
	}
	if in.Body == nil || in.Size <= 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Filename)
	if name == "" {
		return nil, fmt.Errorf("%w: missing filename", ErrInvalidInput)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	key := StorageKey(name)
	if err := s.blobs.Put(ctx, key, in.Body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	rec := &models.FileRecord{
		OriginalFilename: name,
		StorageKey:       key,
		ContentType:      contentType,
		Size:             in.Size,
	}
	if p != nil {
		rec.OwnerID = &p.UserID
	} else {
		rec.GuestID = in.GuestID
	}

	if err := s.insertWithFreshCode(ctx, rec); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("failed to remove blob of unrecorded upload")
		}
		return nil, err
	}

	uploader := "guest"
	if p != nil {
		uploader = "user"
		if err := s.users.IncrementTransferCount(ctx, p.UserID); err != nil {
			log.Warn().Err(err).Str("user", p.Username).Msg("failed to increment transfer count")
		}
	}
	uploadsTotal.WithLabelValues(uploader).Inc()
	uploadBytesTotal.Add(float64(in.Size))

	log.Info().
		Str("share_code", rec.ShareCode).
		Str("uploader", uploader).
		Int64("size", rec.Size).
		Msg("file uploaded")

	return rec, nil
}

// insertWithFreshCode retries with a new code when the unique index rejects the
// one the allocator picked, which happens when two uploads race for it.
func (s *FileService) insertWithFreshCode(ctx context.Context, rec *models.FileRecord) error {
	for attempt := 1; ; attempt++ {
		code, err := s.codes.Allocate(ctx)
		if err != nil {
			return err
		}
		rec.ShareCode = code

		err = s.records.Create(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			return fmt.Errorf("%w: save file record: %w", ErrUpstream, err)
		}
		shareCodeInsertConflicts.Inc()
		if attempt >= maxInsertAttempts {
			return fmt.Errorf("%w: no free share code after %d attempts", ErrConflict, attempt)
		}
	}
}

// DownloadURL issues a time-limited link for the file behind shareCode and counts
// it as a download whether or not the link is ever followed.
func (s *FileService) DownloadURL(ctx context.Context, shareCode string) (string, error) {
	rec, err := s.lookup(ctx, shareCode)
	if err != nil {
		return "", err
	}

	url, err := s.blobs.PresignDownload(ctx, rec.StorageKey, rec.OriginalFilename, DownloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if err := s.records.IncrementDownloadCount(ctx, rec.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// deleted between lookup and increment
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	downloadLinksTotal.Inc()

	return url, nil
}

// FileInfo returns public metadata for shareCode without counting a download.
func (s *FileService) FileInfo(ctx context.Context, shareCode string) (*models.FileRecord, error) {
	return s.lookup(ctx, shareCode)
}

func (s *FileService) lookup(ctx context.Context, shareCode string) (*models.FileRecord, error) {
	if shareCode == "" {
		return nil, ErrNotFound
	}
	rec, err := s.records.FindByShareCode(ctx, shareCode)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return rec, nil
}

func (s *FileService) ListFiles(ctx context.Context, p *Principal) ([]models.FileRecord, error) {
	if err := p.requireUser(models.PermListOwn); err != nil {
		return nil, err
	}
	recs, err := s.records.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return recs, nil
}

// DeleteFile removes an owned file. The record is deleted only after the blob
// delete succeeded, so a failure leaves the file fully intact and retryable.
func (s *FileService) DeleteFile(ctx context.Context, shareCode string, p *Principal) error {
	if err := p.requireUser(models.PermDeleteOwn); err != nil {
		return err
	}

	rec, err := s.records.FindByShareCodeAndOwner(ctx, shareCode, p.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFoundOrUnauthorized
		}
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if err := s.blobs.Delete(ctx, rec.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if err := s.records.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// a concurrent delete won
			return ErrNotFoundOrUnauthorized
		}
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	deletesTotal.Inc()

	log.Info().Str("share_code", shareCode).Str("user", p.Username).Msg("file deleted")
	return nil
}

// DeleteAccount removes every blob the user owns, then their records and the
// user row in a single transaction. A blob failure aborts before any row is touched.
// Only records whose blobs were deleted are removed; files uploaded meanwhile
// trigger another pass.
func (s *FileService) DeleteAccount(ctx context.Context, p *Principal) error {
	if err := p.requireUser(models.PermDeleteAccount); err != nil {
		return err
	}

	deleted := 0
	for attempt := 1; ; attempt++ {
		n, err := s.deleteAccountPass(ctx, p)
		deleted += n
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrFilesChanged) {
			return err
		}
		if attempt >= maxAccountDeleteAttempts {
			return fmt.Errorf("%w: files kept changing during account deletion", ErrConflict)
		}
		log.Debug().Str("user", p.Username).Msg("files uploaded during account deletion, retrying")
	}

	log.Info().Str("user", p.Username).Int("files", deleted).Msg("account deleted")
	return nil
}

func (s *FileService) deleteAccountPass(ctx context.Context, p *Principal) (int, error) {
	recs, err := s.records.ListByOwner(ctx, p.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountDeleteWorkers)
	ids := make([]uuid.UUID, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		g.Go(func() error {
			return s.blobs.Delete(gctx, rec.StorageKey)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	err = s.users.DeleteWithFiles(ctx, p.UserID, ids)
	switch {
	case err == nil:
		return len(recs), nil
	case errors.Is(err, repositories.ErrFilesChanged):
		return len(recs), err
	case errors.Is(err, repositories.ErrNotFound):
		return 0, ErrNotFound
	default:
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}

// StorageKey returns an unguessable object key that keeps the original base name
// readable. The UUID prefix only prevents key collisions; it is not the share code.
func StorageKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}
	return uuid.NewString() + "_" + base
}
