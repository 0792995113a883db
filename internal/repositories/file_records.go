package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/rohits-web03/peerlink/internal/models"
	"gorm.io/gorm"
)

type FileRecordRepository struct {
	db *gorm.DB
}

func NewFileRecordRepository(db *gorm.DB) *FileRecordRepository {
	return &FileRecordRepository{db: db}
}

func (r *FileRecordRepository) ShareCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.FileRecord{}).Where("share_code = ?", code).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts rec. A share code collision returns ErrDuplicateKey.
func (r *FileRecordRepository) Create(ctx context.Context, rec *models.FileRecord) error {
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *FileRecordRepository) FindByShareCode(ctx context.Context, code string) (*models.FileRecord, error) {
	var rec models.FileRecord
	if err := r.db.WithContext(ctx).Where("share_code = ?", code).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// FindByShareCodeAndOwner never matches guest records since owner_id = ? is false for NULL.
func (r *FileRecordRepository) FindByShareCodeAndOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := r.db.WithContext(ctx).
		Where("share_code = ? AND owner_id = ?", code, ownerID).
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *FileRecordRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.FileRecord, error) {
	recs := []models.FileRecord{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("upload_time DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// IncrementDownloadCount bumps the counter in SQL so concurrent issuances are not lost.
func (r *FileRecordRepository) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.FileRecord{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FileRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
