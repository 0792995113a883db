package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/rohits-web03/peerlink/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. A taken username returns ErrDuplicateKey.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByGoogleSub returns the account created by Google sign-in for sub.
func (r *UserRepository) FindByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("google_sub = ?", sub).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) IncrementTransferCount(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("transfer_count", gorm.Expr("transfer_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWithFiles removes the listed file records of the user and then the user,
// in one transaction. Only fileIDs are deleted since the caller has removed
// exactly their blobs. If the user owns records beyond fileIDs, those listed are
// still deleted but the user is kept and ErrFilesChanged is returned.
func (r *UserRepository) DeleteWithFiles(ctx context.Context, id uuid.UUID, fileIDs []uuid.UUID) error {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fileIDs) > 0 {
			err := tx.Where("owner_id = ? AND id IN ?", id, fileIDs).Delete(&models.FileRecord{}).Error
			if err != nil {
				return err
			}
		}

		var remaining int64
		if err := tx.Model(&models.FileRecord{}).Where("owner_id = ?", id).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			changed = true
			return nil
		}

		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		return ErrFilesChanged
	}
	return nil
}
