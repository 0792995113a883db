package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileRecord links a public share code to a blob in the object store.
// Everything except DownloadCount is immutable once created.
type FileRecord struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ShareCode        string     `json:"shareCode" gorm:"uniqueIndex;not null"`
	OriginalFilename string     `json:"originalFilename" gorm:"not null"`
	StorageKey       string     `json:"-" gorm:"not null"` // object store key, never exposed
	ContentType      string     `json:"contentType"`
	Size             int64      `json:"size" gorm:"not null"` // bytes
	UploadTime       time.Time  `json:"uploadTime" gorm:"autoCreateTime"`
	DownloadCount    int64      `json:"downloadCount" gorm:"not null;default:0"`
	OwnerID          *uuid.UUID `json:"-" gorm:"type:uuid;index"` // nil for guest uploads
	GuestID          string     `json:"-"`
}

func (f *FileRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// IsGuest reports whether the record was uploaded without an account.
func (f *FileRecord) IsGuest() bool {
	return f.OwnerID == nil
}
