package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	Username      string       `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash  string       `json:"-" gorm:"column:password;not null"`
	GoogleSub     *string      `json:"-" gorm:"uniqueIndex"` // Google account subject; nil for password accounts
	TransferCount int          `json:"transferCount" gorm:"not null;default:0"`
	Role          Role         `json:"role" gorm:"type:varchar(16);not null;default:FREE"`
	Files         []FileRecord `json:"-" gorm:"foreignKey:OwnerID"`
	CreatedAt     time.Time    `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time    `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleFree
	}
	return nil
}
