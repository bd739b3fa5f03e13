package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cartsync-backend/pkg/enums"
)

// MergeRecord tracks a user's guest-to-account merge per collection kind.
// No row means the merge has not started.
type MergeRecord struct {
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;primaryKey"`
	User        *User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Kind        enums.MergeKind   `gorm:"column:kind;primaryKey"`
	Status      enums.MergeStatus `gorm:"column:status;not null"`
	Attempts    int               `gorm:"column:attempts;not null;default:0"`
	StartedAt   time.Time         `gorm:"column:started_at;not null"`
	CompletedAt *time.Time        `gorm:"column:completed_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
