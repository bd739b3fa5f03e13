package models

import "time"

// DeviceRecord is the on-device durable copy of a guest collection.
type DeviceRecord struct {
	Key       string    `gorm:"column:device_key;primaryKey"`
	Payload   string    `gorm:"column:payload;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
