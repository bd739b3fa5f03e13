package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
)

// Persister stores device snapshots. Load of an unknown key yields an empty snapshot.
type Persister interface {
	Load(ctx context.Context, key string) (Snapshot, error)
	Save(ctx context.Context, key string, snapshot Snapshot) error
	Purge(ctx context.Context, key string) error
}

// SQLitePersister keeps snapshots as JSON rows in device_records.
type SQLitePersister struct {
	db *gorm.DB
}

// NewSQLitePersister builds a persister and ensures its table exists.
func NewSQLitePersister(ctx context.Context, db *gorm.DB) (*SQLitePersister, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if err := db.WithContext(ctx).AutoMigrate(&models.DeviceRecord{}); err != nil {
		return nil, fmt.Errorf("migrate device records: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

func (p *SQLitePersister) Load(ctx context.Context, key string) (Snapshot, error) {
	var record models.DeviceRecord
	err := p.db.WithContext(ctx).Where("device_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(record.Payload), &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode device record %s: %w", key, err)
	}
	return snapshot, nil
}

func (p *SQLitePersister) Save(ctx context.Context, key string, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	record := models.DeviceRecord{Key: key, Payload: string(payload)}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&record).Error
}

func (p *SQLitePersister) Purge(ctx context.Context, key string) error {
	return p.db.WithContext(ctx).Where("device_key = ?", key).Delete(&models.DeviceRecord{}).Error
}

// MemoryPersister keeps snapshots in process memory.
type MemoryPersister struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: map[string][]byte{}}
}

func (m *MemoryPersister) Load(_ context.Context, key string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.records[key]
	if !ok {
		return Snapshot{}, nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (m *MemoryPersister) Save(_ context.Context, key string, snapshot Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = raw
	return nil
}

func (m *MemoryPersister) Purge(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Has reports whether a record exists under key.
func (m *MemoryPersister) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[key]
	return ok
}
