package merge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/enums"
)

// Repository persists merge records. A missing row is the ABSENT state.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a merge record repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Find returns the user's record for kind, or gorm.ErrRecordNotFound.
func (r *Repository) Find(ctx context.Context, userID uuid.UUID, kind enums.MergeKind) (*models.MergeRecord, error) {
	var record models.MergeRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindForUpdate is Find holding the row lock until the transaction ends.
func (r *Repository) FindForUpdate(ctx context.Context, userID uuid.UUID, kind enums.MergeKind) (*models.MergeRecord, error) {
	var record models.MergeRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkPending moves the record to pending, counting the attempt.
func (r *Repository) MarkPending(ctx context.Context, userID uuid.UUID, kind enums.MergeKind, now time.Time) error {
	record := models.MergeRecord{
		UserID:    userID,
		Kind:      kind,
		Status:    enums.MergeStatusPending,
		Attempts:  1,
		StartedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "kind"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":       enums.MergeStatusPending,
				"attempts":     gorm.Expr("merge_records.attempts + 1"),
				"started_at":   now,
				"completed_at": gorm.Expr("NULL"),
				"updated_at":   now,
			}),
		}).
		Create(&record).Error
}

// MarkCompleted records a finished merge.
func (r *Repository) MarkCompleted(ctx context.Context, userID uuid.UUID, kind enums.MergeKind, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.MergeRecord{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Updates(map[string]any{
			"status":       enums.MergeStatusCompleted,
			"completed_at": now,
		}).Error
}

// Delete returns the record to ABSENT.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, kind enums.MergeKind) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Delete(&models.MergeRecord{}).Error
}

// DeleteStalePending drops pending records started before cutoff and reports
// how many were reset.
func (r *Repository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", enums.MergeStatusPending, cutoff).
		Delete(&models.MergeRecord{})
	return res.RowsAffected, res.Error
}
