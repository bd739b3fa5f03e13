package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cartsync-backend/internal/merge"
	"github.com/angelmondragon/cartsync-backend/internal/testdb"
	"github.com/angelmondragon/cartsync-backend/pkg/enums"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
)

func TestStaleMergeJobResetsOnlyOldPendingRecords(t *testing.T) {
	client := testdb.Open(t)
	repo := merge.NewRepository(client.DB())
	ctx := context.Background()
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

	stuck := testdb.MustUser(t, client)
	fresh := testdb.MustUser(t, client)
	done := testdb.MustUser(t, client)
	require.NoError(t, repo.MarkPending(ctx, stuck, enums.MergeKindCart, now.Add(-time.Hour)))
	require.NoError(t, repo.MarkPending(ctx, fresh, enums.MergeKindCart, now.Add(-time.Minute)))
	require.NoError(t, repo.MarkPending(ctx, done, enums.MergeKindWishlist, now.Add(-time.Hour)))
	require.NoError(t, repo.MarkCompleted(ctx, done, enums.MergeKindWishlist, now.Add(-time.Hour)))

	jobIface, err := NewStaleMergeJob(StaleMergeJobParams{
		Logger:     logger.Nop(),
		Repository: repo,
		StaleAfter: 15 * time.Minute,
	})
	require.NoError(t, err)
	job := jobIface.(*staleMergeJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(ctx))

	_, err = repo.Find(ctx, stuck, enums.MergeKindCart)
	assert.Error(t, err, "stuck record should be reset to absent")
	record, err := repo.Find(ctx, fresh, enums.MergeKindCart)
	require.NoError(t, err)
	assert.Equal(t, enums.MergeStatusPending, record.Status)
	record, err = repo.Find(ctx, done, enums.MergeKindWishlist)
	require.NoError(t, err)
	assert.Equal(t, enums.MergeStatusCompleted, record.Status)
}

type failingMergeRepo struct{}

func (failingMergeRepo) DeleteStalePending(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestStaleMergeJobPropagatesErrors(t *testing.T) {
	job, err := NewStaleMergeJob(StaleMergeJobParams{Logger: logger.Nop(), Repository: failingMergeRepo{}})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
	assert.Equal(t, "stale-merge-reaper", job.Name())
}

func TestNewStaleMergeJobRequiresRepository(t *testing.T) {
	_, err := NewStaleMergeJob(StaleMergeJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
