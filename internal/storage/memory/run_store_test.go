package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batchlog/internal/store"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	ctx := context.Background()
	runID := uuid.New()
	start := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.UpsertRunStart(ctx, runID, "hash", 10, start))
	require.NoError(t, s.AddRunProgress(ctx, runID, 1, 4, start.Add(time.Second)))
	require.NoError(t, s.AddRunProgress(ctx, runID, 2, 6, start.Add(2*time.Second)))

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, store.RunRunning, run.Status)
	require.Equal(t, int64(3), run.Batches)
	require.Equal(t, int64(10), run.Items)
	require.Equal(t, start.Add(2*time.Second), run.LastUpdate)
	require.Nil(t, run.FinishedAt)

	msg := "boom"
	require.NoError(t, s.CompleteRun(ctx, runID, start.Add(3*time.Second), store.RunError, &msg))
	msg = "mutated"

	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, store.RunError, run.Status)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, start.Add(3*time.Second), *run.FinishedAt)
	require.Equal(t, "boom", *run.ErrorMessage)
}

func TestRunStoreNotFound(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	_, err := s.GetRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.CompleteRun(context.Background(), uuid.New(), time.Now(), store.RunSuccess, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStoreListRuns(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, s.UpsertRunStart(ctx, ids[i], "run", 0, base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, s.CompleteRun(ctx, ids[0], base.Add(time.Hour), store.RunSuccess, nil))

	all, err := s.ListRuns(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, ids[2], all[0].ID)
	require.Equal(t, ids[0], all[2].ID)

	running := store.RunRunning
	filtered, err := s.ListRuns(ctx, &running, 10, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	page, err := s.ListRuns(ctx, nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[1], page[0].ID)

	empty, err := s.ListRuns(ctx, nil, 10, 5)
	require.NoError(t, err)
	require.Empty(t, empty)
}
