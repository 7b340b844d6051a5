package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCheckpointManager(t *testing.T) (*SQLiteStorage, *CheckpointManager) {
	t.Helper()
	store := createTestStorage(t)
	seedStore(t, store)

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)
	return store, cm
}

func TestCheckpointManager_Create(t *testing.T) {
	_, cm := newTestCheckpointManager(t)
	ctx := context.Background()

	info, err := cm.Create(ctx, "before-import", "manual checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "before-import", info.ID)
	assert.Equal(t, 1, info.RowCounts["transactions"])
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)
	assert.False(t, info.IsAuto)

	file, err := cm.File("before-import")
	require.NoError(t, err)
	_, err = os.Stat(file)
	require.NoError(t, err)

	_, err = cm.Create(ctx, "before-import", "again")
	assert.ErrorIs(t, err, ErrCheckpointExists)
}

func TestCheckpointManager_InvalidTags(t *testing.T) {
	_, cm := newTestCheckpointManager(t)
	ctx := context.Background()

	for _, tag := range []string{"../escape", "a/b", `a\b`, "it's"} {
		t.Run(tag, func(t *testing.T) {
			_, err := cm.Create(ctx, tag, "")
			assert.ErrorIs(t, err, ErrInvalidCheckpoint)
		})
	}
}

func TestCheckpointManager_ListAndDelete(t *testing.T) {
	_, cm := newTestCheckpointManager(t)
	ctx := context.Background()

	_, err := cm.Create(ctx, "one", "")
	require.NoError(t, err)
	_, err = cm.Create(ctx, "two", "")
	require.NoError(t, err)

	list, err := cm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].CreatedAt.Before(list[1].CreatedAt))

	require.NoError(t, cm.Delete(ctx, "one"))
	assert.ErrorIs(t, cm.Delete(ctx, "one"), ErrCheckpointNotFound)

	list, err = cm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "two", list[0].ID)
}

func TestCheckpointManager_AutoCheckpointPrunes(t *testing.T) {
	store, cm := newTestCheckpointManager(t)
	ctx := context.Background()

	for i := 0; i < maxAutoCheckpoints+2; i++ {
		info, err := cm.AutoCheckpoint(ctx, fmt.Sprintf("restore%d", i))
		require.NoError(t, err)
		assert.True(t, info.IsAuto)
	}

	list, err := cm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, maxAutoCheckpoints)

	var recorded int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkpoint_metadata").Scan(&recorded))
	assert.Equal(t, maxAutoCheckpoints, recorded)

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(store.Path()), "checkpoints"))
	require.NoError(t, err)
	assert.Len(t, entries, maxAutoCheckpoints*2)
}
