package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_trader/internal/core"
)

func TestStateStores_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	stores := map[string]core.StateStore{}
	stores["json"] = NewJSONStateStore(filepath.Join(dir, "state.json"))

	sqlite, err := NewSQLiteStateStore(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	stores["sqlite"] = sqlite

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// fresh store yields an empty cursor
			state, err := store.LoadState(ctx)
			require.NoError(t, err)
			require.NotNil(t, state)
			assert.Empty(t, state.LastItemID)

			state.LastItemID = "100"
			state.MarkProcessed("98")
			state.MarkProcessed("99")
			state.MarkProcessed("100")
			require.NoError(t, store.SaveState(ctx, state))

			got, err := store.LoadState(ctx)
			require.NoError(t, err)
			assert.Equal(t, "100", got.LastItemID)
			assert.True(t, got.Processed("99"))
			assert.False(t, got.Processed("101"))

			require.NoError(t, store.Close())
		})
	}
}

func TestSaveState_TruncatesDedupWindow(t *testing.T) {
	store := NewJSONStateStore(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	state := &core.CursorState{}
	for i := 0; i < core.MaxProcessedIDs+50; i++ {
		state.MarkProcessed(fmt.Sprintf("id-%d", i))
	}
	require.NoError(t, store.SaveState(ctx, state))

	got, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Len(t, got.ProcessedIDs, core.MaxProcessedIDs)
	assert.False(t, got.Processed("id-0"), "oldest ids are dropped")
	assert.True(t, got.Processed(fmt.Sprintf("id-%d", core.MaxProcessedIDs+49)))
}

func TestNewStateStore_UnknownBackend(t *testing.T) {
	_, err := NewStateStore("redis", "unused")
	assert.Error(t, err)
}
