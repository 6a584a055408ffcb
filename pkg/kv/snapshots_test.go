package kv

import (
	"context"
	"testing"

	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/go-go-golems/palimpsest/pkg/versions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVersions() []versions.Version {
	newContent := "a2"
	return []versions.Version{
		{
			ID: 1,
			Messages: []chat.Message{
				chat.NewUserMessage("a", chat.WithTimestamp(1)),
				chat.NewAssistantMessage("b", chat.WithTimestamp(2)),
			},
			EditedMessageIndices: []int{},
			Edits:                []versions.Edit{},
			ConversationID:       "conv-1",
		},
		{
			ID: 2,
			Messages: []chat.Message{
				chat.NewUserMessage("a2", chat.WithTimestamp(3)),
			},
			EditedMessageIndices: []int{0},
			Edits: []versions.Edit{
				{VersionIndex: 0, MessageIndex: 0, OldContent: "a", NewContent: &newContent, Timestamp: 3},
			},
			ConversationID: "conv-1",
		},
	}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	snapshots := NewSnapshots(NewMemoryStore())

	require.NoError(t, snapshots.SaveVersions("conv-1", sampleVersions()))
	require.NoError(t, snapshots.SaveCursor("conv-1", 1))
	require.NoError(t, snapshots.SaveEditHistory("conv-1", sampleVersions()[1].Edits))

	vs, err := snapshots.LoadVersions("conv-1")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "a2", vs[1].Messages[0].Content)
	require.Len(t, vs[1].Edits, 1)
	require.NotNil(t, vs[1].Edits[0].NewContent)
	assert.Equal(t, "a2", *vs[1].Edits[0].NewContent)

	cursor, err := snapshots.LoadCursor("conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cursor)

	history, err := snapshots.LoadEditHistory("conv-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestSnapshotsMissingKeysAreEmptyNotErrors(t *testing.T) {
	snapshots := NewSnapshots(NewMemoryStore())

	vs, err := snapshots.LoadVersions("nope")
	require.NoError(t, err)
	assert.Empty(t, vs)

	cursor, err := snapshots.LoadCursor("nope")
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)

	history, err := snapshots.LoadEditHistory("nope")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSnapshotsClear(t *testing.T) {
	store := NewMemoryStore()
	snapshots := NewSnapshots(store)

	require.NoError(t, snapshots.SaveVersions("conv-1", sampleVersions()))
	require.NoError(t, snapshots.SaveCursor("conv-1", 0))
	require.NoError(t, snapshots.Clear("conv-1"))

	_, err := store.Get(context.Background(), "versions:conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(context.Background(), "cursor:conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "versions:conv-1", `[{"id":1}]`))

	value, err := store.Get(ctx, "versions:conv-1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, value)

	require.NoError(t, store.Delete(ctx, "versions:conv-1"))
	_, err = store.Get(ctx, "versions:conv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, store.Delete(ctx, "versions:conv-1"))
}

func TestRegistryRestoreFromSnapshots(t *testing.T) {
	snapshots := NewSnapshots(NewMemoryStore())
	require.NoError(t, snapshots.SaveVersions("conv-1", sampleVersions()))
	require.NoError(t, snapshots.SaveCursor("conv-1", 1))

	registry := versions.NewRegistry(
		versions.WithSnapshotter(snapshots),
		versions.WithRestore(snapshots),
	)

	store := registry.Initialize("conv-1", nil)
	assert.Len(t, store.Versions(), 2)
	assert.Equal(t, 1, store.Cursor())
	assert.Equal(t, []int{0}, store.EditedMessageIndices())
}
