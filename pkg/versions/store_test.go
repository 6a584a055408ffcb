package versions

import (
	"testing"

	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessages() []chat.Message {
	return []chat.Message{
		chat.NewUserMessage("a", chat.WithTimestamp(1)),
		chat.NewAssistantMessage("b", chat.WithTimestamp(2)),
		chat.NewUserMessage("c", chat.WithTimestamp(3)),
		chat.NewAssistantMessage("d", chat.WithTimestamp(4)),
	}
}

func requireCursorInvariant(t *testing.T, s *Store) {
	t.Helper()
	versions := s.Versions()
	require.NotEmpty(t, versions)
	require.GreaterOrEqual(t, s.Cursor(), 0)
	require.Less(t, s.Cursor(), len(versions))
}

func TestInitializeIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	first := registry.Initialize("conv-1", seedMessages())
	second := registry.Initialize("conv-1", nil)

	assert.Same(t, first, second)
	assert.Len(t, second.CurrentMessages(), 4)
	requireCursorInvariant(t, second)
}

func TestInitializeSeedsVersionOne(t *testing.T) {
	registry := NewRegistry()

	store := registry.Initialize("conv-1", seedMessages())

	versions := store.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].ID)
	assert.Equal(t, 0, store.Cursor())
	assert.Empty(t, versions[0].Edits)
}

func TestAppendMessageSuppressesDuplicateTail(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", seedMessages())

	msg := chat.NewUserMessage("again", chat.WithTimestamp(10))
	store.AppendMessage(msg)
	store.AppendMessage(msg)

	assert.Len(t, store.CurrentMessages(), 5)
	requireCursorInvariant(t, store)
}

func TestAppendMessageClearsWaitingFlag(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", nil)
	store.SetWaitingForResponse(true)

	store.AppendMessage(chat.NewUserMessage("q", chat.WithTimestamp(1)))
	assert.True(t, store.WaitingForResponse())

	store.AppendMessage(chat.NewAssistantMessage("a", chat.WithTimestamp(2)))
	assert.False(t, store.WaitingForResponse())
}

func TestNavigateToVersionOutOfRangeIsNoop(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", seedMessages())

	store.NavigateToVersion(-1)
	assert.Equal(t, 0, store.Cursor())

	store.NavigateToVersion(5)
	assert.Equal(t, 0, store.Cursor())

	requireCursorInvariant(t, store)
}

func TestForkDiscardsRedoBranch(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", seedMessages())

	// Build up three versions.
	newContent := "x"
	store.fork(store.CurrentMessages(), Edit{MessageIndex: 0, NewContent: &newContent}, nil)
	store.fork(store.CurrentMessages(), Edit{MessageIndex: 1, NewContent: &newContent}, nil)
	require.Len(t, store.Versions(), 3)
	require.Equal(t, 2, store.Cursor())

	// Move back to the first version and fork from there: the two later
	// versions are discarded before the new one is appended.
	store.NavigateToVersion(0)
	store.fork(store.CurrentMessages(), Edit{MessageIndex: 2, NewContent: &newContent}, nil)

	assert.Len(t, store.Versions(), 2)
	assert.Equal(t, 1, store.Cursor())
	requireCursorInvariant(t, store)
}

func TestForkFromCursorYieldsCursorPlusTwoVersions(t *testing.T) {
	for _, cursor := range []int{0, 1, 2} {
		registry := NewRegistry()
		store := registry.Initialize("conv-1", seedMessages())

		newContent := "x"
		store.fork(store.CurrentMessages(), Edit{MessageIndex: 0, NewContent: &newContent}, nil)
		store.fork(store.CurrentMessages(), Edit{MessageIndex: 0, NewContent: &newContent}, nil)
		store.NavigateToVersion(cursor)

		store.fork(store.CurrentMessages(), Edit{MessageIndex: 0, NewContent: &newContent}, nil)

		assert.Len(t, store.Versions(), cursor+2)
		assert.Equal(t, cursor+1, store.Cursor())
	}
}

func TestNavigateRestoresEditedIndices(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", seedMessages())

	newContent := "x"
	store.fork(store.CurrentMessages(), Edit{MessageIndex: 2, NewContent: &newContent}, nil)
	require.Equal(t, []int{2}, store.EditedMessageIndices())

	store.NavigateToVersion(0)
	assert.Empty(t, store.EditedMessageIndices())

	store.NavigateToVersion(1)
	assert.Equal(t, []int{2}, store.EditedMessageIndices())
}

func TestStreamingAccumulatesChunks(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", nil)

	require.NoError(t, store.BeginStreaming("hi"))

	for _, chunk := range []string{"Hel", "lo wor", "ld"} {
		_, ok := store.AppendStreamDelta(chunk)
		require.True(t, ok)
	}

	content, ok := store.FinishStreaming("")
	require.True(t, ok)
	assert.Equal(t, "Hello world", content)

	messages := store.CurrentMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)
	assert.False(t, messages[1].Streaming)
}

func TestFinishStreamingPrefersFinalPayload(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", nil)

	require.NoError(t, store.BeginStreaming("hi"))
	store.AppendStreamDelta("Hel")

	content, ok := store.FinishStreaming("Hello there")
	require.True(t, ok)
	assert.Equal(t, "Hello there", content)
}

func TestBeginStreamingRejectsSecondStream(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", nil)

	require.NoError(t, store.BeginStreaming("hi"))
	assert.ErrorIs(t, store.BeginStreaming("again"), ErrStreamActive)
}

func TestAbortStreamingKeepsPartialContent(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", nil)

	require.NoError(t, store.BeginStreaming("hi"))
	store.AppendStreamDelta("partial answ")

	content, ok := store.AbortStreaming(" [Cancelled]")
	require.True(t, ok)
	assert.Equal(t, "partial answ [Cancelled]", content)

	messages := store.CurrentMessages()
	assert.False(t, messages[len(messages)-1].Streaming)
}

func TestReplaceLatestMessagesLeavesHistoryAlone(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", seedMessages())

	newContent := "x"
	store.fork(store.CurrentMessages()[:1], Edit{MessageIndex: 0, NewContent: &newContent}, nil)

	canonical := []chat.Message{
		chat.NewUserMessage("x", chat.WithTimestamp(5)),
		chat.NewAssistantMessage("regenerated", chat.WithTimestamp(6)),
	}
	store.ReplaceLatestMessages(canonical)

	versions := store.Versions()
	require.Len(t, versions, 2)
	assert.Len(t, versions[0].Messages, 4, "historical version must not be rewritten")
	assert.Len(t, versions[1].Messages, 2)
	assert.Equal(t, "regenerated", versions[1].Messages[1].Content)
}

func TestResetClearsToSingleEmptyVersion(t *testing.T) {
	registry := NewRegistry()
	store := registry.Initialize("conv-1", seedMessages())

	newContent := "x"
	store.fork(store.CurrentMessages(), Edit{MessageIndex: 0, NewContent: &newContent}, nil)

	store.Reset()

	versions := store.Versions()
	require.Len(t, versions, 1)
	assert.Empty(t, versions[0].Messages)
	assert.Equal(t, 0, store.Cursor())
	assert.Empty(t, store.EditHistory())
	requireCursorInvariant(t, store)
}

func TestVersionEditedIndicesAreUnique(t *testing.T) {
	c := "x"
	v := Version{Edits: []Edit{
		{MessageIndex: 2, NewContent: &c},
		{MessageIndex: 0, NewContent: &c},
		{MessageIndex: 2, NewContent: &c},
	}}
	assert.Equal(t, []int{2, 0}, v.EditedIndices())
}
