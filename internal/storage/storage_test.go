package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/voicechat/internal/models"
)

func TestJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "journal.db")

	journal, err := NewJournal(dbPath)
	require.NoError(t, err)
	defer journal.Close()

	t.Run("Record and Get", func(t *testing.T) {
		ex := models.Exchange{
			ID:        "ex-123",
			TraceID:   "trace-1",
			CreatedAt: 1700000000,
			Messages: []models.ConversationTurn{
				{Role: models.RoleSystem, Content: "persona"},
				{Role: models.RoleUser, Content: "Hello"},
			},
			Answer: "Hi there",
		}
		require.NoError(t, journal.Record(ex))

		got, found := journal.Get("ex-123")
		require.True(t, found)
		assert.Equal(t, ex, *got)
	})

	t.Run("Tool turns survive a round trip", func(t *testing.T) {
		ex := models.Exchange{
			ID: "ex-tool",
			Messages: []models.ConversationTurn{
				{Role: models.RoleAssistant, FunctionName: "web_search", ToolCallID: "call_1", ToolArguments: `{"query":"go"}`},
				{Role: models.RoleFunction, FunctionName: "web_search", ToolCallID: "call_1", Content: "1. **Go**"},
			},
			Answer:      "Go is a language.",
			SearchQuery: "go",
		}
		require.NoError(t, journal.Record(ex))

		got, found := journal.Get("ex-tool")
		require.True(t, found)
		assert.True(t, got.Messages[0].IsToolRequest())
		assert.Equal(t, "call_1", got.Messages[1].ToolCallID)
		assert.Equal(t, "go", got.SearchQuery)
	})

	t.Run("Get non-existent", func(t *testing.T) {
		_, found := journal.Get("ex-missing")
		assert.False(t, found)
	})

	t.Run("Empty ID is rejected", func(t *testing.T) {
		assert.ErrorIs(t, journal.Record(models.Exchange{Answer: "x"}), ErrEmptyID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, journal.Record(models.Exchange{ID: "ex-delete", Answer: "bye"}))
		_, found := journal.Get("ex-delete")
		require.True(t, found)

		require.NoError(t, journal.Delete("ex-delete"))
		_, found = journal.Get("ex-delete")
		assert.False(t, found)

		assert.NoError(t, journal.Delete("ex-delete"))
	})
}

func TestJournalPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	journal, err := NewJournal(dbPath)
	require.NoError(t, err)
	require.NoError(t, journal.Record(models.Exchange{ID: "a", Answer: "one"}))
	require.NoError(t, journal.Record(models.Exchange{ID: "b", Answer: "two"}))
	require.NoError(t, journal.Close())

	reopened, err := NewJournal(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	_, found := reopened.Get("a")
	assert.True(t, found)
	got, found := reopened.Get("b")
	require.True(t, found)
	assert.Equal(t, "two", got.Answer)
}
