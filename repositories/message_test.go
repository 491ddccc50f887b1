package repositories

import (
	"log/slog"
	"testing"
	"time"

	"chatline/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_Multiple_Messages_In_Send_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default())
	chatID := domain.ChatID(1)
	at := time.Now().UTC().Truncate(time.Millisecond)
	stored := []domain.Message{
		{ID: uuid.New(), ChatID: chatID, AuthorID: 1, Content: "first", SentAt: at},
		{ID: uuid.New(), ChatID: chatID, AuthorID: 2, Content: "second", SentAt: at.Add(1 * time.Minute)},
		{ID: uuid.New(), ChatID: chatID, AuthorID: 1, Content: "third", SentAt: at.Add(2 * time.Minute)},
	}
	// Insert out of order on purpose; the key layout restores send order.
	for _, i := range []int{1, 0, 2} {
		req.NoError(repository.StoreMessage(stored[i]))
	}

	fetched, err := repository.GetMessages(chatID)
	req.NoError(err)
	req.Len(fetched, len(stored))
	req.Equal(stored, fetched)
}

func Test_GetMessages_Is_A_Repeatable_Read(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default())
	chatID := domain.ChatID(7)
	req.NoError(repository.StoreMessage(domain.Message{
		ID: uuid.New(), ChatID: chatID, AuthorID: 1, Content: "hello", SentAt: time.Now().UTC(),
	}))

	first, err := repository.GetMessages(chatID)
	req.NoError(err)
	second, err := repository.GetMessages(chatID)
	req.NoError(err)
	req.Equal(first, second)
}

func Test_LastMessage(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default())
	chatID := domain.ChatID(3)

	last, err := repository.LastMessage(chatID)
	req.NoError(err)
	req.Nil(last)

	at := time.Now().UTC().Truncate(time.Millisecond)
	req.NoError(repository.StoreMessage(domain.Message{
		ID: uuid.New(), ChatID: chatID, AuthorID: 1, Content: "older", SentAt: at,
	}))
	newest := domain.Message{
		ID: uuid.New(), ChatID: chatID, AuthorID: 2, Content: "newer", SentAt: at.Add(time.Second),
	}
	req.NoError(repository.StoreMessage(newest))

	last, err = repository.LastMessage(chatID)
	req.NoError(err)
	req.NotNil(last)
	req.Equal(newest, *last)
}

func Test_Messages_Do_Not_Leak_Between_Chats(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.StoreMessage(domain.Message{ID: uuid.New(), ChatID: 1, AuthorID: 1, Content: "one", SentAt: at}))
	req.NoError(repository.StoreMessage(domain.Message{ID: uuid.New(), ChatID: 11, AuthorID: 1, Content: "eleven", SentAt: at}))

	fetched, err := repository.GetMessages(1)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("one", fetched[0].Content)
}

func Test_DeleteByChat_Empties_History(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default())
	chatID := domain.ChatID(10)
	at := time.Now().UTC()
	for _, content := range []string{"a", "b", "c"} {
		req.NoError(repository.StoreMessage(domain.Message{
			ID: uuid.New(), ChatID: chatID, AuthorID: 1, Content: content, SentAt: at,
		}))
		at = at.Add(time.Second)
	}

	req.NoError(repository.DeleteByChat(chatID))

	fetched, err := repository.GetMessages(chatID)
	req.NoError(err)
	req.Empty(fetched)
	last, err := repository.LastMessage(chatID)
	req.NoError(err)
	req.Nil(last)
}
