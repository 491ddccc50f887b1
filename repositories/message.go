//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"chatline/domain"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(chatID domain.ChatID) ([]domain.Message, error)
	LastMessage(chatID domain.ChatID) (*domain.Message, error)
	DeleteByChat(chatID domain.ChatID) error
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// messageKey is formatted as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%s",
		message.ChatID,
		message.SentAt.UnixNano(),
		message.ID,
	))
}

func messagePrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("msg:%d:", chatID))
}

func (m *MessageRepository) StoreMessage(message domain.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
}

// GetMessages returns the full history of a chat in send order.
// Thanks to the padded timestamp in the key, a forward prefix scan yields
// messages naturally sorted by time.
func (m *MessageRepository) GetMessages(chatID domain.ChatID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := messagePrefix(chatID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// LastMessage returns the most recent message of a chat, or nil when the
// chat has no messages yet. It seeks past the highest possible timestamp
// and walks one step backwards.
func (m *MessageRepository) LastMessage(chatID domain.ChatID) (*domain.Message, error) {
	var last *domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := messagePrefix(chatID)
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		var message domain.Message
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		})
		if err != nil {
			return err
		}
		last = &message
		return nil
	})
	return last, err
}

// DeleteByChat drops every message of a chat. Keys are collected first so
// the iterator never observes its own deletes.
func (m *MessageRepository) DeleteByChat(chatID domain.ChatID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)

		prefix := messagePrefix(chatID)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		m.log.Debug("Cascading message delete", "chat", chatID, "count", len(keys))
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
