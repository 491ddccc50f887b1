//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cerrors "chatline/errors"
	"chatline/domain"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	CreateChat(name string, creatorID int64) (domain.Chat, error)
	GetChat(id domain.ChatID) (domain.Chat, error)
	DeleteChat(id domain.ChatID) error
}

type ChatRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewChatRepository(db *badger.DB) (*ChatRepository, error) {
	seq, err := db.GetSequence([]byte("seq:chat"), 100)
	if err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	return &ChatRepository{db: db, seq: seq}, nil
}

func (c *ChatRepository) Close() error {
	return c.seq.Release()
}

func chatKey(id domain.ChatID) []byte {
	return []byte(fmt.Sprintf("chat:%020d", id))
}

func (c *ChatRepository) CreateChat(name string, creatorID int64) (domain.Chat, error) {
	next, err := c.seq.Next()
	if err != nil {
		return domain.Chat{}, fmt.Errorf("chat id allocation: %w", err)
	}

	chat := domain.Chat{
		ID:        domain.ChatID(next) + 1,
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(chat)
	if err != nil {
		return domain.Chat{}, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(chat.ID), data)
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (c *ChatRepository) GetChat(id domain.ChatID) (domain.Chat, error) {
	var chat domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, chatKey(id), &chat)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, cerrors.ErrChatNotFound
	}
	return chat, err
}

// DeleteChat removes the chat row only. Memberships and messages are
// cascaded by the service layer, which owns the ordering.
func (c *ChatRepository) DeleteChat(id domain.ChatID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chatKey(id))
	})
}
