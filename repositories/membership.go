//go:generate go run go.uber.org/mock/mockgen -source=membership.go -destination=../mocks/mock_membership_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	cerrors "chatline/errors"
	"chatline/domain"

	"github.com/dgraph-io/badger/v4"
)

type IMembershipRepository interface {
	Put(membership domain.Membership) error
	Get(chatID domain.ChatID, userID int64) (domain.Membership, error)
	ListByChat(chatID domain.ChatID) ([]domain.Membership, error)
	ListByUser(userID int64) ([]domain.Membership, error)
	SetLastWatched(chatID domain.ChatID, userID int64, at time.Time) error
	Delete(chatID domain.ChatID, userID int64) error
	DeleteByChat(chatID domain.ChatID) error
}

// MembershipRepository stores the ternary (chat, user) relation.
// The primary key is "member:{chat}:{user}" so members of one chat sit
// under a single prefix; a reverse index "idx:member:{user}:{chat}"
// serves the chats-of-one-user scan.
type MembershipRepository struct {
	db *badger.DB
}

func NewMembershipRepository(db *badger.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func memberKey(chatID domain.ChatID, userID int64) []byte {
	return []byte(fmt.Sprintf("member:%020d:%020d", chatID, userID))
}

func memberUserIdxKey(userID int64, chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("idx:member:%020d:%020d", userID, chatID))
}

func memberChatPrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("member:%020d:", chatID))
}

func memberUserIdxPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("idx:member:%020d:", userID))
}

// Put upserts the membership row and its reverse index entry.
func (m *MembershipRepository) Put(membership domain.Membership) error {
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}
	data, err := json.Marshal(membership)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(membership.ChatID, membership.UserID), data); err != nil {
			return err
		}
		return txn.Set(memberUserIdxKey(membership.UserID, membership.ChatID), nil)
	})
}

func (m *MembershipRepository) Get(chatID domain.ChatID, userID int64) (domain.Membership, error) {
	var membership domain.Membership
	err := m.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, memberKey(chatID, userID), &membership)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Membership{}, cerrors.ErrMembershipNotFound
	}
	return membership, err
}

// ListByChat returns the authoritative member set of one chat, in key
// order (ascending user id).
func (m *MembershipRepository) ListByChat(chatID domain.ChatID) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := memberChatPrefix(chatID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var membership domain.Membership
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &membership)
			})
			if err != nil {
				return err
			}
			memberships = append(memberships, membership)
		}
		return nil
	})
	return memberships, err
}

// ListByUser resolves the reverse index, then reads each membership row
// inside the same transaction for a consistent snapshot.
func (m *MembershipRepository) ListByUser(userID int64) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := memberUserIdxPrefix(userID)
		var chatIDs []domain.ChatID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := string(it.Item().Key()[len(prefix):])
			chatID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt membership index key %q: %w", raw, err)
			}
			chatIDs = append(chatIDs, domain.ChatID(chatID))
		}

		for _, chatID := range chatIDs {
			var membership domain.Membership
			if err := readJSON(txn, memberKey(chatID, userID), &membership); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue // index entry outlived the row; skip
				}
				return err
			}
			memberships = append(memberships, membership)
		}
		return nil
	})
	return memberships, err
}

// SetLastWatched records the read-acknowledgment time.
func (m *MembershipRepository) SetLastWatched(chatID domain.ChatID, userID int64, at time.Time) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		var membership domain.Membership
		if err := readJSON(txn, memberKey(chatID, userID), &membership); err != nil {
			return err
		}
		membership.LastWatchedAt = &at
		data, err := json.Marshal(membership)
		if err != nil {
			return err
		}
		return txn.Set(memberKey(chatID, userID), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return cerrors.ErrMembershipNotFound
	}
	return err
}

func (m *MembershipRepository) Delete(chatID domain.ChatID, userID int64) error {
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(chatID, userID)); err != nil {
			return err
		}
		return txn.Delete(memberUserIdxKey(userID, chatID))
	})
}

// DeleteByChat removes every membership row of a chat together with the
// matching reverse index entries.
func (m *MembershipRepository) DeleteByChat(chatID domain.ChatID) error {
	memberships, err := m.ListByChat(chatID)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		for _, membership := range memberships {
			if err := txn.Delete(memberKey(chatID, membership.UserID)); err != nil {
				return err
			}
			if err := txn.Delete(memberUserIdxKey(membership.UserID, chatID)); err != nil {
				return err
			}
		}
		return nil
	})
}
