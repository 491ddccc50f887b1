//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
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

type IUserRepository interface {
	CreateUser(username, password, email string) (domain.User, error)
	GetUser(id int64) (domain.User, error)
	GetUserByUsername(username string) (domain.User, error)
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewUserRepository reserves a badger sequence for user id allocation.
// Callers must Close the repository so unused ids are released.
func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 100)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("user:%020d", id))
}

func usernameKey(username string) []byte {
	return []byte("idx:username:" + username)
}

// CreateUser persists a new user and its username index entry.
// The username must be unique; the check and both writes share one
// transaction so a concurrent duplicate cannot slip through.
func (u *UserRepository) CreateUser(username, password, email string) (domain.User, error) {
	next, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id allocation: %w", err)
	}

	user := domain.User{
		ID:        int64(next) + 1,
		Username:  username,
		Password:  password,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return cerrors.ErrUsernameTaken
		}
		if err := txn.Set(usernameKey(username), []byte(fmt.Sprintf("%020d", user.ID))); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUser(id int64) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, userKey(id), &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, cerrors.ErrUserNotFound
	}
	return user, err
}

func (u *UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		var key []byte
		if err := item.Value(func(val []byte) error {
			key = append([]byte("user:"), val...)
			return nil
		}); err != nil {
			return err
		}
		return readJSON(txn, key, &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, cerrors.ErrUserNotFound
	}
	return user, err
}

// readJSON fetches one key and unmarshals its value in place.
func readJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
