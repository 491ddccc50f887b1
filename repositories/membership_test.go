package repositories

import (
	"testing"
	"time"

	cerrors "chatline/errors"
	"chatline/domain"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Membership_Put_And_Lookups(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db)
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 1}))
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 2}))
	req.NoError(repository.Put(domain.Membership{ChatID: 20, UserID: 1, IsModerator: true}))

	byChat, err := repository.ListByChat(10)
	req.NoError(err)
	req.Equal([]int64{1, 2}, lo.Map(byChat, func(m domain.Membership, _ int) int64 { return m.UserID }))

	byUser, err := repository.ListByUser(1)
	req.NoError(err)
	req.ElementsMatch(
		[]domain.ChatID{10, 20},
		lo.Map(byUser, func(m domain.Membership, _ int) domain.ChatID { return m.ChatID }),
	)

	fetched, err := repository.Get(20, 1)
	req.NoError(err)
	req.True(fetched.IsModerator)
	req.Nil(fetched.LastWatchedAt)

	_, err = repository.Get(20, 2)
	req.ErrorIs(err, cerrors.ErrMembershipNotFound)
}

func Test_Membership_Put_Is_An_Upsert(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db)
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 1}))
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 1, IsModerator: true}))

	byChat, err := repository.ListByChat(10)
	req.NoError(err)
	req.Len(byChat, 1)
	req.True(byChat[0].IsModerator)
}

func Test_SetLastWatched(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db)
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 2}))

	at := time.Now().UTC().Truncate(time.Millisecond)
	req.NoError(repository.SetLastWatched(10, 2, at))

	fetched, err := repository.Get(10, 2)
	req.NoError(err)
	req.NotNil(fetched.LastWatchedAt)
	req.Equal(at, *fetched.LastWatchedAt)

	// Absent membership surfaces a sentinel the caller can swallow.
	err = repository.SetLastWatched(10, 99, at)
	req.ErrorIs(err, cerrors.ErrMembershipNotFound)
}

func Test_Membership_DeleteByChat_Cleans_Both_Directions(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db)
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 1}))
	req.NoError(repository.Put(domain.Membership{ChatID: 10, UserID: 2}))
	req.NoError(repository.Put(domain.Membership{ChatID: 20, UserID: 1}))

	req.NoError(repository.DeleteByChat(10))

	byChat, err := repository.ListByChat(10)
	req.NoError(err)
	req.Empty(byChat)

	byUser, err := repository.ListByUser(1)
	req.NoError(err)
	req.Len(byUser, 1)
	req.Equal(domain.ChatID(20), byUser[0].ChatID)
}
