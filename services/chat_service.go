package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"chatline/domain"
	cerrors "chatline/errors"
	"chatline/repositories"
	"chatline/search"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// UnknownAuthorName is displayed when a message's author no longer
// resolves, e.g. after an account row went missing.
const UnknownAuthorName = "Unknown User"

// ChatRef is the creation response for private and group chats.
type ChatRef struct {
	ID       domain.ChatID `json:"id"`
	ChatName string        `json:"chatName"`
}

type IChatService interface {
	UserChats(userID int64) ([]domain.ChatSummary, error)
	MarkRead(chatID domain.ChatID, userID int64) error
	History(chatID domain.ChatID) ([]domain.HistoryEntry, error)
	SearchHistory(ctx context.Context, chatID domain.ChatID, terms string, limit int) ([]domain.HistoryEntry, error)
	CreatePrivateChat(creatorID int64, targetUsername string) (ChatRef, error)
	CreateGroupChat(creatorID int64, groupName string, usernames []string) (ChatRef, error)
	DeleteChat(chatID domain.ChatID) error
}

type ChatService struct {
	log         *slog.Logger
	users       repositories.IUserRepository
	chats       repositories.IChatRepository
	memberships repositories.IMembershipRepository
	messages    repositories.IMessageRepository
	index       *search.Index
}

func NewChatService(
	log *slog.Logger,
	users repositories.IUserRepository,
	chats repositories.IChatRepository,
	memberships repositories.IMembershipRepository,
	messages repositories.IMessageRepository,
	index *search.Index,
) *ChatService {
	return &ChatService{
		log:         log,
		users:       users,
		chats:       chats,
		memberships: memberships,
		messages:    messages,
		index:       index,
	}
}

// UserChats joins the user's memberships with chat and last-message data
// into a sorted, display-ready chat list. A failure on one chat is
// logged and skips that row only; the rest of the list still builds.
// Read-only, so it is safe to call concurrently with ingestion.
func (s *ChatService) UserChats(userID int64) ([]domain.ChatSummary, error) {
	memberships, err := s.memberships.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list chats of user %d: %w", userID, err)
	}

	names := s.newNameCache()
	summaries := make([]domain.ChatSummary, 0, len(memberships))
	for _, membership := range memberships {
		summary, err := s.buildSummary(membership, userID, names)
		if err != nil {
			s.log.Warn("Skipping chat in summary list",
				"chat", membership.ChatID, "user", userID, "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}

	domain.SortSummaries(summaries)
	return summaries, nil
}

func (s *ChatService) buildSummary(membership domain.Membership, userID int64, names nameCache) (domain.ChatSummary, error) {
	chat, err := s.chats.GetChat(membership.ChatID)
	if err != nil {
		return domain.ChatSummary{}, err
	}

	name, err := s.displayName(chat, userID, names)
	if err != nil {
		return domain.ChatSummary{}, err
	}

	last, err := s.messages.LastMessage(chat.ID)
	if err != nil {
		return domain.ChatSummary{}, err
	}
	if last == nil {
		return domain.ChatSummary{
			ID:              chat.ID,
			ChatName:        name,
			LastMessageTime: domain.NoMessagesTime,
		}, nil
	}

	preview := "You: " + last.Content
	if last.AuthorID != userID {
		preview = names.resolve(last.AuthorID) + ": " + last.Content
	}

	unread := last.AuthorID != userID &&
		(membership.LastWatchedAt == nil || last.SentAt.After(*membership.LastWatchedAt))

	return domain.ChatSummary{
		ID:              chat.ID,
		ChatName:        name,
		LastMessage:     preview,
		HasUnread:       unread,
		LastMessageTime: last.SentAt.Format(domain.SummaryTimeFormat),
	}, nil
}

// displayName prefers the stored name; chats with a generic name derive
// one from the other members, sorted by user id so the result does not
// depend on store iteration order.
func (s *ChatService) displayName(chat domain.Chat, userID int64, names nameCache) (string, error) {
	if !chat.HasGenericName() {
		return chat.Name, nil
	}

	members, err := s.memberships.ListByChat(chat.ID)
	if err != nil {
		return "", err
	}

	others := lo.Filter(members, func(m domain.Membership, _ int) bool { return m.UserID != userID })
	if len(others) == 0 {
		return UnknownAuthorName, nil
	}
	sort.Slice(others, func(i, j int) bool { return others[i].UserID < others[j].UserID })

	parts := lo.Map(others, func(m domain.Membership, _ int) string { return names.resolve(m.UserID) })
	return strings.Join(parts, ", "), nil
}

// MarkRead stamps the membership's read marker with the server time.
// Idempotent; a missing membership is a no-op, not an error.
func (s *ChatService) MarkRead(chatID domain.ChatID, userID int64) error {
	err := s.memberships.SetLastWatched(chatID, userID, time.Now().UTC())
	if stderrors.Is(err, cerrors.ErrMembershipNotFound) {
		return nil
	}
	return err
}

// History returns the chat's full message sequence in send order. An
// unknown or deleted chat simply has no messages, so it yields an empty
// sequence rather than an error.
func (s *ChatService) History(chatID domain.ChatID) ([]domain.HistoryEntry, error) {
	messages, err := s.messages.GetMessages(chatID)
	if err != nil {
		return nil, fmt.Errorf("load history of chat %d: %w", chatID, err)
	}

	names := s.newNameCache()
	return lo.Map(messages, func(m domain.Message, _ int) domain.HistoryEntry {
		return domain.HistoryEntry{
			Time:    m.SentAt.Format(domain.ClockFormat),
			Author:  names.resolve(m.AuthorID),
			Content: m.Content,
		}
	}), nil
}

// SearchHistory queries the full-text index for one chat. Returns an
// empty result when the index is disabled.
func (s *ChatService) SearchHistory(ctx context.Context, chatID domain.ChatID, terms string, limit int) ([]domain.HistoryEntry, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Search(ctx, chatID, terms, limit)
}

// CreatePrivateChat opens a two-party chat between the creator and the
// named user, reusing any chat the two already share. The stored name
// stays generic; the response carries the target's username as the
// display name for the creator's side.
func (s *ChatService) CreatePrivateChat(creatorID int64, targetUsername string) (ChatRef, error) {
	creator, err := s.users.GetUser(creatorID)
	if err != nil {
		return ChatRef{}, fmt.Errorf("resolve creator %d: %w", creatorID, err)
	}

	target, err := s.users.GetUserByUsername(strings.TrimSpace(targetUsername))
	if err != nil {
		return ChatRef{}, fmt.Errorf("resolve target %q: %w", targetUsername, err)
	}
	if target.ID == creator.ID {
		return ChatRef{}, cerrors.ErrSelfChat
	}

	if shared, ok, err := s.sharedChat(creator.ID, target.ID); err != nil {
		return ChatRef{}, err
	} else if ok {
		return ChatRef{ID: shared, ChatName: target.Username}, nil
	}

	chat, err := s.chats.CreateChat(domain.GenericPrivateName, creator.ID)
	if err != nil {
		return ChatRef{}, err
	}

	now := time.Now().UTC()
	for _, userID := range []int64{creator.ID, target.ID} {
		membership := domain.Membership{ChatID: chat.ID, UserID: userID, JoinedAt: now}
		if err := s.memberships.Put(membership); err != nil {
			return ChatRef{}, fmt.Errorf("attach user %d to chat %d: %w", userID, chat.ID, err)
		}
	}

	return ChatRef{ID: chat.ID, ChatName: target.Username}, nil
}

// sharedChat finds any existing chat both users belong to.
func (s *ChatService) sharedChat(userID, otherID int64) (domain.ChatID, bool, error) {
	memberships, err := s.memberships.ListByUser(userID)
	if err != nil {
		return 0, false, err
	}
	for _, membership := range memberships {
		_, err := s.memberships.Get(membership.ChatID, otherID)
		if err == nil {
			return membership.ChatID, true, nil
		}
		if !stderrors.Is(err, cerrors.ErrMembershipNotFound) {
			return 0, false, err
		}
	}
	return 0, false, nil
}

// CreateGroupChat opens a named chat with the creator as moderator plus
// every listed username. Any unknown username fails the whole call
// before a chat row is written.
func (s *ChatService) CreateGroupChat(creatorID int64, groupName string, usernames []string) (ChatRef, error) {
	creator, err := s.users.GetUser(creatorID)
	if err != nil {
		return ChatRef{}, fmt.Errorf("resolve creator %d: %w", creatorID, err)
	}

	memberIDs := map[int64]struct{}{}
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" || username == creator.Username {
			continue
		}
		user, err := s.users.GetUserByUsername(username)
		if err != nil {
			return ChatRef{}, fmt.Errorf("resolve member %q: %w", username, err)
		}
		memberIDs[user.ID] = struct{}{}
	}

	chat, err := s.chats.CreateChat(strings.TrimSpace(groupName), creator.ID)
	if err != nil {
		return ChatRef{}, err
	}

	now := time.Now().UTC()
	if err := s.memberships.Put(domain.Membership{
		ChatID: chat.ID, UserID: creator.ID, IsModerator: true, JoinedAt: now,
	}); err != nil {
		return ChatRef{}, err
	}
	for userID := range memberIDs {
		membership := domain.Membership{ChatID: chat.ID, UserID: userID, JoinedAt: now}
		if err := s.memberships.Put(membership); err != nil {
			return ChatRef{}, fmt.Errorf("attach user %d to chat %d: %w", userID, chat.ID, err)
		}
	}

	return ChatRef{ID: chat.ID, ChatName: chat.Name}, nil
}

// DeleteChat removes the chat and everything hanging off it: the search
// index entries, the messages, the memberships, then the chat row.
func (s *ChatService) DeleteChat(chatID domain.ChatID) error {
	if _, err := s.chats.GetChat(chatID); err != nil {
		return err
	}

	if s.index != nil {
		messages, err := s.messages.GetMessages(chatID)
		if err != nil {
			return err
		}
		ids := lo.Map(messages, func(m domain.Message, _ int) uuid.UUID { return m.ID })
		if err := s.index.DeleteMessages(ids); err != nil {
			s.log.Warn("Search index purge failed", "chat", chatID, "error", err)
		}
	}

	if err := s.messages.DeleteByChat(chatID); err != nil {
		return fmt.Errorf("delete messages of chat %d: %w", chatID, err)
	}
	if err := s.memberships.DeleteByChat(chatID); err != nil {
		return fmt.Errorf("delete memberships of chat %d: %w", chatID, err)
	}
	return s.chats.DeleteChat(chatID)
}

// nameCache memoizes user id to display name lookups for the duration of
// one service call.
type nameCache struct {
	users repositories.IUserRepository
	memo  map[int64]string
}

func (s *ChatService) newNameCache() nameCache {
	return nameCache{users: s.users, memo: map[int64]string{}}
}

func (c nameCache) resolve(userID int64) string {
	if name, ok := c.memo[userID]; ok {
		return name
	}
	name := UnknownAuthorName
	if user, err := c.users.GetUser(userID); err == nil {
		name = user.Username
	}
	c.memo[userID] = name
	return name
}
