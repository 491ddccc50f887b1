package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatline/contract"
	"chatline/domain"
	cerrors "chatline/errors"
	"chatline/moderation"
	"chatline/repositories"
	"chatline/search"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Engine ingests one inbound envelope at a time per connection: it binds
// the origin connection to the claimed author, persists the message with
// the server receipt time, and fans the delivery envelope out to every
// live connection of the chat's current members, sender included.
type Engine struct {
	log         *slog.Logger
	users       repositories.IUserRepository
	chats       repositories.IChatRepository
	memberships repositories.IMembershipRepository
	messages    repositories.IMessageRepository
	registry    contract.IRegistry
	moderator   *moderation.Moderator
	index       *search.Index
	sendTimeout time.Duration
}

func NewEngine(
	log *slog.Logger,
	users repositories.IUserRepository,
	chats repositories.IChatRepository,
	memberships repositories.IMembershipRepository,
	messages repositories.IMessageRepository,
	registry contract.IRegistry,
	moderator *moderation.Moderator,
	index *search.Index,
	sendTimeout time.Duration,
) *Engine {
	return &Engine{
		log:         log,
		users:       users,
		chats:       chats,
		memberships: memberships,
		messages:    messages,
		registry:    registry,
		moderator:   moderator,
		index:       index,
		sendTimeout: sendTimeout,
	}
}

// Ingest processes one inbound envelope from origin. A NotFound on the
// author or chat drops the message with no partial state; a persistence
// failure aborts before any broadcast. Delivery failures never propagate.
func (e *Engine) Ingest(ctx context.Context, origin contract.Sink, envelope domain.InboundEnvelope) error {
	if err := envelope.Validate(); err != nil {
		return fmt.Errorf("%w: %v", cerrors.ErrInvalidEnvelope, err)
	}

	// The inbound envelope doubles as an identity declaration for this
	// connection; see the registry contract.
	e.registry.Bind(origin, envelope.AuthorID)

	author, err := e.users.GetUser(envelope.AuthorID)
	if err != nil {
		return fmt.Errorf("resolve author %d: %w", envelope.AuthorID, err)
	}
	if _, err := e.chats.GetChat(envelope.ChatID); err != nil {
		return fmt.Errorf("resolve chat %d: %w", envelope.ChatID, err)
	}

	content := envelope.Content
	if e.moderator != nil {
		content = e.moderator.Censor(content)
	}

	message := domain.Message{
		ID:       uuid.New(),
		ChatID:   envelope.ChatID,
		AuthorID: author.ID,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
	if err := e.messages.StoreMessage(message); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	if e.index != nil {
		if err := e.index.IndexMessage(message, author.Username); err != nil {
			e.log.Warn("Message indexing failed", "chat", message.ChatID, "error", err)
		}
	}

	members, err := e.memberships.ListByChat(envelope.ChatID)
	if err != nil {
		return fmt.Errorf("fetch membership of chat %d: %w", envelope.ChatID, err)
	}

	delivery := domain.NewDeliveryEnvelope(message.ChatID, author.Username, content, message.SentAt)
	payload, err := json.Marshal(delivery)
	if err != nil {
		return err
	}

	memberIDs := lo.Map(members, func(m domain.Membership, _ int) int64 { return m.UserID })
	e.fanout(ctx, memberIDs, payload)
	return nil
}

// fanout delivers the payload to each member connection independently.
// Every send gets its own time-bounded context so one slow consumer
// cannot stall the others; failures are logged and swallowed.
func (e *Engine) fanout(ctx context.Context, memberIDs []int64, payload []byte) {
	sinks := e.registry.SinksForMembers(memberIDs)

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink contract.Sink) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
			defer cancel()
			if err := sink.Send(sendCtx, payload); err != nil {
				e.log.Debug("Best-effort delivery failed", "error", err)
			}
		}(sink)
	}
	wg.Wait()
}

// Disconnect removes the connection from the registry. Guaranteed to be
// called on every close, normal or abnormal, by the transport layer.
func (e *Engine) Disconnect(origin contract.Sink) {
	e.registry.Unbind(origin)
}
