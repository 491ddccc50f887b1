package domain

import "time"

type ChatID int64

// GenericPrivateName is the placeholder stored for two-party chats.
// Summaries never display it; they derive a name from the other member.
const GenericPrivateName = "Private Chat"

// Chat is a conversation container owning messages and a member set.
// Only the member set changes after creation; deletion cascades to
// memberships and messages.
type Chat struct {
	ID        ChatID
	Name      string
	CreatorID int64
	CreatedAt time.Time
}

// HasGenericName reports whether the stored name carries no display value.
func (c Chat) HasGenericName() bool {
	return c.Name == "" || c.Name == GenericPrivateName
}
