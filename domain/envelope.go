package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ClockFormat is the wall-clock layout used on the wire ("HH:mm").
const ClockFormat = "15:04"

// InboundEnvelope is what a client pushes on the realtime channel.
// The authorId doubles as an implicit identity declaration for the
// connection it arrives on; the channel is not otherwise authenticated.
type InboundEnvelope struct {
	AuthorID int64  `json:"authorId" validate:"required,gt=0"`
	ChatID   ChatID `json:"chatId" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required"`
}

// Validate rejects malformed envelopes before they touch any state.
func (e InboundEnvelope) Validate() error {
	return validate.Struct(e)
}

// DeliveryEnvelope is the fan-out payload. The author is denormalized to
// a display name at this boundary; recipients never see raw user ids.
type DeliveryEnvelope struct {
	ChatID  ChatID `json:"chatId"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Time    string `json:"time"`
}

// NewDeliveryEnvelope stamps the envelope with the server receipt time.
func NewDeliveryEnvelope(chatID ChatID, author, content string, at time.Time) DeliveryEnvelope {
	return DeliveryEnvelope{
		ChatID:  chatID,
		Author:  author,
		Content: content,
		Time:    at.Format(ClockFormat),
	}
}
