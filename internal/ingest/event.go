// Package ingest turns pushed and polled Telegram updates into one ordered event stream.
package ingest

import "github.com/giftgate/giftbot/internal/telegram"

// Kind classifies an Event.
type Kind string

const (
	KindMessage     Kind = "message"
	KindButtonPress Kind = "button_press"
)

// AllowedUpdates lists the update kinds requested from Telegram.
var AllowedUpdates = []string{"message", "callback_query"}

// Event is a normalised user interaction.
type Event struct {
	UpdateID   int64
	Kind       Kind
	UserID     int64
	Username   string
	ChatID     int64
	ChatType   string
	MessageID  int64
	CallbackID string
	// Payload is the message text or the button's callback data.
	Payload string
}

// FromUpdate normalises u. Updates without a sender and unsupported kinds are ignored.
func FromUpdate(u telegram.Update) (Event, bool) {
	switch {
	case u.Message != nil:
		msg := u.Message
		if msg.From == nil {
			return Event{}, false
		}
		return Event{
			UpdateID:  u.UpdateID,
			Kind:      KindMessage,
			UserID:    msg.From.ID,
			Username:  msg.From.Username,
			ChatID:    msg.Chat.ID,
			ChatType:  msg.Chat.Type,
			MessageID: msg.MessageID,
			Payload:   msg.Text,
		}, true
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		ev := Event{
			UpdateID:   u.UpdateID,
			Kind:       KindButtonPress,
			UserID:     cb.From.ID,
			Username:   cb.From.Username,
			CallbackID: cb.ID,
			Payload:    cb.Data,
		}
		if cb.Message != nil {
			ev.ChatID = cb.Message.Chat.ID
			ev.ChatType = cb.Message.Chat.Type
			ev.MessageID = cb.Message.MessageID
		} else {
			ev.ChatID = cb.From.ID
		}
		return ev, ev.UserID != 0
	default:
		return Event{}, false
	}
}
