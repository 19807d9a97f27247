package bot

import (
	"context"
	"errors"

	"github.com/giftgate/giftbot/internal/settings"
	"github.com/giftgate/giftbot/internal/telegram"
)

// Commands is the command menu installed with setMyCommands.
func Commands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "start", Description: "Start / check subscription"},
		{Command: "gift", Description: "Get the gift"},
	}
}

// AdminNotifier sends operator alerts to every admin's private chat.
type AdminNotifier struct {
	messenger Messenger
	fallback  []int64
}

// NewAdminNotifier constructs an AdminNotifier. fallback are the configured admin ids.
func NewAdminNotifier(messenger Messenger, fallback []int64) *AdminNotifier {
	return &AdminNotifier{messenger: messenger, fallback: fallback}
}

// Alert sends text to each admin and joins the delivery errors.
func (n *AdminNotifier) Alert(ctx context.Context, text string) error {
	ids, ok := settings.AdminIDs()
	if !ok {
		ids = n.fallback
	}
	var errs []error
	for _, id := range ids {
		if _, errSend := n.messenger.SendMessage(ctx, id, text, telegram.SendOptions{}); errSend != nil {
			errs = append(errs, errSend)
		}
	}
	return errors.Join(errs...)
}
