package telegram

import (
	"context"

	"github.com/giftgate/giftbot/internal/membership"
)

// LookupMember implements membership.Lookup with getChatMember.
func (c *Client) LookupMember(ctx context.Context, channel string, userID int64) (membership.ChatMember, error) {
	member, errMember := c.GetChatMember(ctx, channel, userID)
	if errMember != nil {
		return membership.ChatMember{}, errMember
	}
	return membership.ChatMember{Status: member.Status, IsMember: member.IsMember}, nil
}

// Deliverer implements reward.Sender over the Bot API.
type Deliverer struct {
	client *Client
}

// NewDeliverer wraps client.
func NewDeliverer(client *Client) *Deliverer {
	return &Deliverer{client: client}
}

// SendPremium sends a Star Gift.
func (d *Deliverer) SendPremium(ctx context.Context, userID int64, itemID, note string) error {
	return d.client.SendGift(ctx, userID, itemID, note)
}

// SendDirectMessage sends an HTML message to the user's private chat.
func (d *Deliverer) SendDirectMessage(ctx context.Context, userID int64, text string) error {
	_, errSend := d.client.SendMessage(ctx, userID, text, SendOptions{ParseMode: "HTML"})
	return errSend
}
