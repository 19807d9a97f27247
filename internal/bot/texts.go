package bot

import (
	"fmt"

	"github.com/giftgate/giftbot/internal/claim"
)

const (
	textSubscribed       = "Thanks! You are subscribed. You can claim your gift."
	textSubscribePrompt  = "👋 Hi! To get the gift, subscribe to the channel.\nChannel: %s\n\nAfter subscribing, press “I subscribed”."
	textCheckConfirmed   = "Great! Subscription confirmed.\nYou can claim your gift."
	textCheckMissing     = "Subscription not found. Subscribe to the channel and try again."
	textClaimNeedsSub    = "You need to subscribe to the channel to get the gift."
	textAlreadyClaimed   = "You have already received the gift. Thank you!"
	textExhausted        = "Sorry, the gifts have run out. Please try again later."
	textDeliveryFailed   = "Could not send the gift. Please contact %s."
	textGranted          = "✅ Gift sent! If it was a promo code, check your private messages."
	textBusy             = "Your request is still being processed, please wait."
	textBalance          = "Promo codes left: %d"
	textNoCodes          = "No codes available."
	textAddUsage         = "Usage: /add CODE1 CODE2 CODE3 ..."
	textAdded            = "Codes received: %d, added: %d"
	textPromoPlaceholder = "Send a list like:\nuser_id: CODE\nto issue codes manually. (Parsing is not implemented yet.)"
	textStorageError     = "Something went wrong, please try again later."

	buttonSubscribed = "🔔 I subscribed"
	buttonChannel    = "📣 Open channel"
	exportFilename   = "promo_codes.txt"
)

// claimText renders the message shown after a claim. Busy has no message text; it is
// answered on the button only.
func claimText(status claim.Status, support string) string {
	switch status {
	case claim.Granted:
		return textGranted
	case claim.AlreadyClaimed:
		return textAlreadyClaimed
	case claim.NotSubscribed:
		return textClaimNeedsSub
	case claim.Exhausted:
		return textExhausted
	case claim.DeliveryFailed:
		return fmt.Sprintf(textDeliveryFailed, support)
	default:
		return ""
	}
}
