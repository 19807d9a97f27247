package bot

import (
	"strings"

	"github.com/giftgate/giftbot/internal/telegram"
)

const (
	callbackClaim    = "claim:gift"
	callbackCheckSub = "check_sub"
)

// claimKeyboard always offers the claim button. While subscription is pending it also
// offers the re-check button and, for public channels, a link to the channel.
func claimKeyboard(giftName, channel string, pending bool) *telegram.InlineKeyboardMarkup {
	rows := [][]telegram.InlineKeyboardButton{
		{{Text: giftName, CallbackData: callbackClaim}},
	}
	if pending {
		if link := channelLink(channel); link != "" {
			rows = append(rows, []telegram.InlineKeyboardButton{{Text: buttonChannel, URL: link}})
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: buttonSubscribed, CallbackData: callbackCheckSub}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// channelLink returns the t.me URL of a public channel, or "" for numeric chat ids.
func channelLink(channel string) string {
	name, ok := strings.CutPrefix(strings.TrimSpace(channel), "@")
	if !ok || name == "" {
		return ""
	}
	return "https://t.me/" + name
}
