// Package bot turns ingested events into commands, claims and replies.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/giftgate/giftbot/internal/claim"
	"github.com/giftgate/giftbot/internal/ingest"
	"github.com/giftgate/giftbot/internal/membership"
	"github.com/giftgate/giftbot/internal/telegram"
	log "github.com/sirupsen/logrus"
)

// Messenger is the outgoing side of the Bot API.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) (telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts telegram.SendOptions) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error
}

// Verifier checks channel membership.
type Verifier interface {
	Verify(ctx context.Context, userID int64) membership.Status
}

// Claimer runs a claim.
type Claimer interface {
	Claim(ctx context.Context, userID int64) claim.Result
}

// UserRegistry records user interactions.
type UserRegistry interface {
	Touch(ctx context.Context, userID int64, username string) error
}

// TokenAdmin is the operator side of the token pool.
type TokenAdmin interface {
	AvailableCount(ctx context.Context) (int64, error)
	ListAvailable(ctx context.Context, limit int) ([]string, error)
	AddTokens(ctx context.Context, codes []string) (int, error)
}

// Options configure texts and admin access.
type Options struct {
	Channel        string
	GiftName       string
	SupportContact string
	// AdminIDs apply when the ADMINS setting is empty.
	AdminIDs []int64
}

// Handler implements ingest.Handler.
type Handler struct {
	messenger Messenger
	gate      Verifier
	claims    Claimer
	users     UserRegistry
	tokens    TokenAdmin
	opts      Options
}

// NewHandler constructs a Handler.
func NewHandler(messenger Messenger, gate Verifier, claims Claimer, users UserRegistry, tokens TokenAdmin, opts Options) *Handler {
	if strings.TrimSpace(opts.GiftName) == "" {
		opts.GiftName = "🎁 Gift"
	}
	if strings.TrimSpace(opts.SupportContact) == "" {
		opts.SupportContact = "@support"
	}
	return &Handler{messenger: messenger, gate: gate, claims: claims, users: users, tokens: tokens, opts: opts}
}

// HandleEvent dispatches ev by kind.
func (h *Handler) HandleEvent(ctx context.Context, ev ingest.Event) error {
	switch ev.Kind {
	case ingest.KindMessage:
		return h.handleMessage(ctx, ev)
	case ingest.KindButtonPress:
		return h.handleButton(ctx, ev)
	default:
		return nil
	}
}

func (h *Handler) handleMessage(ctx context.Context, ev ingest.Event) error {
	command, args := parseCommand(ev.Payload)
	switch command {
	case "start", "gift":
		return h.start(ctx, ev)
	case "balance", "export", "add", "promo":
		if !h.isAdmin(ev.UserID) {
			return nil
		}
		return h.admin(ctx, ev, command, args)
	default:
		return nil
	}
}

func (h *Handler) handleButton(ctx context.Context, ev ingest.Event) error {
	switch ev.Payload {
	case callbackCheckSub:
		if errAnswer := h.messenger.AnswerCallbackQuery(ctx, ev.CallbackID, ""); errAnswer != nil {
			log.WithError(errAnswer).Debug("bot: answer callback")
		}
		return h.checkSubscription(ctx, ev)
	case callbackClaim:
		return h.claim(ctx, ev)
	default:
		return h.messenger.AnswerCallbackQuery(ctx, ev.CallbackID, "")
	}
}

// start serves /start and /gift.
func (h *Handler) start(ctx context.Context, ev ingest.Event) error {
	h.touch(ctx, ev)
	if h.gate.Verify(ctx, ev.UserID).Allowed() {
		return h.reply(ctx, ev, textSubscribed, claimKeyboard(h.opts.GiftName, h.opts.Channel, false))
	}
	text := fmt.Sprintf(textSubscribePrompt, h.opts.Channel)
	return h.reply(ctx, ev, text, claimKeyboard(h.opts.GiftName, h.opts.Channel, true))
}

func (h *Handler) checkSubscription(ctx context.Context, ev ingest.Event) error {
	if h.gate.Verify(ctx, ev.UserID).Allowed() {
		return h.reply(ctx, ev, textCheckConfirmed, claimKeyboard(h.opts.GiftName, h.opts.Channel, false))
	}
	return h.reply(ctx, ev, textCheckMissing, claimKeyboard(h.opts.GiftName, h.opts.Channel, true))
}

// claim runs a claim and shows its outcome. The button is answered after the claim so a
// Busy result can be shown without overwriting the message of the claim in flight.
func (h *Handler) claim(ctx context.Context, ev ingest.Event) error {
	h.touch(ctx, ev)
	res := h.claims.Claim(ctx, ev.UserID)

	answer := ""
	if res.Status == claim.Busy {
		answer = textBusy
	}
	if errAnswer := h.messenger.AnswerCallbackQuery(ctx, ev.CallbackID, answer); errAnswer != nil {
		log.WithError(errAnswer).Debug("bot: answer callback")
	}

	switch res.Status {
	case claim.Busy:
		return nil
	case claim.NotSubscribed:
		return h.reply(ctx, ev, claimText(res.Status, h.opts.SupportContact), claimKeyboard(h.opts.GiftName, h.opts.Channel, true))
	default:
		return h.reply(ctx, ev, claimText(res.Status, h.opts.SupportContact), nil)
	}
}

// reply edits the message a button belongs to, or sends a new message otherwise.
func (h *Handler) reply(ctx context.Context, ev ingest.Event, text string, markup *telegram.InlineKeyboardMarkup) error {
	opts := telegram.SendOptions{ReplyMarkup: markup}
	if ev.Kind == ingest.KindButtonPress && ev.MessageID != 0 {
		return h.messenger.EditMessageText(ctx, ev.ChatID, ev.MessageID, text, opts)
	}
	_, errSend := h.messenger.SendMessage(ctx, ev.ChatID, text, opts)
	return errSend
}

// touch records the user; a failure is logged and never blocks the interaction.
func (h *Handler) touch(ctx context.Context, ev ingest.Event) {
	if h.users == nil {
		return
	}
	if errTouch := h.users.Touch(ctx, ev.UserID, ev.Username); errTouch != nil {
		log.WithError(errTouch).WithField("user_id", ev.UserID).Warn("bot: record user")
	}
}

// parseCommand splits "/cmd@bot args" into the lower-cased command and its arguments.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, args, _ := strings.Cut(text, " ")
	if idx := strings.IndexAny(head, "\n\t"); idx >= 0 {
		args = head[idx+1:] + " " + args
		head = head[:idx]
	}
	head = strings.TrimPrefix(head, "/")
	if at := strings.Index(head, "@"); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(args)
}
