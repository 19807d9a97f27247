package bot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/giftgate/giftbot/internal/ingest"
	"github.com/giftgate/giftbot/internal/pool"
	"github.com/giftgate/giftbot/internal/settings"
	log "github.com/sirupsen/logrus"
)

// isAdmin checks the ADMINS setting first and falls back to the configured ids.
func (h *Handler) isAdmin(userID int64) bool {
	if ids, ok := settings.AdminIDs(); ok {
		return slices.Contains(ids, userID)
	}
	return slices.Contains(h.opts.AdminIDs, userID)
}

func (h *Handler) admin(ctx context.Context, ev ingest.Event, command, args string) error {
	switch command {
	case "balance":
		left, errCount := h.tokens.AvailableCount(ctx)
		if errCount != nil {
			return h.storageFailure(ctx, ev, errCount)
		}
		return h.reply(ctx, ev, fmt.Sprintf(textBalance, left), nil)
	case "export":
		return h.export(ctx, ev, args)
	case "add":
		return h.add(ctx, ev, args)
	case "promo":
		if ev.ChatType != "private" {
			return nil
		}
		return h.reply(ctx, ev, textPromoPlaceholder, nil)
	default:
		return nil
	}
}

func (h *Handler) export(ctx context.Context, ev ingest.Event, args string) error {
	limit := 0
	if fields := strings.Fields(args); len(fields) > 0 {
		if n, errAtoi := strconv.Atoi(fields[0]); errAtoi == nil && n > 0 {
			limit = n
		}
	}
	codes, errList := h.tokens.ListAvailable(ctx, limit)
	if errList != nil {
		return h.storageFailure(ctx, ev, errList)
	}
	if len(codes) == 0 {
		return h.reply(ctx, ev, textNoCodes, nil)
	}
	return h.messenger.SendDocument(ctx, ev.ChatID, exportFilename, []byte(strings.Join(codes, "\n")), "")
}

func (h *Handler) add(ctx context.Context, ev ingest.Event, args string) error {
	codes := pool.ParseCodes(args)
	if len(codes) == 0 {
		return h.reply(ctx, ev, textAddUsage, nil)
	}
	inserted, errAdd := h.tokens.AddTokens(ctx, codes)
	if errAdd != nil {
		return h.storageFailure(ctx, ev, errAdd)
	}
	log.WithFields(log.Fields{
		"admin_id": ev.UserID,
		"received": len(codes),
		"inserted": inserted,
	}).Info("bot: tokens added")
	return h.reply(ctx, ev, fmt.Sprintf(textAdded, len(codes), inserted), nil)
}

func (h *Handler) storageFailure(ctx context.Context, ev ingest.Event, err error) error {
	log.WithError(err).WithField("admin_id", ev.UserID).Error("bot: admin command failed")
	return h.reply(ctx, ev, textStorageError, nil)
}
