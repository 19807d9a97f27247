package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/giftgate/giftbot/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ReceiptLister reads a user's issued rewards.
type ReceiptLister interface {
	ListByUser(ctx context.Context, userID int64) ([]models.RewardReceipt, error)
}

// ReceiptHandler exposes issued rewards.
type ReceiptHandler struct {
	receipts ReceiptLister
}

// NewReceiptHandler constructs a ReceiptHandler.
func NewReceiptHandler(receipts ReceiptLister) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

type receiptView struct {
	ID        string            `json:"id"`
	UserID    int64             `json:"user_id"`
	Kind      models.RewardKind `json:"kind"`
	TokenCode *string           `json:"token_code,omitempty"`
	GiftID    *string           `json:"gift_id,omitempty"`
	IssuedAt  time.Time         `json:"issued_at"`
}

// ListByUser returns every receipt of :user_id, newest first.
func (h *ReceiptHandler) ListByUser(c *gin.Context) {
	userID, errParse := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	rows, errList := h.receipts.ListByUser(c.Request.Context(), userID)
	if errList != nil {
		log.WithError(errList).WithField("user_id", userID).Error("admin: list receipts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list receipts failed"})
		return
	}
	views := make([]receiptView, 0, len(rows))
	for _, row := range rows {
		views = append(views, receiptView{
			ID:        row.ID,
			UserID:    row.UserID,
			Kind:      row.Kind,
			TokenCode: row.TokenCode,
			GiftID:    row.GiftID,
			IssuedAt:  row.IssuedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "receipts": views})
}
