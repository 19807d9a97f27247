package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/giftgate/giftbot/internal/pool"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const maxTokensPerRequest = 10000

// TokenPool is the operator side of the token pool.
type TokenPool interface {
	AddTokens(ctx context.Context, codes []string) (int, error)
	ListAvailable(ctx context.Context, limit int) ([]string, error)
	Stats(ctx context.Context) (pool.Stats, error)
}

// TokenHandler manages promo codes.
type TokenHandler struct {
	pool TokenPool
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(p TokenPool) *TokenHandler {
	return &TokenHandler{pool: p}
}

// addTokensRequest accepts a code list or free text separated by commas and whitespace.
type addTokensRequest struct {
	Codes []string `json:"codes"`
	Text  string   `json:"text"`
}

// Add inserts new codes. Known codes are skipped whatever their state.
func (h *TokenHandler) Add(c *gin.Context) {
	var body addTokensRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	codes := pool.NormalizeCodes(append(body.Codes, pool.ParseCodes(body.Text)...))
	if len(codes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing codes"})
		return
	}
	if len(codes) > maxTokensPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many codes"})
		return
	}
	inserted, errAdd := h.pool.AddTokens(c.Request.Context(), codes)
	if errAdd != nil {
		log.WithError(errAdd).Error("admin: add tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add tokens failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": len(codes), "inserted": inserted})
}

// Available lists codes that can still be handed out.
func (h *TokenHandler) Available(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, errAtoi := strconv.Atoi(raw)
		if errAtoi != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	codes, errList := h.pool.ListAvailable(c.Request.Context(), limit)
	if errList != nil {
		log.WithError(errList).Error("admin: list tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tokens failed"})
		return
	}
	if strings.EqualFold(c.Query("format"), "text") {
		body := strings.Join(codes, "\n")
		if body != "" {
			body += "\n"
		}
		c.Header("Content-Disposition", `attachment; filename="promo_codes.txt"`)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

// Count returns available and consumed totals.
func (h *TokenHandler) Count(c *gin.Context) {
	stats, errStats := h.pool.Stats(c.Request.Context())
	if errStats != nil {
		log.WithError(errStats).Error("admin: token stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count tokens failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
