package handlers

import (
	"net/http"

	"github.com/giftgate/giftbot/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminsHandler reads and replaces the ADMINS setting.
type AdminsHandler struct {
	db       *gorm.DB
	fallback []int64
}

// NewAdminsHandler constructs an AdminsHandler. fallback are the configured admin ids
// reported while the setting is empty.
func NewAdminsHandler(db *gorm.DB, fallback []int64) *AdminsHandler {
	return &AdminsHandler{db: db, fallback: fallback}
}

// Get returns the effective admin ids and where they come from.
func (h *AdminsHandler) Get(c *gin.Context) {
	if ids, ok := settings.AdminIDs(); ok {
		c.JSON(http.StatusOK, gin.H{"ids": ids, "source": "settings", "updated_at": settings.UpdatedAt()})
		return
	}
	ids := h.fallback
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids, "source": "config"})
}

type putAdminsRequest struct {
	IDs []int64 `json:"ids"`
}

// Put replaces the ADMINS setting. An empty list restores the configured admins.
func (h *AdminsHandler) Put(c *gin.Context) {
	var body putAdminsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	stored, errSet := settings.SetAdminIDs(c.Request.Context(), h.db, body.IDs)
	if errSet != nil {
		log.WithError(errSet).Error("admin: update admins")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update admins failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": stored})
}
