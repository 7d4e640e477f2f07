package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
)

// ListFlags handles GET /admin/flags?status=OPEN
func ListFlags(c *gin.Context) {
	query := database.DB.Preload("Message").Order("created_at desc").Limit(100)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var flags []models.MessageFlag
	if err := query.Find(&flags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

// ReviewFlag handles PATCH /admin/flags/:id
// Flags move OPEN -> REVIEWED or OPEN -> DISMISSED and are never deleted
// (audit trail).
func ReviewFlag(c *gin.Context) {
	adminID := c.MustGet("userId").(string)

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	status := models.FlagStatus(req.Status)
	if status != models.FlagReviewed && status != models.FlagDismissed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be REVIEWED or DISMISSED"})
		return
	}

	var flag models.MessageFlag
	if err := database.DB.First(&flag, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flag not found"})
		return
	}

	if flag.Status != models.FlagOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "Flag already reviewed"})
		return
	}

	now := time.Now()
	flag.Status = status
	flag.ReviewedByID = &adminID
	flag.ReviewedAt = &now

	if err := database.DB.Save(&flag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flag": flag})
}
