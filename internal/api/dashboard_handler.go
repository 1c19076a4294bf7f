package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvagent/internal/api/middleware"
	"cvagent/internal/database"
	"cvagent/internal/document"
)

// DashboardHandler lists a user's documents with aggregate stats.
type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Dashboard renders the document list, filtered by ?type= and ?q=.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	docType := c.Query("type")
	search := c.Query("q")

	docs, overview, err := h.queryDashboard(c.Request.Context(), userID, docType, search)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load dashboard", slog.Any("error", err))
		Internal(c, "failed to load dashboard")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"documents":  docs,
		"stats":      overview,
		"typeFilter": docType,
		"query":      search,
	})
}

// queryDashboard returns the filtered document list, newest first, together
// with the aggregate stats. Counts, success rate and average score cover the
// filtered set, so the numbers always match the list below them.
func (h *DashboardHandler) queryDashboard(ctx context.Context, userID uint, docType, search string) ([]database.Document, document.Overview, error) {
	query := h.db.WithContext(ctx).Where("user_id = ?", userID)
	if docType == "CV" || docType == "LM" {
		query = query.Where("type = ?", docType)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("title LIKE ? OR role LIKE ? OR company LIKE ?", like, like, like)
	}

	var docs []database.Document
	if err := query.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, document.Overview{}, err
	}

	stats := make([]document.DocumentStat, 0, len(docs))
	for _, d := range docs {
		stats = append(stats, document.DocumentStat{Status: d.CurrentStatus(), Score: d.Score})
	}

	return docs, document.ComputeOverview(stats), nil
}
