package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvagent/internal/database"
)

func seedDocs(t *testing.T, db *gorm.DB, userID uint, docs []database.Document) {
	t.Helper()
	for i := range docs {
		id := userID
		docs[i].UserID = &id
		if err := db.Create(&docs[i]).Error; err != nil {
			t.Fatalf("seed document: %v", err)
		}
	}
}

func TestQueryDashboard_StatsCoverAllDocuments(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "jean@example.com")

	seedDocs(t, db, user.ID, []database.Document{
		{Type: "CV", Title: "CV One", Role: "Dev", Status: "completed", Score: 85},
		{Type: "CV", Title: "CV Two", Role: "Dev", Status: "completed", Score: 85},
		{Type: "LM", Title: "Letter", Company: "Acme", Status: "completed", Score: 90},
		{Type: "CV", Title: "Draft", Role: "Dev", Status: "processing", Score: 0},
	})

	h := NewDashboardHandler(db)
	docs, overview, err := h.queryDashboard(context.Background(), user.ID, "", "")
	if err != nil {
		t.Fatalf("query dashboard: %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents, got %d", len(docs))
	}
	if overview.Total != 4 || overview.Completed != 3 || overview.InProgress != 1 {
		t.Fatalf("unexpected overview %+v", overview)
	}
	if overview.SuccessRate != 75.0 {
		t.Fatalf("expected 75.0 success rate, got %v", overview.SuccessRate)
	}
	if overview.AvgScore != 65.0 {
		t.Fatalf("expected mean over all documents, got %v", overview.AvgScore)
	}
}

func TestQueryDashboard_StatsFollowFilter(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "jean@example.com")

	seedDocs(t, db, user.ID, []database.Document{
		{Type: "CV", Title: "Backend CV", Role: "Backend", Status: "completed", Score: 80},
		{Type: "LM", Title: "Acme letter", Company: "Acme", Status: "processing", Score: 0},
	})

	h := NewDashboardHandler(db)
	docs, overview, err := h.queryDashboard(context.Background(), user.ID, "CV", "")
	if err != nil {
		t.Fatalf("query dashboard: %v", err)
	}
	if len(docs) != 1 || docs[0].Type != "CV" {
		t.Fatalf("expected only CV documents, got %+v", docs)
	}
	if overview.Total != 1 || overview.Completed != 1 {
		t.Fatalf("stats must cover the filtered set, got %+v", overview)
	}
	if overview.SuccessRate != 100.0 {
		t.Fatalf("expected 100.0 success rate over the filtered set, got %v", overview.SuccessRate)
	}
	if overview.AvgScore != 80.0 {
		t.Fatalf("expected average over the filtered set, got %v", overview.AvgScore)
	}

	docs, overview, err = h.queryDashboard(context.Background(), user.ID, "", "acme")
	if err != nil {
		t.Fatalf("query dashboard: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Acme letter" {
		t.Fatalf("expected search match, got %+v", docs)
	}
	if overview.Total != 1 || overview.InProgress != 1 {
		t.Fatalf("stats must cover the search result, got %+v", overview)
	}
}

func TestQueryDashboard_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	owner := createUser(t, db, "owner@example.com")
	other := createUser(t, db, "other@example.com")

	seedDocs(t, db, owner.ID, []database.Document{
		{Type: "CV", Title: "Mine", Role: "Dev", Status: "completed", Score: 85},
	})
	seedDocs(t, db, other.ID, []database.Document{
		{Type: "CV", Title: "Theirs", Role: "Dev", Status: "completed", Score: 85},
	})

	h := NewDashboardHandler(db)
	docs, overview, err := h.queryDashboard(context.Background(), owner.ID, "", "")
	if err != nil {
		t.Fatalf("query dashboard: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Mine" {
		t.Fatalf("expected only the owner's documents, got %+v", docs)
	}
	if overview.Total != 1 {
		t.Fatalf("unexpected overview %+v", overview)
	}
}

func TestDashboard_RequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewDashboardHandler(db)

	r := gin.New()
	r.LoadHTMLGlob("../../web/templates/*.html")
	r.GET("/dashboard/", stubAuth(0), h.Dashboard)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
