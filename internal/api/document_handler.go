package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvagent/internal/api/middleware"
	"cvagent/internal/database"
	"cvagent/internal/document"
	"cvagent/internal/llm"
	"cvagent/internal/prompt"
	"cvagent/internal/tasks"
)

// ContextSearcher supplies company/role background text for the prompt.
type ContextSearcher interface {
	Lookup(ctx context.Context, query string) string
}

// ObjectStorage is the object store surface the handlers need.
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// PDFRenderer turns a finished document into PDF bytes.
type PDFRenderer interface {
	Render(title, body string) ([]byte, error)
}

// TaskEnqueuer is the asynq client surface used for PDF pre-rendering.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DocumentHandler owns the generation pipeline and the document endpoints.
type DocumentHandler struct {
	db            *gorm.DB
	generator     llm.TextGenerator
	searcher      ContextSearcher
	storage       ObjectStorage
	renderer      PDFRenderer
	enqueuer      TaskEnqueuer
	redisClient   redis.UniversalClient
	logger        *slog.Logger
	maxImageBytes int64
	clamdAddr     string
}

// NewDocumentHandler constructs a DocumentHandler. enqueuer, storage and
// redisClient may be nil; the matching features degrade instead of failing.
func NewDocumentHandler(
	db *gorm.DB,
	generator llm.TextGenerator,
	searcher ContextSearcher,
	objectStorage ObjectStorage,
	renderer PDFRenderer,
	enqueuer TaskEnqueuer,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	maxImageBytes int64,
	clamdAddr string,
) *DocumentHandler {
	return &DocumentHandler{
		db:            db,
		generator:     generator,
		searcher:      searcher,
		storage:       objectStorage,
		renderer:      renderer,
		enqueuer:      enqueuer,
		redisClient:   redisClient,
		logger:        logger,
		maxImageBytes: maxImageBytes,
		clamdAddr:     clamdAddr,
	}
}

// GenerateForm serves the generation form.
func (h *DocumentHandler) GenerateForm(c *gin.Context) {
	c.HTML(http.StatusOK, "generate.html", gin.H{})
}

// generateRequest is the POST /agent/generate/ form payload.
type generateRequest struct {
	DocID          string
	DocumentType   string
	TargetRole     string
	Company        string
	Keywords       string
	Tone           string
	JobDescription string
	Skills         string
	Experiences    string
	Education      string
	Phone          string
	LinkedinURL    string
	GithubURL      string
	Language       string
	Template       string
}

func bindGenerateRequest(c *gin.Context) generateRequest {
	req := generateRequest{
		DocID:          strings.TrimSpace(c.PostForm("doc_id")),
		DocumentType:   strings.TrimSpace(c.PostForm("documentType")),
		TargetRole:     strings.TrimSpace(c.PostForm("targetRole")),
		Company:        strings.TrimSpace(c.PostForm("company")),
		Keywords:       strings.TrimSpace(c.PostForm("keywords")),
		Tone:           strings.TrimSpace(c.PostForm("tone")),
		JobDescription: strings.TrimSpace(c.PostForm("jobDescription")),
		Skills:         strings.TrimSpace(c.PostForm("skills")),
		Experiences:    strings.TrimSpace(c.PostForm("experiences")),
		Education:      strings.TrimSpace(c.PostForm("education")),
		Phone:          strings.TrimSpace(c.PostForm("telephone")),
		LinkedinURL:    strings.TrimSpace(c.PostForm("linkedin_url")),
		GithubURL:      strings.TrimSpace(c.PostForm("github_url")),
		Language:       strings.TrimSpace(c.PostForm("langue")),
		Template:       strings.TrimSpace(c.PostForm("template_utilise")),
	}
	if req.DocumentType != "LM" {
		req.DocumentType = "CV"
	}
	if req.Tone == "" {
		req.Tone = "professional"
	}
	if req.Language != "en" {
		req.Language = "fr"
	}
	if req.Template == "" {
		req.Template = "default"
	}
	return req
}

// validate checks the required fields and the raw JSON profile sections.
// It returns a user-facing message for the form on failure.
func (r generateRequest) validate() string {
	if r.TargetRole == "" || r.JobDescription == "" {
		return "Target role and job description are required"
	}
	for name, raw := range map[string]string{"experiences": r.Experiences, "education": r.Education} {
		if raw == "" {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return fmt.Sprintf("Invalid JSON in %s field", name)
		}
	}
	return ""
}

func (h *DocumentHandler) renderGenerateError(c *gin.Context, msg string) {
	c.HTML(http.StatusOK, "generate.html", gin.H{"error": msg})
}

// Generate runs the synchronous generation pipeline and redirects to the
// dashboard on success.
func (h *DocumentHandler) Generate(c *gin.Context) {
	logger := middleware.LoggerFromContext(c)
	req := bindGenerateRequest(c)

	if msg := req.validate(); msg != "" {
		h.renderGenerateError(c, msg)
		return
	}

	ctx := c.Request.Context()
	userID, authenticated := userIDFromContext(c)

	// Snapshot the submitter's profile; anonymous requests get placeholders.
	userData := prompt.UserData{
		Name:        "Anonymous",
		Email:       "N/A",
		Phone:       req.Phone,
		LinkedinURL: req.LinkedinURL,
		GithubURL:   req.GithubURL,
		Experiences: req.Experiences,
		Education:   req.Education,
	}
	if req.Skills != "" {
		for _, s := range strings.Split(req.Skills, ",") {
			if s = strings.TrimSpace(s); s != "" {
				userData.Skills = append(userData.Skills, s)
			}
		}
	}

	var owner *database.User
	if authenticated {
		var u database.User
		if err := h.db.First(&u, userID).Error; err == nil {
			owner = &u
			userData.Name = u.FullName
			userData.Email = u.Email
			if userData.Phone == "" {
				userData.Phone = u.Phone
			}
			if userData.LinkedinURL == "" {
				userData.LinkedinURL = u.LinkedinURL
			}
			if userData.GithubURL == "" {
				userData.GithubURL = u.GithubURL
			}
		}
	}

	doc, err := h.upsertDocument(c, req, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "document not found")
			return
		}
		logger.Error("prepare document", slog.Any("error", err))
		Internal(c, "failed to prepare document")
		return
	}

	// Image first: an oversized or infected file aborts the run early and
	// removes the freshly created record.
	if fileHeader, err := c.FormFile("cv_image"); err == nil && doc.Type == "CV" {
		if msg := h.attachImage(ctx, logger, doc, fileHeader); msg != "" {
			h.discardDocument(ctx, logger, doc)
			h.renderGenerateError(c, msg)
			return
		}
	}

	steps, err := document.DefaultSteps().ToJSON()
	if err != nil {
		logger.Error("encode steps", slog.Any("error", err))
		Internal(c, "failed to prepare document")
		return
	}
	doc.Steps = steps
	if err := h.db.Save(doc).Error; err != nil {
		logger.Error("save document", slog.Any("error", err))
		Internal(c, "failed to prepare document")
		return
	}

	searchContext := ""
	if h.searcher != nil {
		searchContext = h.searcher.Lookup(ctx, strings.TrimSpace(req.TargetRole+" "+req.Company))
	}

	analysis := llm.AnalyzeJobDescription(ctx, logger, h.generator, req.JobDescription)

	keywords := splitKeywords(req.Keywords)
	keywords = append(keywords, analysis.Keywords...)

	promptText := prompt.Build(prompt.Input{
		DocumentType:   doc.Type,
		Role:           req.TargetRole,
		Company:        req.Company,
		Keywords:       keywords,
		Tone:           req.Tone,
		JobDescription: req.JobDescription,
		User:           userData,
		Context:        searchContext,
		Language:       req.Language,
		Template:       req.Template,
	})

	content, err := h.generator.Generate(ctx, promptText)
	if err != nil {
		logger.Error("generate document", slog.Uint64("document_id", uint64(doc.ID)), slog.Any("error", err))
		h.discardDocument(ctx, logger, doc)
		h.renderGenerateError(c, fmt.Sprintf("An error occurred during generation: %v", err))
		return
	}

	metadata, err := json.Marshal(map[string]any{
		"keywords":                keywords,
		"tone":                    req.Tone,
		"job_description_preview": preview(req.JobDescription, 100),
		"job_title":               analysis.JobTitle,
		"experience_level":        analysis.ExperienceLevel,
	})
	if err != nil {
		logger.Error("encode metadata", slog.Any("error", err))
		Internal(c, "failed to save document")
		return
	}

	doc.Content = content
	doc.Metadata = metadata
	doc.Score = 85
	if err := doc.SetStatus(document.StatusCompleted); err != nil {
		logger.Error("complete document", slog.Any("error", err))
		Internal(c, "failed to save document")
		return
	}
	completed, err := document.DefaultSteps().MarkAllCompleted(time.Now().UTC()).ToJSON()
	if err != nil {
		logger.Error("encode steps", slog.Any("error", err))
		Internal(c, "failed to save document")
		return
	}
	doc.Steps = completed

	if err := h.db.Save(doc).Error; err != nil {
		logger.Error("save document", slog.Any("error", err))
		Internal(c, "failed to save document")
		return
	}

	h.enqueuePrerender(logger, doc.ID, middleware.GetCorrelationID(c))
	h.notifyOwner(ctx, logger, doc)

	logger.Info("document generated",
		slog.Uint64("document_id", uint64(doc.ID)),
		slog.String("type", doc.Type),
	)
	c.Redirect(http.StatusFound, "/dashboard/")
}

// upsertDocument creates a new document or reopens an existing one for
// regeneration. Ownership is checked by scoping the lookup: a foreign id is
// indistinguishable from a missing one.
func (h *DocumentHandler) upsertDocument(c *gin.Context, req generateRequest, owner *database.User) (*database.Document, error) {
	title := req.TargetRole
	if req.DocumentType == "LM" && req.Company != "" {
		title = fmt.Sprintf("%s - %s", req.TargetRole, req.Company)
	}

	db := h.db.WithContext(c.Request.Context())

	var doc database.Document
	if req.DocID != "" {
		docID, err := strconv.ParseUint(req.DocID, 10, 64)
		if err != nil {
			return nil, gorm.ErrRecordNotFound
		}
		query := db.Where("id = ?", docID)
		if owner != nil {
			query = query.Where("user_id = ?", owner.ID)
		} else {
			query = query.Where("user_id IS NULL")
		}
		if err := query.First(&doc).Error; err != nil {
			return nil, err
		}
		if doc.CurrentStatus() != document.StatusProcessing {
			if err := doc.SetStatus(document.StatusProcessing); err != nil {
				return nil, err
			}
		}
	} else {
		doc = database.Document{Status: string(document.StatusPending)}
		if err := doc.SetStatus(document.StatusProcessing); err != nil {
			return nil, err
		}
	}

	if owner != nil {
		id := owner.ID
		doc.UserID = &id
		doc.ContactName = owner.FullName
		doc.ContactMail = owner.Email
	} else {
		doc.UserID = nil
		doc.ContactName = "Anonymous"
		doc.ContactMail = "N/A"
	}
	doc.Type = req.DocumentType
	doc.Title = title
	doc.Role = req.TargetRole
	doc.Company = req.Company
	doc.Phone = req.Phone
	doc.LinkedinURL = req.LinkedinURL
	doc.GithubURL = req.GithubURL
	doc.Language = req.Language
	doc.Template = req.Template
	doc.Score = 0
	doc.Content = ""
	doc.PdfKey = ""

	if err := db.Save(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// attachImage validates, scans and stores the CV photo. It returns a
// user-facing message on rejection and "" on success.
func (h *DocumentHandler) attachImage(ctx context.Context, logger *slog.Logger, doc *database.Document, fileHeader *multipart.FileHeader) string {
	if fileHeader.Size > h.maxImageBytes {
		return "The image must not exceed 2MB"
	}

	if h.clamdAddr != "" {
		if msg := scanUpload(logger, h.clamdAddr, fileHeader); msg != "" {
			return msg
		}
	}

	if h.storage == nil {
		return ""
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("open image", slog.Any("error", err))
		return "Failed to read the image"
	}
	defer file.Close()

	objectKey := fmt.Sprintf("cv_images/user_%s/%d/%s", ownerSegment(doc.UserID), doc.ID, path.Base(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := h.storage.UploadFile(ctx, objectKey, file, fileHeader.Size, contentType); err != nil {
		logger.Error("upload image", slog.Any("error", err))
		return "Failed to store the image"
	}

	image := database.CVImage{DocumentID: doc.ID, ObjectKey: objectKey}
	var existing database.CVImage
	err = h.db.Where("document_id = ?", doc.ID).First(&existing).Error
	switch {
	case err == nil:
		if h.storage != nil && existing.ObjectKey != objectKey {
			_ = h.storage.DeleteObject(ctx, existing.ObjectKey)
		}
		existing.ObjectKey = objectKey
		err = h.db.Save(&existing).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = h.db.Create(&image).Error
	}
	if err != nil {
		logger.Error("save image record", slog.Any("error", err))
		return "Failed to store the image"
	}
	return ""
}

func scanUpload(logger *slog.Logger, clamdAddr string, fileHeader *multipart.FileHeader) string {
	file, err := fileHeader.Open()
	if err != nil {
		return "Failed to read the image"
	}
	abortChan := make(chan bool)
	scanChan, err := clamd.NewClamd(clamdAddr).ScanStream(file, abortChan)
	file.Close()
	if err != nil {
		logger.Error("scan image", slog.Any("error", err))
		return "Failed to scan the image"
	}
	defer close(abortChan)
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return "Malicious file detected"
		}
	}
	return ""
}

// discardDocument removes a document and its stored image after a failed run.
func (h *DocumentHandler) discardDocument(ctx context.Context, logger *slog.Logger, doc *database.Document) {
	var image database.CVImage
	if err := h.db.Where("document_id = ?", doc.ID).First(&image).Error; err == nil {
		if h.storage != nil {
			_ = h.storage.DeleteObject(ctx, image.ObjectKey)
		}
		if err := h.db.Delete(&image).Error; err != nil {
			logger.Error("delete image record", slog.Any("error", err))
		}
	}
	if err := h.db.Delete(doc).Error; err != nil {
		logger.Error("delete document", slog.Uint64("document_id", uint64(doc.ID)), slog.Any("error", err))
	}
}

func (h *DocumentHandler) enqueuePrerender(logger *slog.Logger, documentID uint, correlationID string) {
	if h.enqueuer == nil {
		return
	}
	task, err := tasks.NewPDFPrerenderTask(documentID, correlationID)
	if err != nil {
		logger.Error("build prerender task", slog.Any("error", err))
		return
	}
	if _, err := h.enqueuer.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)); err != nil {
		logger.Warn("enqueue prerender task", slog.Any("error", err))
	}
}

func (h *DocumentHandler) notifyOwner(ctx context.Context, logger *slog.Logger, doc *database.Document) {
	if h.redisClient == nil || doc.UserID == nil {
		return
	}
	payload, err := json.Marshal(gin.H{
		"type":        "generation",
		"status":      doc.Status,
		"document_id": doc.ID,
	})
	if err != nil {
		return
	}
	channel := fmt.Sprintf("user_notify:%d", *doc.UserID)
	if err := h.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Warn("publish notify", slog.String("channel", channel), slog.Any("error", err))
	}
}

// Detail renders the document page with its steps and image URL.
func (h *DocumentHandler) Detail(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	steps, err := document.StepsFromJSON(doc.Steps)
	if err != nil {
		steps = document.Steps{}
	}

	imageURL := ""
	var image database.CVImage
	if err := h.db.Where("document_id = ?", doc.ID).First(&image).Error; err == nil && h.storage != nil {
		if url, err := h.storage.GeneratePresignedURL(c.Request.Context(), image.ObjectKey, 10*time.Minute); err == nil {
			imageURL = url
		}
	}

	c.HTML(http.StatusOK, "document.html", gin.H{
		"document": doc,
		"steps":    steps,
		"imageURL": imageURL,
	})
}

// Download streams the PDF. A cached render is served through a presigned
// redirect; otherwise the PDF is produced on the spot.
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	if doc.CurrentStatus() != document.StatusCompleted {
		Conflict(c, "Document not ready")
		return
	}

	if doc.PdfKey != "" && h.storage != nil {
		url, err := h.storage.GeneratePresignedURL(c.Request.Context(), doc.PdfKey, 5*time.Minute)
		if err == nil {
			c.Redirect(http.StatusFound, url)
			return
		}
		middleware.LoggerFromContext(c).Warn("presign cached pdf", slog.Any("error", err))
	}

	data, err := h.renderer.Render(doc.Title, doc.Content)
	if err != nil {
		middleware.LoggerFromContext(c).Error("render pdf", slog.Uint64("document_id", uint64(doc.ID)), slog.Any("error", err))
		Internal(c, "failed to render pdf")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadFilename(doc)))
	c.Data(http.StatusOK, "application/pdf", data)
}

// uploadImageResponse is the JSON shape of the image endpoints.
type uploadImageResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UploadImage attaches a photo to an existing CV document.
func (h *DocumentHandler) UploadImage(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	logger := middleware.LoggerFromContext(c)

	if doc.Type != "CV" {
		c.JSON(http.StatusBadRequest, uploadImageResponse{Error: "Document must be a CV"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, uploadImageResponse{Error: "missing image file"})
		return
	}

	if msg := h.attachImage(c.Request.Context(), logger, doc, fileHeader); msg != "" {
		c.JSON(http.StatusBadRequest, uploadImageResponse{Error: msg})
		return
	}

	url := ""
	var image database.CVImage
	if err := h.db.Where("document_id = ?", doc.ID).First(&image).Error; err == nil && h.storage != nil {
		if presigned, err := h.storage.GeneratePresignedURL(c.Request.Context(), image.ObjectKey, 10*time.Minute); err == nil {
			url = presigned
		}
	}
	c.JSON(http.StatusOK, uploadImageResponse{Success: true, URL: url})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Score  *int   `json:"score"`
}

// UpdateStatus applies a validated lifecycle transition via the JSON API.
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	next, err := document.ParseStatus(req.Status)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := doc.SetStatus(next); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Score != nil {
		doc.Score = *req.Score
	}

	if err := h.db.Save(doc).Error; err != nil {
		middleware.LoggerFromContext(c).Error("update status", slog.Any("error", err))
		Internal(c, "failed to update document")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": doc.Status})
}

// Delete removes a document, its image record and the stored objects.
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	if doc.PdfKey != "" && h.storage != nil {
		_ = h.storage.DeleteObject(ctx, doc.PdfKey)
	}
	h.discardDocument(ctx, logger, doc)

	c.Status(http.StatusNoContent)
}

// TestPost echoes the submitted form fields. Kept as a connectivity probe.
func (h *DocumentHandler) TestPost(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(1 << 20); err != nil {
		_ = c.Request.ParseForm()
	}
	fields := gin.H{}
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	c.JSON(http.StatusOK, gin.H{"method": c.Request.Method, "received": fields})
}

// ownedDocument loads the :id document scoped to the authenticated user and
// writes the error response itself when the lookup fails.
func (h *DocumentHandler) ownedDocument(c *gin.Context) (*database.Document, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}

	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid document id")
		return nil, false
	}

	var doc database.Document
	if err := h.db.Where("id = ? AND user_id = ?", docID, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "document not found")
		} else {
			middleware.LoggerFromContext(c).Error("load document", slog.Any("error", err))
			Internal(c, "failed to load document")
		}
		return nil, false
	}
	return &doc, true
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func splitKeywords(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func ownerSegment(userID *uint) string {
	if userID == nil {
		return "anonymous"
	}
	return strconv.FormatUint(uint64(*userID), 10)
}

func downloadFilename(doc *database.Document) string {
	sanitize := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			s = "document"
		}
		return strings.ReplaceAll(s, " ", "_")
	}
	if doc.Type == "LM" {
		return fmt.Sprintf("Cover_Letter_%s.pdf", sanitize(doc.Company))
	}
	return fmt.Sprintf("CV_%s.pdf", sanitize(doc.Role))
}
