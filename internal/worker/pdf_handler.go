package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvagent/internal/database"
	"cvagent/internal/document"
	"cvagent/internal/errcode"
	"cvagent/internal/pdf"
	"cvagent/internal/storage"
	"cvagent/internal/tasks"
)

// PDFPrerenderTaskHandler renders a completed document to PDF ahead of the
// first download and caches the object key on the record.
type PDFPrerenderTaskHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	renderer    *pdf.Renderer
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

func NewPDFPrerenderTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	renderer *pdf.Renderer,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) *PDFPrerenderTaskHandler {
	return &PDFPrerenderTaskHandler{
		db:          db,
		storage:     storageClient,
		renderer:    renderer,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask implements asynq.Handler.
func (h *PDFPrerenderTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.PDFPrerenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("document_id", uint64(payload.DocumentID)),
	)

	var doc database.Document
	if err := h.db.WithContext(ctx).First(&doc, payload.DocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("document not found, skipping task")
			return nil
		}
		log.Error("query document failed", slog.Any("error", err))
		return err
	}

	// Only completed documents are worth caching. The record may have been
	// reopened for regeneration between enqueue and execution.
	if doc.CurrentStatus() != document.StatusCompleted {
		log.Info("document not completed, skipping prerender", slog.String("status", doc.Status))
		return nil
	}

	defer func() {
		if retErr == nil || doc.UserID == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}
		notify := GenerationNotifyMessage{
			Type:          "pdf",
			Status:        "error",
			DocumentID:    doc.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishNotify(ctx, *doc.UserID, notify); err != nil {
			log.Error("publish pdf error notification failed", slog.Any("error", err))
		}
	}()

	pdfBytes, err := h.renderer.Render(doc.Title, doc.Content)
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("generated/%s/%d.pdf", ownerSegment(doc.UserID), doc.ID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&doc).Update("pdf_key", objectName).Error; err != nil {
		log.Error("update document pdf key failed", slog.Any("error", err))
		return err
	}

	if doc.UserID != nil {
		notify := GenerationNotifyMessage{
			Type:          "pdf",
			Status:        "completed",
			DocumentID:    doc.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.OK,
		}
		if err := h.publishNotify(ctx, *doc.UserID, notify); err != nil {
			log.Error("publish redis notification failed", slog.Any("error", err))
			return err
		}
	}

	log.Info("pdf prerender completed", slog.String("object_key", objectName))
	return nil
}

func (h *PDFPrerenderTaskHandler) publishNotify(ctx context.Context, userID uint, notify GenerationNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func ownerSegment(userID *uint) string {
	if userID == nil {
		return "anonymous"
	}
	return fmt.Sprintf("user_%d", *userID)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
