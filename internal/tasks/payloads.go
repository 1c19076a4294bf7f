package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants shared by the queue producer and the worker.
const (
	TypePDFPrerender = "pdf:prerender"
)

// PDFPrerenderPayload identifies the document whose PDF should be cached.
type PDFPrerenderPayload struct {
	DocumentID    uint   `json:"document_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFPrerenderTask builds a PDF pre-render task for a completed document.
func NewPDFPrerenderTask(documentID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFPrerenderPayload{
		DocumentID:    documentID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFPrerender, payload), nil
}
