package worker

// GenerationNotifyMessage is the WebSocket message protocol, forwarded to
// clients through Redis Pub/Sub. Field names must stay in sync with the
// frontend parser.
type GenerationNotifyMessage struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	DocumentID    uint   `json:"document_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
