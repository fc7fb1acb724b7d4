package model

import "time"

// DeliveryReceipt - delivery confirmation for a single message
type DeliveryReceipt struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeliveredTo    string    `json:"deliveredTo"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

// ReadReceipt - read receipt, for one message or a batch
type ReadReceipt struct {
	MessageID      string    `json:"messageId,omitempty"`
	MessageIDs     []string  `json:"messageIds,omitempty"`
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

// IDs returns every message id the receipt covers.
func (r ReadReceipt) IDs() []string {
	ids := make([]string, 0, len(r.MessageIDs)+1)
	if r.MessageID != "" {
		ids = append(ids, r.MessageID)
	}
	for _, id := range r.MessageIDs {
		if id != "" && id != r.MessageID {
			ids = append(ids, id)
		}
	}
	return ids
}

// TypingIndicator - typing status between two users
type TypingIndicator struct {
	ConversationID string `json:"conversationId,omitempty"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
}
