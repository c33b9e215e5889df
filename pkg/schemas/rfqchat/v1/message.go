package rfqchat

import "time"

// MessageV1 is one negotiation-thread entry as the hub serves it.
// Content may be empty: entries carrying only a price request or suggested
// products are silent status updates, kept for derived state but not shown.
type MessageV1 struct {
	ID int64 `json:"id,omitempty"` // hub-assigned, zero until confirmed

	// Client-generated, unique per locally-authored entry; the hub echoes it
	// back on the confirmation event so the local draft can be merged.
	IdempotencyToken string `json:"idempotency_token"`

	RoomID    int64     `json:"room_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Attachments       []AttachmentV1       `json:"attachments,omitempty"`
	PriceRequest      *PriceRequestV1      `json:"price_request,omitempty"`
	SuggestedProducts []SuggestedProductV1 `json:"suggested_products,omitempty"`
}

// Silent reports whether the entry is a backend-driven status update with
// nothing displayable: no content but a price request or suggestions.
func (m MessageV1) Silent() bool {
	return m.Content == "" && (m.PriceRequest != nil || len(m.SuggestedProducts) > 0)
}
