package rfqchat

import "time"

// Events pushed by the socket gateway (or the AMQP bridge) to clients.
// Each rides a common.Envelope whose Meta.Type matches the metas in meta.go.

// MessagePostedV1 confirms a sent message or delivers a counter-party one.
// For locally-authored messages the embedded idempotency token matches the
// pending draft; clients merge rather than append.
type MessagePostedV1 struct {
	Room    RoomKey   `json:"room"`
	Message MessageV1 `json:"message"`
}

// RoomCreatedV1 answers a CreateRoomV1 emit once the hub allocated the room.
type RoomCreatedV1 struct {
	Room      RoomKey   `json:"room"`
	CreatorID int64     `json:"creator_id"`
	RFQID     int64     `json:"rfq_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentStatusV1 reports upload/delivery progress for one attachment.
// Correlation: UniqueID always; the owning message either by idempotency
// token (own upload) or by hub message id (counter-party attachment that
// lands after its message).
type AttachmentStatusV1 struct {
	Room             RoomKey          `json:"room"`
	UniqueID         string           `json:"unique_id"`
	MessageID        int64            `json:"message_id,omitempty"`
	IdempotencyToken string           `json:"idempotency_token,omitempty"`
	Status           AttachmentStatus `json:"status"`
	FileName         string           `json:"file_name,omitempty"`
	FileType         string           `json:"file_type,omitempty"`
	FilePath         string           `json:"file_path,omitempty"`
	PresignedURL     string           `json:"presigned_url,omitempty"`
}

// PriceStatusV1 announces the counter-party's decision on a price request.
type PriceStatusV1 struct {
	Room              RoomKey            `json:"room"`
	MessageID         int64              `json:"message_id"`
	PriceRequestID    int64              `json:"price_request_id"`
	RFQQuoteProductID int64              `json:"rfq_quote_product_id"`
	Status            PriceRequestStatus `json:"status"`
	RequestedPrice    float64            `json:"requested_price"`
	DecidedAt         time.Time          `json:"decided_at,omitempty"`
}

// GatewayErrorV1 is an application-level failure pushed by the hub. It never
// mutates client state; the shell surfaces it and must clear it explicitly.
type GatewayErrorV1 struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RoomID  int64  `json:"room_id,omitempty"`
}
