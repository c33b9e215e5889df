package rfqchat

// Payloads emitted by clients toward the gateway. Fire-and-forget: the hub
// answers asynchronously with the inbound events above.

type SendMessageV1 struct {
	Room    RoomKey  `json:"room"`
	Quote   QuoteRef `json:"quote"`
	Author  PartyRef `json:"author"`
	Content string   `json:"content"`

	IdempotencyToken string `json:"idempotency_token"` // required (UUID)

	// Optional context for price proposals riding the message.
	RFQQuoteProductID int64    `json:"rfq_quote_product_id,omitempty"`
	BuyerID           int64    `json:"buyer_id,omitempty"`
	RequestedPrice    *float64 `json:"requested_price,omitempty"`

	Attachments []AttachmentV1 `json:"attachments,omitempty"`
}

type CreateRoomV1 struct {
	Quote        QuoteRef `json:"quote"`
	Creator      PartyRef `json:"creator"`
	Counterparty PartyRef `json:"counterparty"`
}

// UpdatePriceStatusV1 accepts or rejects a pending price request.
type UpdatePriceStatusV1 struct {
	Room              RoomKey            `json:"room"`
	PriceRequestID    int64              `json:"price_request_id"`
	Status            PriceRequestStatus `json:"status"`
	RFQUserID         int64              `json:"rfq_user_id"`
	RequestedPrice    float64            `json:"requested_price"`
	RFQQuoteProductID int64              `json:"rfq_quote_product_id"`
}
