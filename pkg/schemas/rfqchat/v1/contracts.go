package rfqchat

type RoomKey struct {
	RoomID int64 `json:"room_id"`
}

type PartyRef struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role,omitempty"` // "buyer","seller"
}

type QuoteRef struct {
	RFQID           int64 `json:"rfq_id"`
	RFQQuotesUserID int64 `json:"rfq_quotes_user_id"`
}
