package events

import "time"

// CheckoutInitiatedV1 is emitted toward the order pipeline once every product
// line of a vendor thread is approved and the buyer confirms checkout.
type CheckoutInitiatedV1 struct {
	RFQID           int64     `json:"rfq_id"`
	RFQQuotesUserID int64     `json:"rfq_quotes_user_id"`
	BuyerID         int64     `json:"buyer_id"`
	SellerID        int64     `json:"seller_id"`
	RoomID          int64     `json:"room_id"`
	ApprovedTotal   float64   `json:"approved_total"`
	SuggestedTotal  float64   `json:"suggested_total"`
	InitiatedAt     time.Time `json:"initiated_at"`
}
