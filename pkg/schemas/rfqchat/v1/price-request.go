package rfqchat

type PriceRequestStatus string

const (
	PricePending  PriceRequestStatus = "pending"
	PriceApproved PriceRequestStatus = "approved"
	PriceRejected PriceRequestStatus = "rejected"
)

// PriceRequestV1 is a proposal by either party to change the agreed unit
// price of one RFQ product line. Terminal once approved or rejected.
// The first vendor-submitted price for a line is auto-approved by the hub
// and is never observed as pending.
type PriceRequestV1 struct {
	ID                int64              `json:"id"`
	RequestedPrice    float64            `json:"requested_price"`
	RFQQuoteProductID int64              `json:"rfq_quote_product_id"`
	RequestedByID     int64              `json:"requested_by_id"`
	Status            PriceRequestStatus `json:"status"`
}

func (p PriceRequestV1) Resolved() bool {
	return p.Status == PriceApproved || p.Status == PriceRejected
}
