package rfqchat

// SuggestedProductV1 is an alternative product a vendor proposes in place of
// (or alongside) the buyer's originally requested line item.
type SuggestedProductV1 struct {
	ID                 int64   `json:"id"`
	SuggestedProductID int64   `json:"suggested_product_id"`
	RFQQuoteProductID  int64   `json:"rfq_quote_product_id"`
	Quantity           int     `json:"quantity"`
	OfferPrice         float64 `json:"offer_price"`
	IsSelectedByBuyer  bool    `json:"is_selected_by_buyer"`
}

// Withdrawn suggestions stay in the feed with quantity <= 0 and must not be
// offered for selection.
func (s SuggestedProductV1) Withdrawn() bool { return s.Quantity <= 0 }
