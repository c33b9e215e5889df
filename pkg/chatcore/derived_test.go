package chatcore

import (
	"math"
	"testing"

	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

func suggestionEntry(suggestions ...rfqchat.SuggestedProductV1) Entry {
	return Entry{
		MessageV1: rfqchat.MessageV1{SuggestedProducts: suggestions},
		Delivery:  Sent,
	}
}

func TestSuggestionsFor_WithdrawnLatestWinsBothArrivalOrders(t *testing.T) {
	offered := rfqchat.SuggestedProductV1{
		ID: 1, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 2, OfferPrice: 10,
	}
	withdrawn := rfqchat.SuggestedProductV1{
		ID: 2, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 0, OfferPrice: 10,
	}

	orders := map[string][]Entry{
		"offer then withdraw": {suggestionEntry(offered), suggestionEntry(withdrawn)},
		"withdraw then offer": {suggestionEntry(withdrawn), suggestionEntry(offered)},
	}
	for name, entries := range orders {
		if got := SuggestionsFor(entries, nil, 3); len(got) != 0 {
			t.Fatalf("%s: withdrawn suggestion must not be selectable, got %+v", name, got)
		}
	}
}

func TestSuggestionsFor_DedupsKeepingLatestPerProduct(t *testing.T) {
	entries := []Entry{
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 1, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 2, OfferPrice: 10},
			rfqchat.SuggestedProductV1{ID: 2, SuggestedProductID: 6, RFQQuoteProductID: 3, Quantity: 1, OfferPrice: 20},
		),
		// Vendor re-suggests product 5 with a better price.
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 3, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 2, OfferPrice: 8},
		),
		// Different product line, must not leak in.
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 4, SuggestedProductID: 5, RFQQuoteProductID: 9, Quantity: 1, OfferPrice: 99},
		),
	}

	got := SuggestionsFor(entries, nil, 3)
	if len(got) != 2 {
		t.Fatalf("expected 2 deduped suggestions, got %d: %+v", len(got), got)
	}
	for _, s := range got {
		if s.SuggestedProductID == 5 && s.OfferPrice != 8 {
			t.Fatalf("latest suggestion for product 5 must win, got %+v", s)
		}
	}
}

func TestSuggestionsFor_OverlayIsAuthoritativeForItsLine(t *testing.T) {
	entries := []Entry{
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 1, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 1, OfferPrice: 10, IsSelectedByBuyer: true},
			rfqchat.SuggestedProductV1{ID: 2, SuggestedProductID: 6, RFQQuoteProductID: 3, Quantity: 1, OfferPrice: 20},
		),
	}

	// Pending choice keeps 1 and adds 2.
	got := SuggestionsFor(entries, SelectionOverlay{3: {1, 2}}, 3)
	for _, s := range got {
		if !s.IsSelectedByBuyer {
			t.Fatalf("overlaid selection must mark both, got %+v", got)
		}
	}

	// Explicit deselect of the server-selected one.
	got = SuggestionsFor(entries, SelectionOverlay{3: {2}}, 3)
	for _, s := range got {
		if s.ID == 1 && s.IsSelectedByBuyer {
			t.Fatalf("overlay deselect must override the server flag")
		}
		if s.ID == 2 && !s.IsSelectedByBuyer {
			t.Fatalf("overlay select missing")
		}
	}

	// No overlay entry for the line: server flags untouched.
	got = SuggestionsFor(entries, SelectionOverlay{}, 3)
	for _, s := range got {
		if s.ID == 1 && !s.IsSelectedByBuyer {
			t.Fatalf("server selection lost without overlay")
		}
	}
}

func TestSelectedSuggestedTotal(t *testing.T) {
	entries := []Entry{
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 1, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 2, OfferPrice: 10, IsSelectedByBuyer: true},
			rfqchat.SuggestedProductV1{ID: 2, SuggestedProductID: 6, RFQQuoteProductID: 3, Quantity: 1, OfferPrice: 20},
		),
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 3, SuggestedProductID: 7, RFQQuoteProductID: 4, Quantity: 3, OfferPrice: 5},
		),
	}

	// Server-selected only: 2×10.
	if got := SelectedSuggestedTotal(entries, nil); got != 20 {
		t.Fatalf("expected 20, got %v", got)
	}
	// Overlay adds line 4's suggestion: 2×10 + 3×5.
	if got := SelectedSuggestedTotal(entries, SelectionOverlay{3: {1}, 4: {3}}); got != 35 {
		t.Fatalf("expected 35, got %v", got)
	}
}

func approvedProduct(id int64, price float64, qty int) QuoteProduct {
	return QuoteProduct{
		RFQQuoteProductID: id,
		Quantity:          qty,
		OfferPrice:        price,
		BaseOfferPrice:    price,
		PriceRequest: &rfqchat.PriceRequestV1{
			ID: id, RequestedPrice: price, RFQQuoteProductID: id, Status: rfqchat.PriceApproved,
		},
	}
}

func TestCanCheckout_GatesOnEveryLineApproved(t *testing.T) {
	pendingLine := QuoteProduct{
		RFQQuoteProductID: 2,
		Quantity:          1,
		OfferPrice:        50,
		PriceRequest: &rfqchat.PriceRequestV1{
			ID: 2, RequestedPrice: 50, RFQQuoteProductID: 2, Status: rfqchat.PricePending,
		},
	}
	vt := VendorThread{Products: []QuoteProduct{approvedProduct(1, 100, 2), pendingLine}}

	if CanCheckout(vt) {
		t.Fatalf("pending line must block checkout")
	}
	if got := ApprovedProductsTotal(vt); got != 200 {
		t.Fatalf("approved total must count only approved lines, got %v", got)
	}

	vt.Products[1] = approvedProduct(2, 50, 1)
	if !CanCheckout(vt) {
		t.Fatalf("all lines approved must allow checkout")
	}
	if got := ApprovedProductsTotal(vt); got != 250 {
		t.Fatalf("expected total 250, got %v", got)
	}
}

func TestCanCheckout_EdgeCases(t *testing.T) {
	if CanCheckout(VendorThread{}) {
		t.Fatalf("empty thread must not check out")
	}
	free := approvedProduct(1, 0, 1)
	if CanCheckout(VendorThread{Products: []QuoteProduct{free}}) {
		t.Fatalf("approved line without positive price must block checkout")
	}
	noRequest := QuoteProduct{RFQQuoteProductID: 1, Quantity: 1, OfferPrice: 10}
	if CanCheckout(VendorThread{Products: []QuoteProduct{noRequest}}) {
		t.Fatalf("line without a price request must block checkout")
	}
}

func TestApprovedProductsTotal_QuantityDefaultsToOne(t *testing.T) {
	p := approvedProduct(1, 100, 0)
	if got := ApprovedProductsTotal(VendorThread{Products: []QuoteProduct{p}}); got != 100 {
		t.Fatalf("zero quantity must count as 1, got %v", got)
	}
}

func TestDisplayOffer_BudgetCeilingIsNotAnOffer(t *testing.T) {
	vt := VendorThread{
		OfferPrice: 500,
		Products: []QuoteProduct{
			{RFQQuoteProductID: 1, Quantity: 1, OfferPriceTo: 300},
			{RFQQuoteProductID: 2, Quantity: 1, OfferPriceTo: 200},
		},
	}
	if _, ok := DisplayOffer(vt); ok {
		t.Fatalf("offer equal to the budget ceiling sum must render as no offer")
	}

	vt.OfferPrice = 450
	offer, ok := DisplayOffer(vt)
	if !ok || offer != 450 {
		t.Fatalf("real quote must be displayed, got %v ok=%v", offer, ok)
	}

	// Within epsilon still counts as the ceiling.
	vt.OfferPrice = 500.005
	if _, ok := DisplayOffer(vt); ok {
		t.Fatalf("offer within epsilon of the ceiling must render as no offer")
	}
}

func TestCheckoutTotal_CombinesApprovedAndSelected(t *testing.T) {
	vt := VendorThread{Products: []QuoteProduct{approvedProduct(3, 100, 2)}}
	entries := []Entry{
		suggestionEntry(
			rfqchat.SuggestedProductV1{ID: 1, SuggestedProductID: 5, RFQQuoteProductID: 3, Quantity: 1, OfferPrice: 25, IsSelectedByBuyer: true},
		),
	}
	got := CheckoutTotal(vt, entries, nil)
	if math.Abs(got-225) > 1e-9 {
		t.Fatalf("expected 225, got %v", got)
	}
}
