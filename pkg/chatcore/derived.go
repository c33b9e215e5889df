package chatcore

import (
	"math"
	"sort"

	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

// Pure derived-view calculators over (transcript snapshot, vendor thread,
// pending selection overlay). No state of their own.

// Vendor totals within one cent of the buyer's budget ceiling are treated as
// "no real offer" rather than a vendor quote.
const budgetEpsilon = 0.01

// SuggestionsFor collects the selectable suggestions for one product line:
// every suggested-product entry across the transcript, deduplicated per
// suggested product keeping the latest (highest suggestion id, hub ids are
// monotonic), withdrawn ones dropped, and the buyer-selected flag overlaid
// with any pending local choice for that line. The overlay holds the full
// chosen set snapshotted at modal open, so for an overlaid line membership
// is authoritative: an id missing from it was explicitly deselected.
func SuggestionsFor(entries []Entry, overlay SelectionOverlay, productID int64) []rfqchat.SuggestedProductV1 {
	latest := make(map[int64]rfqchat.SuggestedProductV1)
	for _, e := range entries {
		for _, s := range e.SuggestedProducts {
			if s.RFQQuoteProductID != productID {
				continue
			}
			if cur, ok := latest[s.SuggestedProductID]; !ok || s.ID > cur.ID {
				latest[s.SuggestedProductID] = s
			}
		}
	}

	_, overlaid := overlay[productID]

	out := make([]rfqchat.SuggestedProductV1, 0, len(latest))
	for _, s := range latest {
		if s.Withdrawn() {
			continue
		}
		if overlaid {
			s.IsSelectedByBuyer = overlay.Contains(productID, s.ID)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// suggestionProductLines lists the distinct product lines that received
// suggestions anywhere in the transcript.
func suggestionProductLines(entries []Entry) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, e := range entries {
		for _, s := range e.SuggestedProducts {
			if !seen[s.RFQQuoteProductID] {
				seen[s.RFQQuoteProductID] = true
				out = append(out, s.RFQQuoteProductID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SelectedSuggestedTotal sums offer price × quantity over every suggestion
// whose merged selected set (hub-confirmed plus pending overlay) contains it.
func SelectedSuggestedTotal(entries []Entry, overlay SelectionOverlay) float64 {
	var total float64
	for _, productID := range suggestionProductLines(entries) {
		for _, s := range SuggestionsFor(entries, overlay, productID) {
			if s.IsSelectedByBuyer {
				total += s.OfferPrice * float64(s.Quantity)
			}
		}
	}
	return total
}

// ApprovedProductsTotal sums offer price × quantity over the thread's lines
// whose price request is approved. Quantity defaults to 1 when absent.
func ApprovedProductsTotal(vt VendorThread) float64 {
	var total float64
	for _, p := range vt.Products {
		if p.PriceRequest == nil || p.PriceRequest.Status != rfqchat.PriceApproved {
			continue
		}
		total += p.OfferPrice * float64(qtyOrOne(p.Quantity))
	}
	return total
}

// CanCheckout holds iff the thread has product lines and every one of them
// is approved with a positive offer price.
func CanCheckout(vt VendorThread) bool {
	if len(vt.Products) == 0 {
		return false
	}
	for _, p := range vt.Products {
		if p.PriceRequest == nil || p.PriceRequest.Status != rfqchat.PriceApproved {
			return false
		}
		if p.OfferPrice <= 0 {
			return false
		}
	}
	return true
}

// CheckoutTotal is the amount due at checkout: approved line items plus
// selected suggested products.
func CheckoutTotal(vt VendorThread, entries []Entry, overlay SelectionOverlay) float64 {
	return ApprovedProductsTotal(vt) + SelectedSuggestedTotal(entries, overlay)
}

// DisplayOffer reports the vendor-level offer to show, and whether there is
// a real one. A vendor who never quoted is served the sum of the buyer's
// per-line budget ceilings instead; that sum must render as "no offer", not
// as a price.
func DisplayOffer(vt VendorThread) (float64, bool) {
	var budgetMax float64
	for _, p := range vt.Products {
		budgetMax += p.OfferPriceTo * float64(qtyOrOne(p.Quantity))
	}
	if budgetMax > 0 && math.Abs(vt.OfferPrice-budgetMax) < budgetEpsilon {
		return 0, false
	}
	return vt.OfferPrice, true
}

func qtyOrOne(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}
