// Package chatcore is the client-side reconciliation core for one RFQ
// negotiation thread: an ordered in-memory log of chat entries merged by
// idempotency token, pure derived-view calculators over it, and a batched
// suggested-product selection coordinator. The hub remains the source of
// truth; this cache only reconciles optimistic local state against it.
package chatcore

import (
	"context"

	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

type DeliveryState string

const (
	// Locally appended, confirmation not yet received.
	Sending DeliveryState = "sending"
	// Confirmed by the hub (or authored by the counter-party).
	Sent DeliveryState = "sent"
)

// Entry is one transcript row: the wire message plus local delivery state.
// Invariant: exactly one Entry per idempotency token at any time.
type Entry struct {
	rfqchat.MessageV1
	Delivery DeliveryState
}

// QuoteProduct is one negotiated line item of a vendor's quote.
type QuoteProduct struct {
	RFQQuoteProductID int64
	Quantity          int
	// Current effective unit price: flips to the requested price when a
	// price request is approved, reverts to BaseOfferPrice on reject.
	OfferPrice float64
	// Vendor's price before any pending proposal.
	BaseOfferPrice float64
	// Buyer-supplied budget ceiling for the line.
	OfferPriceTo float64
	PriceRequest *rfqchat.PriceRequestV1
}

// VendorThread is the per-seller negotiation context within one RFQ quote.
// Shared read-mostly with the vendor picker; mutated in place by the active
// session's event handlers, last write wins.
type VendorThread struct {
	SellerID        int64
	BuyerID         int64
	RFQID           int64
	RFQQuotesUserID int64
	RoomID          int64
	// Vendor-level offer as served; may be nothing more than the sum of the
	// buyer's budget ceilings when no real offer was ever made.
	OfferPrice     float64
	Products       []QuoteProduct
	UnreadMsgCount int
}

// SelectionOverlay maps rfq quote product id to the locally-chosen suggestion
// ids not yet committed to the hub. Never persisted, lost on reload.
type SelectionOverlay map[int64][]int64

func (o SelectionOverlay) Contains(productID, suggestionID int64) bool {
	for _, id := range o[productID] {
		if id == suggestionID {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Inbound events
// -----------------------------------------------------------------------------

// Event is one typed gateway push. The event source publishes these onto a
// single inbound channel; the session is the sole subscriber and mutator.
type Event interface{ event() }

type (
	MessagePosted    struct{ rfqchat.MessagePostedV1 }
	RoomCreated      struct{ rfqchat.RoomCreatedV1 }
	AttachmentStatus struct{ rfqchat.AttachmentStatusV1 }
	PriceStatus      struct{ rfqchat.PriceStatusV1 }
	GatewayError     struct{ rfqchat.GatewayErrorV1 }
)

func (MessagePosted) event()    {}
func (RoomCreated) event()      {}
func (AttachmentStatus) event() {}
func (PriceStatus) event()      {}
func (GatewayError) event()     {}

// -----------------------------------------------------------------------------
// Collaborators (injected, fakeable)
// -----------------------------------------------------------------------------

// EventSource delivers gateway pushes. Implementations own the connection;
// the channel closes when the source shuts down.
type EventSource interface {
	Events() <-chan Event
}

// Emitter sends fire-and-forget payloads toward the gateway. Confirmations
// arrive asynchronously as Events.
type Emitter interface {
	SendMessage(ctx context.Context, msg rfqchat.SendMessageV1) error
	CreateRoom(ctx context.Context, req rfqchat.CreateRoomV1) error
	UpdatePriceStatus(ctx context.Context, req rfqchat.UpdatePriceStatusV1) error
}

// SelectSuggestionsRequest commits the absolute selected-suggestion set for
// one product line. An empty id list is a valid deselect-all.
type SelectSuggestionsRequest struct {
	SelectedSuggestionIDs []int64 `json:"selected_suggestion_ids"`
	RFQQuoteProductID     int64   `json:"rfq_quote_product_id"`
	RFQQuotesUserID       int64   `json:"rfq_quotes_user_id"`
}

// ChatAPI is the hub's REST surface used by the core.
type ChatAPI interface {
	// FetchRoomID resolves the negotiation room, 0 when none exists yet.
	FetchRoomID(ctx context.Context, rfqID, counterpartyUserID int64) (int64, error)
	// FetchChatHistory returns the authoritative transcript snapshot.
	FetchChatHistory(ctx context.Context, roomID int64) ([]rfqchat.MessageV1, error)
	// UpdateUnreadMessages is best-effort; callers swallow errors.
	UpdateUnreadMessages(ctx context.Context, userID, roomID int64) error
	UploadAttachment(ctx context.Context, att rfqchat.AttachmentV1, content []byte) error
	SelectSuggestedProducts(ctx context.Context, req SelectSuggestionsRequest) error
}

type NotifyLevel string

const (
	NotifyInfo  NotifyLevel = "info"
	NotifyError NotifyLevel = "error"
)

// Notifier surfaces non-fatal conditions to the user (toast in the shell).
// Nothing in this subsystem is fatal; every failure degrades to a
// notification plus the option to repeat the action.
type Notifier interface {
	Notify(level NotifyLevel, message string)
}

type NopNotifier struct{}

func (NopNotifier) Notify(NotifyLevel, string) {}
