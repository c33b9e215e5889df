package chatcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apievents "github.com/ultrasooq/rfqchat/pkg/schemas/api/events"
	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

var (
	ErrNoRoom           = errors.New("no negotiation room yet")
	ErrEmptyMessage     = errors.New("message needs content or attachments")
	ErrCheckoutNotReady = errors.New("not every product line is approved")
)

// SessionConfig wires one negotiation session. Thread is shared with the
// vendor picker and mutated in place by the session's event handlers.
type SessionConfig struct {
	Self   rfqchat.PartyRef
	Quote  rfqchat.QuoteRef
	Thread *VendorThread

	API     ChatAPI
	Emitter Emitter
	Source  EventSource
	Notify  Notifier
	Logger  *slog.Logger
}

// Session owns the reconciliation state for one open room: one transcript,
// one selection overlay, one vendor thread. Gateway events are consumed off
// a single inbound channel by Run; the session is the sole mutator, all
// other components read snapshot copies.
type Session struct {
	cfg    SessionConfig
	log    *slog.Logger
	notify Notifier

	mu         sync.Mutex
	roomID     int64
	transcript *Transcript
	selection  *SelectionCoordinator
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.API == nil || cfg.Emitter == nil || cfg.Source == nil {
		return nil, fmt.Errorf("chatcore: API, Emitter and Source are required")
	}
	if cfg.Thread == nil {
		return nil, fmt.Errorf("chatcore: vendor thread is required")
	}
	if cfg.Notify == nil {
		cfg.Notify = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		cfg:        cfg,
		log:        cfg.Logger,
		notify:     cfg.Notify,
		transcript: NewTranscript(),
	}
	s.selection = NewSelectionCoordinator(cfg.Quote.RFQQuotesUserID, SelectionDeps{
		Commit:   cfg.API.SelectSuggestedProducts,
		SendNote: func(ctx context.Context, content string) error { return s.SendText(ctx, content, nil) },
		Refetch:  s.Refresh,
		Notify:   cfg.Notify,
	})
	return s, nil
}

// Open resolves the room for this quote and loads the authoritative history.
// When no room exists yet a create-room emit goes out and the session stays
// roomless until the created event arrives. The unread counter reset is
// best-effort, errors swallowed.
func (s *Session) Open(ctx context.Context) error {
	const op = "chatcore.Session.Open"

	counterparty := s.cfg.Thread.SellerID
	if s.cfg.Self.UserID == s.cfg.Thread.SellerID {
		counterparty = s.cfg.Thread.BuyerID
	}
	roomID, err := s.cfg.API.FetchRoomID(ctx, s.cfg.Quote.RFQID, counterparty)
	if err != nil {
		s.notify.Notify(NotifyError, "could not open the negotiation chat")
		return fmt.Errorf("%s: fetch room: %w", op, err)
	}

	if roomID == 0 {
		err := s.cfg.Emitter.CreateRoom(ctx, rfqchat.CreateRoomV1{
			Quote:        s.cfg.Quote,
			Creator:      s.cfg.Self,
			Counterparty: rfqchat.PartyRef{UserID: counterparty},
		})
		if err != nil {
			s.notify.Notify(NotifyError, "could not create the negotiation room")
			return fmt.Errorf("%s: create room: %w", op, err)
		}
		return nil
	}

	s.mu.Lock()
	s.roomID = roomID
	s.cfg.Thread.RoomID = roomID
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cfg.API.UpdateUnreadMessages(ctx, s.cfg.Self.UserID, roomID); err != nil {
		s.log.With("op", op).Debug("unread reset failed", slog.Any("error", err))
	}
	s.mu.Lock()
	s.cfg.Thread.UnreadMsgCount = 0
	s.mu.Unlock()
	return nil
}

// Run consumes gateway events until the context ends or the source closes.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.cfg.Source.Events():
			if !ok {
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	const op = "chatcore.Session.handle"
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case MessagePosted:
		if !s.sameRoom(e.Room.RoomID) {
			return
		}
		s.transcript.ReconcileIncoming(e.Message)

	case RoomCreated:
		if s.roomID != 0 || e.RFQID != s.cfg.Quote.RFQID {
			return
		}
		s.roomID = e.Room.RoomID
		s.cfg.Thread.RoomID = e.Room.RoomID
		// First history load for the fresh room; empty in practice but the
		// refetch keeps the hub authoritative either way.
		go func() {
			if err := s.Refresh(ctx); err != nil {
				s.log.With("op", op).Error("initial history load failed", slog.Any("error", err))
			}
		}()

	case AttachmentStatus:
		if !s.sameRoom(e.Room.RoomID) {
			return
		}
		if !s.transcript.ApplyAttachmentStatus(e.AttachmentStatusV1) {
			s.log.With("op", op).Debug("attachment status for unknown entry",
				slog.String("unique_id", e.UniqueID))
		}

	case PriceStatus:
		if !s.sameRoom(e.Room.RoomID) {
			return
		}
		productID, changed := s.transcript.ApplyPriceStatus(e.PriceStatusV1)
		if productID == 0 && e.RFQQuoteProductID != 0 {
			// Status for an entry the cache has not seen (history race);
			// the thread line still needs the decision applied.
			productID = e.RFQQuoteProductID
			changed = true
		}
		if changed {
			s.applyPriceDecision(productID, e.Status, e.RequestedPrice)
		}

	case GatewayError:
		// Never mutates the cache; the shell clears the toast explicitly.
		s.notify.Notify(NotifyError, e.Message)
	}
}

// sameRoom gates room-scoped events. A roomless session accepts nothing:
// pushes for other rooms must never reconcile into this transcript while
// the created event is still in flight. Callers hold s.mu.
func (s *Session) sameRoom(roomID int64) bool {
	return s.roomID != 0 && roomID == s.roomID
}

// applyPriceDecision flips the line's effective offer price: the requested
// price on approve, back to the vendor's base offer on reject.
func (s *Session) applyPriceDecision(productID int64, status rfqchat.PriceRequestStatus, requested float64) {
	for i := range s.cfg.Thread.Products {
		p := &s.cfg.Thread.Products[i]
		if p.RFQQuoteProductID != productID {
			continue
		}
		if p.PriceRequest != nil {
			p.PriceRequest.Status = status
		}
		switch status {
		case rfqchat.PriceApproved:
			p.OfferPrice = requested
		case rfqchat.PriceRejected:
			p.OfferPrice = p.BaseOfferPrice
		}
		return
	}
}

// SendText appends a local draft and emits it, fire and forget. Guards run
// before any network call: an empty message with no attachments never leaves
// the client.
func (s *Session) SendText(ctx context.Context, content string, attachments []rfqchat.AttachmentV1) error {
	const op = "chatcore.Session.SendText"

	if content == "" && len(attachments) == 0 {
		s.notify.Notify(NotifyError, "type a message or attach a file first")
		return ErrEmptyMessage
	}

	s.mu.Lock()
	roomID := s.roomID
	if roomID == 0 {
		s.mu.Unlock()
		return ErrNoRoom
	}
	token := s.transcript.AppendLocal(rfqchat.MessageV1{
		IdempotencyToken: uuid.NewString(),
		RoomID:           roomID,
		AuthorID:         s.cfg.Self.UserID,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
		Attachments:      attachments,
	})
	s.mu.Unlock()

	out := rfqchat.SendMessageV1{
		Room:             rfqchat.RoomKey{RoomID: roomID},
		Quote:            s.cfg.Quote,
		Author:           s.cfg.Self,
		Content:          content,
		IdempotencyToken: token,
		Attachments:      attachments,
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cfg.Emitter.SendMessage(ctx, out); err != nil {
		// The draft stays in Sending; repeating the action is the retry.
		s.notify.Notify(NotifyError, "message could not be sent")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ProposePrice emits a price proposal riding a chat message for one line.
func (s *Session) ProposePrice(ctx context.Context, productID int64, price float64, note string) error {
	const op = "chatcore.Session.ProposePrice"

	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return ErrNoRoom
	}

	out := rfqchat.SendMessageV1{
		Room:              rfqchat.RoomKey{RoomID: roomID},
		Quote:             s.cfg.Quote,
		Author:            s.cfg.Self,
		Content:           note,
		IdempotencyToken:  uuid.NewString(),
		RFQQuoteProductID: productID,
		BuyerID:           s.cfg.Thread.BuyerID,
		RequestedPrice:    &price,
	}
	if err := out.Validate(); err != nil {
		s.notify.Notify(NotifyError, "invalid price proposal")
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cfg.Emitter.SendMessage(ctx, out); err != nil {
		s.notify.Notify(NotifyError, "price proposal could not be sent")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DecidePrice accepts or rejects the counter-party's pending price request.
// The flip of the line's offer price happens when the hub's status event
// comes back, not here.
func (s *Session) DecidePrice(ctx context.Context, pr rfqchat.PriceRequestV1, approve bool) error {
	const op = "chatcore.Session.DecidePrice"

	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return ErrNoRoom
	}

	status := rfqchat.PriceRejected
	if approve {
		status = rfqchat.PriceApproved
	}
	err := s.cfg.Emitter.UpdatePriceStatus(ctx, rfqchat.UpdatePriceStatusV1{
		Room:              rfqchat.RoomKey{RoomID: roomID},
		PriceRequestID:    pr.ID,
		Status:            status,
		RFQUserID:         s.cfg.Quote.RFQQuotesUserID,
		RequestedPrice:    pr.RequestedPrice,
		RFQQuoteProductID: pr.RFQQuoteProductID,
	})
	if err != nil {
		s.notify.Notify(NotifyError, "price decision could not be sent")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Refresh pulls the authoritative snapshot and swaps it in. A failure leaves
// the transcript at its last known state.
func (s *Session) Refresh(ctx context.Context) error {
	const op = "chatcore.Session.Refresh"

	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return ErrNoRoom
	}
	msgs, err := s.cfg.API.FetchChatHistory(ctx, roomID)
	if err != nil {
		s.notify.Notify(NotifyError, "could not load chat history")
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.transcript.ReplaceAll(msgs)
	s.mu.Unlock()
	return nil
}

// Upload posts one attachment body; completion arrives later as an
// attachment status event keyed by the unique id.
func (s *Session) Upload(ctx context.Context, att rfqchat.AttachmentV1, content []byte) error {
	const op = "chatcore.Session.Upload"
	if err := s.cfg.API.UploadAttachment(ctx, att, content); err != nil {
		s.notify.Notify(NotifyError, fmt.Sprintf("upload of %s failed", att.FileName))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Checkout validates the gate and builds the checkout event payload for the
// order pipeline. Emitting it is the shell's job.
func (s *Session) Checkout() (apievents.CheckoutInitiatedV1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vt := *s.cfg.Thread
	if !CanCheckout(vt) {
		return apievents.CheckoutInitiatedV1{}, ErrCheckoutNotReady
	}
	entries := s.transcript.Entries()
	overlay := s.selection.Overlay()
	return apievents.CheckoutInitiatedV1{
		RFQID:           s.cfg.Quote.RFQID,
		RFQQuotesUserID: s.cfg.Quote.RFQQuotesUserID,
		BuyerID:         vt.BuyerID,
		SellerID:        vt.SellerID,
		RoomID:          s.roomID,
		ApprovedTotal:   ApprovedProductsTotal(vt),
		SuggestedTotal:  SelectedSuggestedTotal(entries, overlay),
		InitiatedAt:     time.Now().UTC(),
	}, nil
}

// Selection exposes the coordinator for the shell's modal flow.
func (s *Session) Selection() *SelectionCoordinator { return s.selection }

// RoomID reports the active room, 0 while none exists.
func (s *Session) RoomID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Entries is a snapshot of the full transcript, silent entries included.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Entries()
}

// Visible is the renderable transcript snapshot.
func (s *Session) Visible() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Visible()
}

// Thread is a snapshot copy of the vendor thread. The copy is deep: price
// decisions applied after the call never show through it.
func (s *Session) Thread() VendorThread {
	s.mu.Lock()
	defer s.mu.Unlock()
	vt := *s.cfg.Thread
	vt.Products = make([]QuoteProduct, len(s.cfg.Thread.Products))
	for i, p := range s.cfg.Thread.Products {
		if p.PriceRequest != nil {
			pr := *p.PriceRequest
			p.PriceRequest = &pr
		}
		vt.Products[i] = p
	}
	return vt
}
