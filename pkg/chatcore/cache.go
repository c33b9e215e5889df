package chatcore

import (
	"github.com/google/uuid"

	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

// -----------------------------------------------------------------------------
// Transcript (reconciliation cache)
// -----------------------------------------------------------------------------

// Transcript is the ordered entry log for the currently open room. Entries
// keep the order they were appended or merged in; the cache never re-sorts
// by timestamp, so out-of-order gateway delivery can place an entry later
// than its logical creation time. That is an accepted approximation.
//
// Not safe for concurrent use; the owning session serializes access.
type Transcript struct {
	entries []*Entry
	byToken map[string]int
	byMsgID map[int64]int
}

func NewTranscript() *Transcript {
	return &Transcript{
		byToken: make(map[string]int),
		byMsgID: make(map[int64]int),
	}
}

func (t *Transcript) Len() int { return len(t.entries) }

// Entries returns a snapshot copy of the full log, silent entries included.
// The copy is deep: later status patches never show through it.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Visible returns the renderable transcript: silent backend-driven status
// updates (no content, only a price request or suggestions) are filtered at
// read time but stay in the cache for derived calculations.
func (t *Transcript) Visible() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Silent() {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	return out
}

func cloneEntry(e *Entry) Entry {
	out := *e
	if e.Attachments != nil {
		out.Attachments = append([]rfqchat.AttachmentV1(nil), e.Attachments...)
	}
	if e.SuggestedProducts != nil {
		out.SuggestedProducts = append([]rfqchat.SuggestedProductV1(nil), e.SuggestedProducts...)
	}
	if e.PriceRequest != nil {
		pr := *e.PriceRequest
		out.PriceRequest = &pr
	}
	return out
}

// AppendLocal inserts a locally-authored draft at the end with delivery state
// Sending. A fresh idempotency token is generated when the message carries
// none. Returns the stored entry's token.
func (t *Transcript) AppendLocal(msg rfqchat.MessageV1) string {
	if msg.IdempotencyToken == "" {
		msg.IdempotencyToken = uuid.NewString()
	}
	e := &Entry{MessageV1: msg, Delivery: Sending}
	t.index(e, len(t.entries))
	t.entries = append(t.entries, e)
	return msg.IdempotencyToken
}

// ReconcileIncoming merges a hub-confirmed message into the log. A matching
// idempotency token replaces the draft in place, position preserved, and
// local attachments the hub does not know about yet are carried forward
// (their uploads continue independently). Anything else — counter-party
// entries, out-of-order arrivals — is appended at the end. Idempotent
// against duplicate delivery of the same token.
func (t *Transcript) ReconcileIncoming(msg rfqchat.MessageV1) {
	if i, ok := t.lookup(msg); ok {
		local := t.entries[i]
		merged := &Entry{MessageV1: msg, Delivery: Sent}
		merged.Attachments = mergeAttachments(local.Attachments, msg.Attachments)
		t.entries[i] = merged
		t.index(merged, i)
		return
	}
	e := &Entry{MessageV1: msg, Delivery: Sent}
	t.index(e, len(t.entries))
	t.entries = append(t.entries, e)
}

// ReplaceAll swaps in a full authoritative snapshot (post-mutation refetch).
// Still-Sending drafts whose tokens are absent from the snapshot are
// re-appended rather than silently dropped: their confirmations are still
// in flight and will merge by token as usual.
func (t *Transcript) ReplaceAll(msgs []rfqchat.MessageV1) {
	var pending []*Entry
	fresh := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if m.IdempotencyToken != "" {
			fresh[m.IdempotencyToken] = true
		}
	}
	for _, e := range t.entries {
		if e.Delivery == Sending && !fresh[e.IdempotencyToken] {
			pending = append(pending, e)
		}
	}

	t.entries = t.entries[:0]
	t.byToken = make(map[string]int, len(msgs))
	t.byMsgID = make(map[int64]int, len(msgs))
	for _, m := range msgs {
		e := &Entry{MessageV1: m, Delivery: Sent}
		t.index(e, len(t.entries))
		t.entries = append(t.entries, e)
	}
	for _, e := range pending {
		t.index(e, len(t.entries))
		t.entries = append(t.entries, e)
	}
}

// ApplyAttachmentStatus updates one attachment in place, located through the
// owning entry by idempotency token (own upload) or by hub message id
// (counter-party attachment landing after its message). An attachment the
// entry does not carry yet is appended. Reports whether an entry matched.
func (t *Transcript) ApplyAttachmentStatus(ev rfqchat.AttachmentStatusV1) bool {
	var e *Entry
	if ev.IdempotencyToken != "" {
		if i, ok := t.byToken[ev.IdempotencyToken]; ok {
			e = t.entries[i]
		}
	}
	if e == nil && ev.MessageID != 0 {
		if i, ok := t.byMsgID[ev.MessageID]; ok {
			e = t.entries[i]
		}
	}
	if e == nil {
		return false
	}

	for i := range e.Attachments {
		if e.Attachments[i].UniqueID != ev.UniqueID {
			continue
		}
		a := &e.Attachments[i]
		a.Status = ev.Status
		if ev.FilePath != "" {
			a.FilePath = ev.FilePath
		}
		if ev.PresignedURL != "" {
			a.PresignedURL = ev.PresignedURL
		}
		return true
	}
	e.Attachments = append(e.Attachments, rfqchat.AttachmentV1{
		UniqueID:     ev.UniqueID,
		FileName:     ev.FileName,
		FileType:     ev.FileType,
		Status:       ev.Status,
		FilePath:     ev.FilePath,
		PresignedURL: ev.PresignedURL,
	})
	return true
}

// ApplyPriceStatus patches the nested price request of the entry carrying it.
// A resolved request is terminal: a conflicting later status is ignored.
// Returns the affected product line id so callers can recompute derived
// offer state, and whether anything changed.
func (t *Transcript) ApplyPriceStatus(ev rfqchat.PriceStatusV1) (int64, bool) {
	i, ok := t.byMsgID[ev.MessageID]
	if !ok {
		return 0, false
	}
	pr := t.entries[i].PriceRequest
	if pr == nil || pr.ID != ev.PriceRequestID {
		return 0, false
	}
	if pr.Resolved() {
		return pr.RFQQuoteProductID, pr.Status == ev.Status
	}
	pr.Status = ev.Status
	return pr.RFQQuoteProductID, true
}

func (t *Transcript) lookup(msg rfqchat.MessageV1) (int, bool) {
	if msg.IdempotencyToken == "" {
		return 0, false
	}
	i, ok := t.byToken[msg.IdempotencyToken]
	return i, ok
}

func (t *Transcript) index(e *Entry, i int) {
	if e.IdempotencyToken != "" {
		t.byToken[e.IdempotencyToken] = i
	}
	if e.ID != 0 {
		t.byMsgID[e.ID] = i
	}
}

// mergeAttachments keeps the hub's view and carries forward local uploads the
// hub has not acknowledged yet.
func mergeAttachments(local, confirmed []rfqchat.AttachmentV1) []rfqchat.AttachmentV1 {
	if len(local) == 0 {
		return confirmed
	}
	known := make(map[string]bool, len(confirmed))
	for _, a := range confirmed {
		known[a.UniqueID] = true
	}
	out := confirmed
	for _, a := range local {
		if !known[a.UniqueID] {
			out = append(out, a)
		}
	}
	return out
}
