package chatcore

import (
	"testing"
	"time"

	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

func msg(token string, id int64, content string) rfqchat.MessageV1 {
	return rfqchat.MessageV1{
		ID:               id,
		IdempotencyToken: token,
		RoomID:           7,
		AuthorID:         100,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestReconcileIncoming_MergesDraftByTokenInPlace(t *testing.T) {
	tr := NewTranscript()
	tr.AppendLocal(msg("tok-a", 0, "first"))
	tr.AppendLocal(msg("tok-b", 0, "second"))

	confirmed := msg("tok-a", 41, "first")
	tr.ReconcileIncoming(confirmed)

	if tr.Len() != 2 {
		t.Fatalf("expected length unchanged at 2, got %d", tr.Len())
	}
	entries := tr.Entries()
	if entries[0].IdempotencyToken != "tok-a" {
		t.Fatalf("expected tok-a to keep position 0, got %q", entries[0].IdempotencyToken)
	}
	if entries[0].Delivery != Sent {
		t.Fatalf("expected delivery Sent, got %q", entries[0].Delivery)
	}
	if entries[0].ID != 41 {
		t.Fatalf("expected hub id 41, got %d", entries[0].ID)
	}
	if entries[1].Delivery != Sending {
		t.Fatalf("second draft must stay Sending, got %q", entries[1].Delivery)
	}
}

func TestReconcileIncoming_DuplicateDeliveryIsIdempotent(t *testing.T) {
	tr := NewTranscript()
	tr.AppendLocal(msg("tok-a", 0, "hello"))

	confirmed := msg("tok-a", 41, "hello")
	tr.ReconcileIncoming(confirmed)
	tr.ReconcileIncoming(confirmed)
	tr.ReconcileIncoming(confirmed)

	if tr.Len() != 1 {
		t.Fatalf("duplicate events must not duplicate entries, got %d", tr.Len())
	}
}

func TestReconcileIncoming_CounterPartyAppendsAtEnd(t *testing.T) {
	tr := NewTranscript()
	tr.AppendLocal(msg("tok-a", 0, "mine"))
	tr.ReconcileIncoming(msg("", 50, "theirs"))

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].ID != 50 || entries[1].Delivery != Sent {
		t.Fatalf("counter-party entry must append at end as Sent, got %+v", entries[1])
	}
}

func TestReconcileIncoming_CarriesForwardLocalAttachments(t *testing.T) {
	tr := NewTranscript()
	local := msg("tok-a", 0, "with file")
	local.Attachments = []rfqchat.AttachmentV1{{
		UniqueID: "u-1",
		FileName: "quote.pdf",
		Status:   rfqchat.AttachmentUploading,
	}}
	tr.AppendLocal(local)

	// Hub confirms the message before the upload finished.
	tr.ReconcileIncoming(msg("tok-a", 41, "with file"))

	entries := tr.Entries()
	if len(entries[0].Attachments) != 1 {
		t.Fatalf("expected upload carried forward, got %d attachments", len(entries[0].Attachments))
	}
	if entries[0].Attachments[0].Status != rfqchat.AttachmentUploading {
		t.Fatalf("upload must keep its transient state, got %q", entries[0].Attachments[0].Status)
	}
}

func TestReplaceAll_ReappendsStillSendingDrafts(t *testing.T) {
	tr := NewTranscript()
	tr.AppendLocal(msg("tok-old", 0, "already confirmed"))
	tr.ReconcileIncoming(msg("tok-old", 10, "already confirmed"))
	tr.AppendLocal(msg("tok-new", 0, "in flight"))

	// Snapshot knows the confirmed one but not the in-flight draft.
	tr.ReplaceAll([]rfqchat.MessageV1{
		msg("tok-old", 10, "already confirmed"),
		msg("", 11, "counter-party"),
	})

	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected snapshot plus surviving draft = 3, got %d", len(entries))
	}
	last := entries[2]
	if last.IdempotencyToken != "tok-new" || last.Delivery != Sending {
		t.Fatalf("in-flight draft must survive the refetch, got %+v", last)
	}

	// Its confirmation still merges by token afterwards.
	tr.ReconcileIncoming(msg("tok-new", 12, "in flight"))
	if tr.Len() != 3 {
		t.Fatalf("late confirmation must merge, not append, got %d entries", tr.Len())
	}
	if got := tr.Entries()[2]; got.Delivery != Sent || got.ID != 12 {
		t.Fatalf("expected merged confirmation, got %+v", got)
	}
}

func TestReplaceAll_DropsDraftPresentInSnapshot(t *testing.T) {
	tr := NewTranscript()
	tr.AppendLocal(msg("tok-a", 0, "racing"))

	tr.ReplaceAll([]rfqchat.MessageV1{msg("tok-a", 21, "racing")})

	entries := tr.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}
	if entries[0].Delivery != Sent || entries[0].ID != 21 {
		t.Fatalf("snapshot version must win, got %+v", entries[0])
	}
}

func TestVisible_FiltersSilentStatusEntries(t *testing.T) {
	tr := NewTranscript()
	tr.ReconcileIncoming(msg("", 1, "real message"))

	silent := msg("", 2, "")
	silent.PriceRequest = &rfqchat.PriceRequestV1{
		ID: 5, RequestedPrice: 90, RFQQuoteProductID: 3, Status: rfqchat.PricePending,
	}
	tr.ReconcileIncoming(silent)

	empty := msg("", 3, "")
	tr.ReconcileIncoming(empty)

	if tr.Len() != 3 {
		t.Fatalf("silent entries stay in the cache, got %d", tr.Len())
	}
	visible := tr.Visible()
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible entries, got %d", len(visible))
	}
	for _, e := range visible {
		if e.ID == 2 {
			t.Fatalf("silent status entry leaked into the transcript")
		}
	}
}

func TestApplyAttachmentStatus_ConvergesSingleAttachment(t *testing.T) {
	tr := NewTranscript()
	local := msg("tok-a", 0, "two files")
	local.Attachments = []rfqchat.AttachmentV1{
		{UniqueID: "u-1", FileName: "a.pdf", Status: rfqchat.AttachmentUploading},
		{UniqueID: "u-2", FileName: "b.pdf", Status: rfqchat.AttachmentUploading},
	}
	tr.AppendLocal(local)

	ok := tr.ApplyAttachmentStatus(rfqchat.AttachmentStatusV1{
		UniqueID:         "u-1",
		IdempotencyToken: "tok-a",
		Status:           rfqchat.AttachmentDelivered,
		PresignedURL:     "https://cdn/a.pdf",
	})
	if !ok {
		t.Fatalf("expected entry match")
	}

	e := tr.Entries()[0]
	if e.Content != "two files" {
		t.Fatalf("message content must be untouched, got %q", e.Content)
	}
	if e.Attachments[0].Status != rfqchat.AttachmentDelivered || e.Attachments[0].PresignedURL == "" {
		t.Fatalf("u-1 must be delivered with url, got %+v", e.Attachments[0])
	}
	if e.Attachments[1].Status != rfqchat.AttachmentUploading {
		t.Fatalf("u-2 must be untouched, got %+v", e.Attachments[1])
	}
}

func TestApplyAttachmentStatus_AppendsCounterPartyAttachment(t *testing.T) {
	tr := NewTranscript()
	tr.ReconcileIncoming(msg("", 60, "their message"))

	ok := tr.ApplyAttachmentStatus(rfqchat.AttachmentStatusV1{
		UniqueID:  "u-9",
		MessageID: 60,
		Status:    rfqchat.AttachmentDelivered,
		FileName:  "photo.jpg",
		FilePath:  "/files/photo.jpg",
	})
	if !ok {
		t.Fatalf("expected match by message id")
	}
	e := tr.Entries()[0]
	if len(e.Attachments) != 1 || e.Attachments[0].UniqueID != "u-9" {
		t.Fatalf("expected appended attachment, got %+v", e.Attachments)
	}
}

func TestApplyAttachmentStatus_UnknownEntry(t *testing.T) {
	tr := NewTranscript()
	if tr.ApplyAttachmentStatus(rfqchat.AttachmentStatusV1{UniqueID: "u-1", MessageID: 99}) {
		t.Fatalf("expected no match on empty transcript")
	}
}

func TestSnapshots_DoNotAliasCacheInternals(t *testing.T) {
	tr := NewTranscript()
	m := msg("tok-a", 70, "with file")
	m.Attachments = []rfqchat.AttachmentV1{
		{UniqueID: "u-1", FileName: "a.pdf", Status: rfqchat.AttachmentUploading},
	}
	m.PriceRequest = &rfqchat.PriceRequestV1{
		ID: 8, RequestedPrice: 120, RFQQuoteProductID: 4, Status: rfqchat.PricePending,
	}
	tr.ReconcileIncoming(m)

	snap := tr.Entries()

	tr.ApplyAttachmentStatus(rfqchat.AttachmentStatusV1{
		UniqueID: "u-1", MessageID: 70,
		Status: rfqchat.AttachmentDelivered, FilePath: "/files/a.pdf",
	})
	tr.ApplyPriceStatus(rfqchat.PriceStatusV1{
		MessageID: 70, PriceRequestID: 8, Status: rfqchat.PriceApproved,
	})

	if got := snap[0].Attachments[0].Status; got != rfqchat.AttachmentUploading {
		t.Fatalf("patch leaked into an earlier snapshot: attachment %q", got)
	}
	if got := snap[0].PriceRequest.Status; got != rfqchat.PricePending {
		t.Fatalf("patch leaked into an earlier snapshot: price %q", got)
	}

	cur := tr.Entries()[0]
	if cur.Attachments[0].Status != rfqchat.AttachmentDelivered {
		t.Fatalf("fresh snapshot must see the attachment patch, got %+v", cur.Attachments[0])
	}
	if cur.PriceRequest.Status != rfqchat.PriceApproved {
		t.Fatalf("fresh snapshot must see the price patch, got %+v", cur.PriceRequest)
	}
}

func TestApplyPriceStatus_ResolvedIsTerminal(t *testing.T) {
	tr := NewTranscript()
	m := msg("", 70, "")
	m.PriceRequest = &rfqchat.PriceRequestV1{
		ID: 8, RequestedPrice: 120, RFQQuoteProductID: 4, Status: rfqchat.PricePending,
	}
	tr.ReconcileIncoming(m)

	productID, ok := tr.ApplyPriceStatus(rfqchat.PriceStatusV1{
		MessageID: 70, PriceRequestID: 8, Status: rfqchat.PriceApproved,
	})
	if !ok || productID != 4 {
		t.Fatalf("expected approval on product 4, got ok=%v product=%d", ok, productID)
	}

	// A conflicting later status must not flip a resolved request.
	_, ok = tr.ApplyPriceStatus(rfqchat.PriceStatusV1{
		MessageID: 70, PriceRequestID: 8, Status: rfqchat.PriceRejected,
	})
	if ok {
		t.Fatalf("resolved request must be terminal")
	}
	if got := *tr.Entries()[0].PriceRequest; got.Status != rfqchat.PriceApproved {
		t.Fatalf("status flipped after resolution: %+v", got)
	}
}
