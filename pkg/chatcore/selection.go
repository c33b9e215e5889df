package chatcore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type SelectionState string

const (
	SelectionNone         SelectionState = "none"
	SelectionModalOpen    SelectionState = "modal_open"
	SelectionPendingLocal SelectionState = "pending_local"
	SelectionSending      SelectionState = "sending"
	SelectionConfirmed    SelectionState = "confirmed"
)

var (
	ErrSendInFlight  = errors.New("selection update already in flight")
	ErrNothingToSend = errors.New("no pending selection changes")
	ErrModalNotOpen  = errors.New("selection modal is not open")
)

// SelectionDeps are the coordinator's injected collaborators. Commit posts
// the absolute selected set for one line; SendNote drops one human-readable
// chat message after a batch; Refetch pulls the authoritative snapshot back
// into the transcript.
type SelectionDeps struct {
	Commit   func(ctx context.Context, req SelectSuggestionsRequest) error
	SendNote func(ctx context.Context, content string) error
	Refetch  func(ctx context.Context) error
	Notify   Notifier
}

// SelectionCoordinator batches buyer-side "choose alternative product"
// actions into a pending local overlay, applied atomically through one
// explicit SendUpdate instead of one request per click.
//
// Per-line state machine: none → modal_open → pending_local → sending →
// confirmed; cancel discards back to none, a failed send reverts to
// pending_local with the overlay intact so retry stays possible.
type SelectionCoordinator struct {
	deps            SelectionDeps
	rfqQuotesUserID int64

	states  map[int64]SelectionState
	overlay SelectionOverlay

	mu       sync.Mutex
	inFlight bool
}

func NewSelectionCoordinator(rfqQuotesUserID int64, deps SelectionDeps) *SelectionCoordinator {
	if deps.Notify == nil {
		deps.Notify = NopNotifier{}
	}
	return &SelectionCoordinator{
		deps:            deps,
		rfqQuotesUserID: rfqQuotesUserID,
		states:          make(map[int64]SelectionState),
		overlay:         make(SelectionOverlay),
	}
}

func (c *SelectionCoordinator) State(productID int64) SelectionState {
	if s, ok := c.states[productID]; ok {
		return s
	}
	return SelectionNone
}

// Overlay returns a snapshot copy of the pending selections.
func (c *SelectionCoordinator) Overlay() SelectionOverlay {
	out := make(SelectionOverlay, len(c.overlay))
	for pid, ids := range c.overlay {
		out[pid] = append([]int64(nil), ids...)
	}
	return out
}

// Open snapshots the currently selected suggestion ids for the line as the
// modal's pre-checked set.
func (c *SelectionCoordinator) Open(entries []Entry, productID int64) []int64 {
	c.states[productID] = SelectionModalOpen
	if pending, ok := c.overlay[productID]; ok {
		return append([]int64(nil), pending...)
	}
	var ids []int64
	for _, s := range SuggestionsFor(entries, nil, productID) {
		if s.IsSelectedByBuyer {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Confirm stores the chosen id set in the overlay without contacting the
// hub; many lines batch into one later SendUpdate. An empty set is a valid
// explicit deselect-all.
func (c *SelectionCoordinator) Confirm(productID int64, chosen []int64) error {
	if c.State(productID) != SelectionModalOpen {
		return ErrModalNotOpen
	}
	c.overlay[productID] = append([]int64(nil), chosen...)
	c.states[productID] = SelectionPendingLocal
	return nil
}

// Cancel discards the line's pending choice without contacting the hub.
func (c *SelectionCoordinator) Cancel(productID int64) {
	delete(c.overlay, productID)
	c.states[productID] = SelectionNone
}

// SendUpdate commits every overlaid line sequentially (one call per line;
// parallel commits race on the hub side for the same room), then sends one
// notification chat message and refetches the full history. Failure keeps
// the overlay so the whole batch can be retried; a second SendUpdate while
// one is in flight is rejected.
func (c *SelectionCoordinator) SendUpdate(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if len(c.overlay) == 0 {
		return ErrNothingToSend
	}

	lines := make([]int64, 0, len(c.overlay))
	for pid := range c.overlay {
		lines = append(lines, pid)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })

	for _, pid := range lines {
		c.states[pid] = SelectionSending
	}

	fail := func(err error, what string) error {
		for _, pid := range lines {
			c.states[pid] = SelectionPendingLocal
		}
		c.deps.Notify.Notify(NotifyError, fmt.Sprintf("could not send product selection: %v", err))
		return fmt.Errorf("%s: %w", what, err)
	}

	for _, pid := range lines {
		// Deselect-all lines commit an explicit empty set, never nil.
		req := SelectSuggestionsRequest{
			SelectedSuggestionIDs: append([]int64{}, c.overlay[pid]...),
			RFQQuoteProductID:     pid,
			RFQQuotesUserID:       c.rfqQuotesUserID,
		}
		if err := c.deps.Commit(ctx, req); err != nil {
			return fail(err, "commit selection")
		}
	}

	if err := c.deps.SendNote(ctx, "Product selection has been updated."); err != nil {
		return fail(err, "send selection note")
	}

	c.overlay = make(SelectionOverlay)
	for _, pid := range lines {
		c.states[pid] = SelectionConfirmed
	}

	// The snapshot is the authoritative resync after the commits; a failed
	// fetch leaves the transcript at its last known state, non-fatal.
	if err := c.deps.Refetch(ctx); err != nil {
		c.deps.Notify.Notify(NotifyError, fmt.Sprintf("could not refresh chat history: %v", err))
	}
	return nil
}
