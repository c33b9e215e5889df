package rfqchat

import "errors"

type ValidationIssue struct{ Field, Reason string }

type ValidationError struct{ Issues []ValidationIssue }

var ErrInvalidContract = errors.New("invalid contract")

func (e *ValidationError) Error() string { return ErrInvalidContract.Error() }
func (e *ValidationError) add(f, r string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: f, Reason: r})
}
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidContract }

func (e *ValidationError) orNil() error {
	if len(e.Issues) > 0 {
		return e
	}
	return nil
}

func (m *SendMessageV1) Validate() error {
	ve := &ValidationError{}
	if m.IdempotencyToken == "" {
		ve.add("idempotency_token", "required")
	}
	if m.Room.RoomID == 0 {
		ve.add("room.room_id", "required")
	}
	if m.Author.UserID == 0 {
		ve.add("author.user_id", "required")
	}
	if m.Content == "" && len(m.Attachments) == 0 && m.RequestedPrice == nil {
		ve.add("content", "empty message: need content, attachments, or a price")
	}
	if m.RequestedPrice != nil {
		if *m.RequestedPrice <= 0 {
			ve.add("requested_price", "must be positive")
		}
		if m.RFQQuoteProductID == 0 {
			ve.add("rfq_quote_product_id", "required for price proposals")
		}
	}
	return ve.orNil()
}

func (e *MessagePostedV1) Validate() error {
	ve := &ValidationError{}
	if e.Room.RoomID == 0 {
		ve.add("room.room_id", "required")
	}
	if e.Message.AuthorID == 0 {
		ve.add("message.author_id", "required")
	}
	// Counter-party entries may carry no token; locally-authored ones must.
	return ve.orNil()
}

func (e *AttachmentStatusV1) Validate() error {
	ve := &ValidationError{}
	if e.UniqueID == "" {
		ve.add("unique_id", "required")
	}
	if e.Status == "" {
		ve.add("status", "required")
	}
	if e.MessageID == 0 && e.IdempotencyToken == "" {
		ve.add("message_id/idempotency_token", "one correlation key is required")
	}
	if e.Status == AttachmentDelivered && e.PresignedURL == "" && e.FilePath == "" {
		ve.add("presigned_url/file_path", "required once delivered")
	}
	return ve.orNil()
}

func (e *PriceStatusV1) Validate() error {
	ve := &ValidationError{}
	if e.MessageID == 0 {
		ve.add("message_id", "required")
	}
	if e.PriceRequestID == 0 {
		ve.add("price_request_id", "required")
	}
	switch e.Status {
	case PricePending, PriceApproved, PriceRejected:
	default:
		ve.add("status", "unknown")
	}
	return ve.orNil()
}
