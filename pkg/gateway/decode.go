package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/ultrasooq/rfqchat/pkg/chatcore"
	"github.com/ultrasooq/rfqchat/pkg/schemas/common"
	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

// rawEnvelope defers payload decoding until the meta type is known.
type rawEnvelope struct {
	Meta common.Meta     `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// DecodeEvent turns one wire envelope into a typed core event.
// Unknown types and undecodable payloads are poison, not transient errors.
func DecodeEvent(body []byte) (chatcore.Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Meta.Type {
	case rfqchat.TypeMessagePosted:
		var p rfqchat.MessagePostedV1
		if err := decodeData(env, &p); err != nil {
			return nil, err
		}
		return chatcore.MessagePosted{MessagePostedV1: p}, nil

	case rfqchat.TypeRoomCreated:
		var p rfqchat.RoomCreatedV1
		if err := decodeData(env, &p); err != nil {
			return nil, err
		}
		return chatcore.RoomCreated{RoomCreatedV1: p}, nil

	case rfqchat.TypeAttachmentStatus:
		var p rfqchat.AttachmentStatusV1
		if err := decodeData(env, &p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Meta.Type, err)
		}
		return chatcore.AttachmentStatus{AttachmentStatusV1: p}, nil

	case rfqchat.TypePriceStatus:
		var p rfqchat.PriceStatusV1
		if err := decodeData(env, &p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Meta.Type, err)
		}
		return chatcore.PriceStatus{PriceStatusV1: p}, nil

	case rfqchat.TypeGatewayError:
		var p rfqchat.GatewayErrorV1
		if err := decodeData(env, &p); err != nil {
			return nil, err
		}
		return chatcore.GatewayError{GatewayErrorV1: p}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", env.Meta.Type)
}

func decodeData(env rawEnvelope, out any) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Meta.Type, err)
	}
	return nil
}
