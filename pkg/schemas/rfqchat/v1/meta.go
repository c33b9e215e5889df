package rfqchat

import "github.com/ultrasooq/rfqchat/pkg/schemas/common"

const (
	Exchange = "rfqchat"

	TypeMessagePosted    = "rfqchat.message.posted.v1"
	TypeRoomCreated      = "rfqchat.room.created.v1"
	TypeAttachmentStatus = "rfqchat.attachment.status.v1"
	TypePriceStatus      = "rfqchat.price.status.v1"
	TypeGatewayError     = "rfqchat.gateway.error.v1"

	TypeSendMessage       = "rfqchat.message.send.v1"
	TypeCreateRoom        = "rfqchat.room.create.v1"
	TypeUpdatePriceStatus = "rfqchat.price.update.v1"
)

var (
	MessagePostedMeta = common.EventMeta{
		EventType:  TypeMessagePosted,
		Exchange:   Exchange,
		RoutingKey: TypeMessagePosted,
	}
	RoomCreatedMeta = common.EventMeta{
		EventType:  TypeRoomCreated,
		Exchange:   Exchange,
		RoutingKey: TypeRoomCreated,
	}
	AttachmentStatusMeta = common.EventMeta{
		EventType:  TypeAttachmentStatus,
		Exchange:   Exchange,
		RoutingKey: TypeAttachmentStatus,
	}
	PriceStatusMeta = common.EventMeta{
		EventType:  TypePriceStatus,
		Exchange:   Exchange,
		RoutingKey: TypePriceStatus,
	}
	GatewayErrorMeta = common.EventMeta{
		EventType:  TypeGatewayError,
		Exchange:   Exchange,
		RoutingKey: TypeGatewayError,
	}
)
