package events

import "github.com/ultrasooq/rfqchat/pkg/schemas/common"

const (
	EventType  = "rfq.checkout.initiated.v1"
	Exchange   = "api.events"
	RoutingKey = "rfq.checkout.initiated.v1"
)

var CheckoutInitiatedMeta = common.EventMeta{
	EventType:  EventType,
	Exchange:   Exchange,
	RoutingKey: RoutingKey,
}
