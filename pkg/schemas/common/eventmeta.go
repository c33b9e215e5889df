package common

type EventMeta struct {
	EventType  string // e.g. "rfqchat.message.posted.v1"
	Exchange   string // e.g. "rfqchat"
	RoutingKey string // e.g. "rfqchat.message.posted.v1"
}
