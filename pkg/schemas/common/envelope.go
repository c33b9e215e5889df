package common

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type GenericEnvelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// Wrap frames an event payload with fresh metadata for the given type string.
func Wrap[T any](eventType, producer string, data T) GenericEnvelope[T] {
	return GenericEnvelope[T]{
		Meta: NewMeta(eventType, producer),
		Data: data,
	}
}
