package serialmux

import "strings"

const (
	EventTypeFrame   = "frame"
	EventTypeAck     = "ack"
	EventTypeNack    = "nack"
	EventTypeVersion = "version"
	EventTypeSerial  = "serial"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects one adapter line and returns its event type.
func ClassifyPayload(payload string) string {
	if payload == "" {
		return EventTypeAck
	}
	switch payload[0] {
	case 't', 'T', 'r', 'R':
		return EventTypeFrame
	case '\a':
		return EventTypeNack
	case 'z', 'Z':
		// transmit acknowledgement from adapters that confirm each frame
		if len(payload) == 1 {
			return EventTypeAck
		}
	case 'V', 'v':
		return EventTypeVersion
	case 'N':
		return EventTypeSerial
	case 'F':
		return EventTypeStatus
	}
	return EventTypeUnknown
}

// describeLine renders control lines readably for the admin tail.
func describeLine(payload string) string {
	switch ClassifyPayload(payload) {
	case EventTypeAck:
		return "<ack" + strings.ToLower(payload) + ">"
	case EventTypeNack:
		return "<nack>"
	}
	return payload
}
