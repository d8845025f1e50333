package chat

import "encoding/json"

// Event names on the realtime channel.
const (
	// Server -> client
	EventOnlineUsers    = "getOnlineUsers"
	EventNewMessage     = "newMessage"
	EventMessageEdited  = "messageEdited"
	EventMessageDeleted = "messageDeleted"

	// Client -> server. Transient notify only; the authoritative send path
	// is POST /api/messages/send/{peerID}.
	EventSendMessage = "sendMessage"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DeletedPayload identifies a removed message in a messageDeleted event.
type DeletedPayload struct {
	ID string `json:"id"`
}

// NotifyPayload is the body of a client-sent sendMessage event, relayed
// verbatim to the named peer if connected.
type NotifyPayload struct {
	ReceiverID string          `json:"receiverId"`
	Data       json.RawMessage `json:"data"`
}
