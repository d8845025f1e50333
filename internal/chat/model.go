package chat

import "time"

// Message is one direct message between two users. At least one of Text
// and Image is present; Image holds an opaque URL handed over by the
// upload layer.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Edited     bool      `json:"edited"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SendRequest is the body of POST /api/messages/send/{peerID}.
type SendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// EditRequest is the body of PATCH /api/messages/{id}.
type EditRequest struct {
	Text string `json:"text"`
}
