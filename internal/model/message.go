package model

import "time"

// Message is one entry of the conversation log. Messages are never mutated.
type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	SenderRole    Role      `json:"senderRole"`
	SenderName    string    `json:"senderName"`
	RecipientID   string    `json:"recipientId"`
	RecipientName string    `json:"recipientName"`
	Section       Section   `json:"section"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
}

// Involves reports whether the message has id as one of its endpoints.
func (m Message) Involves(id string) bool {
	return m.SenderID == id || m.RecipientID == id
}

// Counterpart returns the id and display name of the party that is not id.
func (m Message) Counterpart(id string) (string, string) {
	if m.SenderID == id {
		return m.RecipientID, m.RecipientName
	}
	return m.SenderID, m.SenderName
}
