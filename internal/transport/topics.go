package transport

import (
	"github.com/matheus3301/nexus/internal/api"
)

// Outbound application destinations.
const (
	AddUser        = "/app/user.addUser"
	DisconnectUser = "/app/user.disconnectUser"
	Chat           = "/app/chat"
	ChatRead       = "/app/chat.read"
)

// PresenceTopic is the public presence feed shared by every client.
const PresenceTopic = "/topic/public"

// InboxTopic is the private inbox of user.
func InboxTopic(user string) string {
	return "/user/" + user + "/queue/messages"
}

// StatusTopic is the private delivery-status feed of user.
func StatusTopic(user string) string {
	return "/user/" + user + "/queue/status"
}

// Presence values.
const (
	Online  = "ONLINE"
	Offline = "OFFLINE"
)

// InboundMessage is a chat message pushed to the private inbox.
type InboundMessage struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"senderId"`
	RecipientID string        `json:"recipientId"`
	Content     string        `json:"content"`
	Status      string        `json:"status,omitempty"`
	Timestamp   api.Timestamp `json:"timestamp"`
}

// StatusUpdate is a delivery or read confirmation pushed to the sender.
// ClientID echoes the id supplied on send when the server supports it.
type StatusUpdate struct {
	ID            string        `json:"id"`
	SenderID      string        `json:"senderId,omitempty"`
	RecipientID   string        `json:"recipientId,omitempty"`
	Status        string        `json:"status"`
	ClientID      string        `json:"clientId,omitempty"`
	Timestamp     api.Timestamp `json:"timestamp"`
	ReadTimestamp api.Timestamp `json:"readTimestamp"`
}

// Presence is a public online/offline announcement.
type Presence struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Status   string `json:"status"`
}

// ChatPayload is an outbound chat message.
type ChatPayload struct {
	SenderID    string        `json:"senderId"`
	RecipientID string        `json:"recipientId"`
	Content     string        `json:"content"`
	Timestamp   api.Timestamp `json:"timestamp"`
	ClientID    string        `json:"clientId,omitempty"`
}

// ReadReceipt acknowledges every message from SenderID to RecipientID.
type ReadReceipt struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}
