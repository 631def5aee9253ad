package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds shared between the transport, the engine and the TUI.
const (
	TransportMessage  = "transport.message"
	TransportStatus   = "transport.status"
	TransportPresence = "transport.presence"
	TransportClosed   = "transport.closed"

	ConnectionChanged = "engine.connection"

	ViewContacts      = "view.contacts"
	ViewConversation  = "view.conversation"
	ViewMessageStatus = "view.message_status"
)
