package chat

import (
	"context"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/transport"
)

// Channel is the publish side of an established real-time connection.
type Channel interface {
	Publish(destination string, payload any) error
	Disconnect() error
}

// DialFunc opens the real-time connection for id.
type DialFunc func(ctx context.Context, id session.Identity) (Channel, error)

// DialTransport adapts a transport dialer.
func DialTransport(d *transport.Dialer) DialFunc {
	return func(ctx context.Context, id session.Identity) (Channel, error) {
		conn, err := d.Connect(ctx, id)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// History is the REST side the engine reconciles against.
type History interface {
	Contacts(ctx context.Context, self string) ([]api.Contact, error)
	Messages(ctx context.Context, self, peer string) ([]api.Message, error)
	Undelivered(ctx context.Context, self string) ([]api.Message, error)
	MarkRead(ctx context.Context, sender, recipient string) error
}

// PeerStore persists the active conversation across restarts.
type PeerStore interface {
	SetLastPeer(peer string) error
}
