package api

import (
	"context"
	"net/http"
)

// Contacts returns the ordered contacts of self, most recent activity first.
func (c *Client) Contacts(ctx context.Context, self string) ([]Contact, error) {
	var out []Contact
	if err := c.doRequest(ctx, http.MethodGet, "/contacts/"+pathEscape(self), nil, &out); err != nil {
		return nil, fetchErr("fetch contacts", err)
	}
	return out, nil
}

// Messages returns the full conversation between self and peer, oldest first.
func (c *Client) Messages(ctx context.Context, self, peer string) ([]Message, error) {
	var out []Message
	if err := c.doRequest(ctx, http.MethodGet, "/messages/"+pathEscape(self, peer), nil, &out); err != nil {
		return nil, fetchErr("fetch messages", err)
	}
	return out, nil
}

// Undelivered returns the backlog persisted for self while it was offline.
// The server marks them delivered as a side effect.
func (c *Client) Undelivered(ctx context.Context, self string) ([]Message, error) {
	var out []Message
	if err := c.doRequest(ctx, http.MethodGet, "/messages/undelivered/"+pathEscape(self), nil, &out); err != nil {
		return nil, fetchErr("fetch undelivered", err)
	}
	return out, nil
}

// MarkRead marks every message from sender to recipient as read over REST.
func (c *Client) MarkRead(ctx context.Context, sender, recipient string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/messages/read/"+pathEscape(sender, recipient), nil, nil); err != nil {
		return fetchErr("mark read", err)
	}
	return nil
}
