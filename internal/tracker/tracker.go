// Package tracker owns the lifecycle of the messages in the active
// conversation: SENT -> DELIVERED -> READ, never backwards.
package tracker

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvisionalPrefix marks ids allocated locally before the server assigns one.
const ProvisionalPrefix = "temp-"

// clockSkew bounds how far a server timestamp may precede the local send time
// when matching a provisional message against its persisted copy.
const clockSkew = 5 * time.Minute

// Message is a message of the active conversation.
type Message struct {
	ID          string
	ClientID    string
	SenderID    string
	RecipientID string
	Content     string
	Status      Status
	SentAt      time.Time
	ReadAt      time.Time
	Provisional bool
}

// Update is a status event for one message. ClientID and the parties are
// optional; they are used when ID is not known locally.
type Update struct {
	ID          string
	ClientID    string
	SenderID    string
	RecipientID string
	Status      Status
	ReadAt      time.Time
}

// Tracker indexes the messages of one conversation at a time. It is not safe
// for concurrent use; the engine drives it from a single goroutine.
type Tracker struct {
	self  string
	peer  string
	order []*Message
	byID  map[string]*Message

	// pending lists, per peer, self-sent ids not yet READ.
	pending map[string][]string
	// provisional lists unacknowledged local ids, oldest first.
	provisional []string
}

// New creates an empty tracker for the user self.
func New(self string) *Tracker {
	t := &Tracker{self: self}
	t.Reset("")
	return t
}

// Peer returns the conversation the tracker currently holds.
func (t *Tracker) Peer() string {
	return t.peer
}

// Reset drops every entry and scopes the tracker to peer.
func (t *Tracker) Reset(peer string) {
	t.peer = peer
	t.order = nil
	t.byID = make(map[string]*Message)
	t.pending = make(map[string][]string)
	t.provisional = nil
}

// Load replaces the working set with a history fetch for peer. Reloading the
// same peer keeps what the fetch cannot know about yet: local messages the
// server has not persisted, and pushed messages newer than the snapshot.
func (t *Tracker) Load(peer string, history []Message) {
	var carry []Message
	var seen map[string]Message
	if peer == t.peer {
		carry = t.carried(history)
		seen = make(map[string]Message, len(t.order))
		for _, m := range t.order {
			seen[m.ID] = *m
		}
	}
	t.Reset(peer)
	for _, m := range history {
		m.Provisional = false
		p := t.insert(m)
		// A snapshot older than a push must not move a status backwards.
		if prev, ok := seen[p.ID]; ok {
			t.advance(p, prev.Status, prev.ReadAt)
		}
	}
	for _, m := range carry {
		t.insert(m)
	}
}

// carried returns, in display order, the entries missing from history.
// A provisional entry is matched against a self-sent history message with the
// same content, stamped no earlier than the local send (within clockSkew), and
// not already claimed by another entry. Other entries are matched by id.
func (t *Tracker) carried(history []Message) []Message {
	ids := make(map[string]bool, len(history))
	for _, h := range history {
		ids[h.ID] = true
	}
	claimed := make([]bool, len(history))
	var out []Message
	for _, p := range t.order {
		if !p.Provisional {
			if !ids[p.ID] {
				out = append(out, *p)
			}
			continue
		}
		found := false
		for i, h := range history {
			if claimed[i] || h.SenderID != t.self || h.Content != p.Content {
				continue
			}
			if !h.SentAt.IsZero() && h.SentAt.Before(p.SentAt.Add(-clockSkew)) {
				continue
			}
			claimed[i] = true
			found = true
			break
		}
		if !found {
			out = append(out, *p)
		}
	}
	return out
}

// AddLocal records an outgoing message to the active peer with a fresh
// provisional id and status SENT.
func (t *Tracker) AddLocal(content string, at time.Time) Message {
	id := ProvisionalPrefix + uuid.New().String()
	m := Message{
		ID:          id,
		ClientID:    id,
		SenderID:    t.self,
		RecipientID: t.peer,
		Content:     content,
		Status:      Sent,
		SentAt:      at,
		Provisional: true,
	}
	return *t.insert(m)
}

// AddInbound records a pushed message if it belongs to the active
// conversation. It returns false for other conversations.
func (t *Tracker) AddInbound(m Message) bool {
	if t.peer == "" || t.counterpart(m.SenderID, m.RecipientID) != t.peer {
		return false
	}
	t.insert(m)
	return true
}

// Apply processes a status event and returns the messages whose status,
// read time or id changed, in display order.
//
// An update for an unknown id is matched to the oldest unacknowledged local
// message of the active peer and re-keys it to the server id. An unknown READ
// for the active peer also upgrades every pending self-sent message, since
// the server marks a conversation read as a whole.
func (t *Tracker) Apply(u Update) []Message {
	if !u.Status.Valid() {
		return nil
	}
	if m := t.lookup(u); m != nil {
		rekeyed := u.ID != "" && m.ID != u.ID
		if rekeyed {
			t.rekey(m, u.ID)
		}
		if t.advance(m, u.Status, u.ReadAt) || rekeyed {
			return []Message{*m}
		}
		return nil
	}

	if t.peer == "" || t.counterpart(u.SenderID, u.RecipientID) != t.peer {
		return nil
	}
	var changed []*Message
	if m := t.oldestProvisional(u); m != nil {
		t.rekey(m, u.ID)
		t.advance(m, u.Status, u.ReadAt)
		changed = append(changed, m)
	}
	if u.Status == Read {
		changed = append(changed, t.upgradePending(u.ReadAt)...)
	}
	return t.inOrder(changed)
}

// lookup finds the entry an update names, by id or by echoed client id.
func (t *Tracker) lookup(u Update) *Message {
	if m, ok := t.byID[u.ID]; ok {
		return m
	}
	if u.ClientID != "" {
		if m, ok := t.byID[u.ClientID]; ok && m.Provisional {
			return m
		}
	}
	return nil
}

func (t *Tracker) oldestProvisional(u Update) *Message {
	if u.ID == "" || u.ClientID != "" || strings.HasPrefix(u.ID, ProvisionalPrefix) || len(t.provisional) == 0 {
		return nil
	}
	return t.byID[t.provisional[0]]
}

func (t *Tracker) rekey(m *Message, id string) {
	old := m.ID
	delete(t.byID, old)
	m.ID = id
	m.Provisional = false
	t.byID[id] = m
	t.provisional = slices.DeleteFunc(t.provisional, func(p string) bool { return p == old })
	ids := t.pending[t.peer]
	if i := slices.Index(ids, old); i >= 0 {
		ids[i] = id
	}
}

func (t *Tracker) upgradePending(readAt time.Time) []*Message {
	var changed []*Message
	for _, id := range slices.Clone(t.pending[t.peer]) {
		if m, ok := t.byID[id]; ok && t.advance(m, Read, readAt) {
			changed = append(changed, m)
		}
	}
	return changed
}

// advance applies a forward transition and fills a missing read time.
func (t *Tracker) advance(m *Message, next Status, readAt time.Time) bool {
	changed := false
	if m.Status.Allows(next) {
		m.Status = next
		changed = true
	}
	if next == Read && m.Status == Read && m.ReadAt.IsZero() && !readAt.IsZero() {
		m.ReadAt = readAt
		changed = true
	}
	if m.Status == Read {
		t.pending[t.peer] = slices.DeleteFunc(t.pending[t.peer], func(id string) bool { return id == m.ID })
	}
	return changed
}

func (t *Tracker) insert(m Message) *Message {
	if m.ID == "" {
		return &m
	}
	if !m.Status.Valid() {
		m.Status = Sent
	}
	if existing, ok := t.byID[m.ID]; ok {
		t.advance(existing, m.Status, m.ReadAt)
		return existing
	}
	p := &m
	t.order = append(t.order, p)
	t.byID[m.ID] = p
	if m.SenderID == t.self && m.Status != Read {
		t.pending[t.peer] = append(t.pending[t.peer], m.ID)
	}
	if m.Provisional {
		t.provisional = append(t.provisional, m.ID)
	}
	return p
}

func (t *Tracker) inOrder(ms []*Message) []Message {
	if len(ms) == 0 {
		return nil
	}
	set := make(map[*Message]bool, len(ms))
	for _, m := range ms {
		set[m] = true
	}
	out := make([]Message, 0, len(ms))
	for _, m := range t.order {
		if set[m] {
			out = append(out, *m)
		}
	}
	return out
}

// counterpart returns the party of a sender/recipient pair that is not self.
func (t *Tracker) counterpart(sender, recipient string) string {
	switch {
	case sender == t.self:
		return recipient
	case recipient == t.self:
		return sender
	case sender != "":
		return sender
	default:
		return recipient
	}
}

// Messages returns the working set in display order.
func (t *Tracker) Messages() []Message {
	out := make([]Message, len(t.order))
	for i, m := range t.order {
		out[i] = *m
	}
	return out
}

// Get looks a message up by its current id.
func (t *Tracker) Get(id string) (Message, bool) {
	m, ok := t.byID[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Pending returns the self-sent ids to peer that are not READ yet.
func (t *Tracker) Pending(peer string) []string {
	return slices.Clone(t.pending[peer])
}

// HasUnreadFrom reports whether any message from peer is not READ.
func (t *Tracker) HasUnreadFrom(peer string) bool {
	for _, m := range t.order {
		if m.SenderID == peer && m.Status != Read {
			return true
		}
	}
	return false
}

// MarkIncomingRead marks every message from the active peer as READ after a
// read receipt was issued, returning how many changed.
func (t *Tracker) MarkIncomingRead(at time.Time) int {
	n := 0
	for _, m := range t.order {
		if m.SenderID == t.peer && t.advance(m, Read, at) {
			n++
		}
	}
	return n
}
