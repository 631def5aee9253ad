// Package view projects tracker and contact state into render-ready rows.
// Everything here is pure; the engine publishes the results on the bus and
// the TUI only draws them.
package view

import (
	"time"

	"github.com/matheus3301/nexus/internal/contacts"
	"github.com/matheus3301/nexus/internal/tracker"
)

// EmptyPlaceholder is shown instead of an empty contact list.
const EmptyPlaceholder = "Search for users to start chatting"

const (
	sentMark = "✓"
	seenMark = "✓✓"
	selfName = "You"
)

// Line is one rendered message of the active conversation.
type Line struct {
	ID       string
	Sender   string
	FromSelf bool
	Content  string
	Time     string
	// Indicator is empty for messages sent by the peer.
	Indicator string
	// Highlight is set when the indicator marks a READ message.
	Highlight bool
	Tooltip   string
}

// Conversation is the full projection of the active conversation.
type Conversation struct {
	Peer     string
	PeerName string
	Lines    []Line
}

// StatusChange carries only the lines whose indicator changed.
type StatusChange struct {
	Peer  string
	Lines []Line
}

// ContactRow is one rendered entry of the contact list.
type ContactRow struct {
	PeerID  string
	Name    string
	Preview string
	Time    string
	Badge   int
	Active  bool
	Online  bool
}

// ContactList is the rendered contact list; Placeholder is set when empty.
type ContactList struct {
	Rows        []ContactRow
	Placeholder string
}

// Indicator returns the status mark for a self-sent message.
func Indicator(s tracker.Status) (mark string, highlight bool) {
	switch s {
	case tracker.Read:
		return seenMark, true
	case tracker.Delivered:
		return seenMark, false
	default:
		return sentMark, false
	}
}

// Tooltip describes when a message was sent and, once known, read.
func Tooltip(m tracker.Message, now time.Time) string {
	tip := "Sent: " + FormatTimestamp(m.SentAt, now)
	if m.Status == tracker.Read && !m.ReadAt.IsZero() {
		tip += "\nRead: " + FormatTimestamp(m.ReadAt, now)
	}
	return tip
}

// LineFor projects a single message.
func LineFor(self, peerName string, m tracker.Message, now time.Time) Line {
	l := Line{
		ID:       m.ID,
		Sender:   peerName,
		FromSelf: m.SenderID == self,
		Content:  m.Content,
		Time:     FormatTimestamp(m.SentAt, now),
		Tooltip:  Tooltip(m, now),
	}
	if l.Sender == "" {
		l.Sender = m.SenderID
	}
	if l.FromSelf {
		l.Sender = selfName
		l.Indicator, l.Highlight = Indicator(m.Status)
	}
	return l
}

// Lines projects messages in the order given.
func Lines(self, peerName string, msgs []tracker.Message, now time.Time) []Line {
	out := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, LineFor(self, peerName, m, now))
	}
	return out
}

// Rows projects the contact list. badge supplies the rendered count per peer.
func Rows(self string, cs []contacts.Contact, active string, badge func(peer string) int, now time.Time) ContactList {
	if len(cs) == 0 {
		return ContactList{Placeholder: EmptyPlaceholder}
	}
	rows := make([]ContactRow, 0, len(cs))
	for _, c := range cs {
		r := ContactRow{
			PeerID:  c.PeerID,
			Name:    c.DisplayName,
			Preview: c.LastMessage,
			Time:    FormatContactTime(c.LastMessageTime, now),
			Active:  c.PeerID == active,
			Online:  c.Presence == contacts.Online,
		}
		if r.Name == "" {
			r.Name = c.PeerID
		}
		if r.Preview != "" && c.LastMessageSenderID == self {
			r.Preview = selfName + ": " + r.Preview
		}
		if badge != nil && !r.Active {
			r.Badge = max(badge(c.PeerID), 0)
		}
		rows = append(rows, r)
	}
	return ContactList{Rows: rows}
}

// FormatTimestamp renders a message time: clock only for today, otherwise
// with the date.
func FormatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if sameDay(t, now) {
		return t.Format("15:04")
	}
	return t.Format("Jan 2, 15:04")
}

// FormatContactTime renders the last-activity label of a contact.
func FormatContactTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	switch {
	case sameDay(t, now):
		return t.Format("15:04")
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return t.Format("Jan 2")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
