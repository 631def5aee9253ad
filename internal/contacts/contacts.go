// Package contacts keeps the ordered list of conversation partners with their
// presence, last-message preview and unread badges.
package contacts

import (
	"slices"
	"time"

	"github.com/matheus3301/nexus/internal/api"
	"go.uber.org/zap"
)

// Presence is a peer's last announced state.
type Presence string

const (
	Online  Presence = "ONLINE"
	Offline Presence = "OFFLINE"
)

// Contact is one conversation partner.
type Contact struct {
	PeerID              string
	DisplayName         string
	Presence            Presence
	LastMessage         string
	LastMessageTime     time.Time
	LastMessageSenderID string
	// UnreadCount is the server's count of messages from the peer not yet READ.
	UnreadCount int
	// Local marks a peer opened from search that the server does not list yet.
	Local bool
}

// FromAPI converts a contacts-endpoint entry.
func FromAPI(c api.Contact) Contact {
	p := Offline
	if c.Status == string(Online) {
		p = Online
	}
	return Contact{
		PeerID:              c.Username,
		DisplayName:         c.FullName,
		Presence:            p,
		LastMessage:         c.LastMessage,
		LastMessageTime:     c.LastMessageTime.Time,
		LastMessageSenderID: c.LastMessageSenderID,
		UnreadCount:         max(c.UnreadCount, 0),
	}
}

// Synchronizer owns the contact list. The list is replaced wholesale by each
// contacts fetch in server order; it is never re-sorted locally. It is not
// safe for concurrent use.
type Synchronizer struct {
	list    []Contact
	active  string
	seeds   map[string]int
	issued  uint64
	applied uint64
	logger  *zap.Logger
}

// New creates an empty synchronizer.
func New(logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		seeds:  make(map[string]int),
		logger: logger,
	}
}

// NextToken issues the token for a new contacts fetch.
func (s *Synchronizer) NextToken() uint64 {
	s.issued++
	return s.issued
}

// Replace installs a fetched list if its token is newer than the last applied
// one, keeping local contacts the server does not list yet at the head.
// It reports whether the list was applied.
func (s *Synchronizer) Replace(token uint64, list []Contact) bool {
	if token <= s.applied {
		s.logger.Debug("discarding stale contacts", zap.Uint64("token", token), zap.Uint64("applied", s.applied))
		return false
	}
	s.applied = token

	var locals []Contact
	for _, c := range s.list {
		if c.Local && !slices.ContainsFunc(list, func(n Contact) bool { return n.PeerID == c.PeerID }) {
			locals = append(locals, c)
		}
	}
	next := make([]Contact, 0, len(locals)+len(list))
	next = append(next, locals...)
	for _, c := range list {
		c.Local = false
		c.UnreadCount = max(c.UnreadCount, 0)
		if c.PeerID == s.active {
			c.UnreadCount = 0
		}
		next = append(next, c)
	}
	s.list = next
	return true
}

// Seed applies backlog counts per sender. Counts for peers missing from the
// list are dropped and returned.
func (s *Synchronizer) Seed(counts map[string]int) (dropped []string) {
	for peer, n := range counts {
		if n <= 0 {
			continue
		}
		if _, ok := s.index(peer); !ok {
			dropped = append(dropped, peer)
			s.logger.Info("backlog count dropped, contact not listed", zap.String("peer", peer), zap.Int("count", n))
			continue
		}
		if peer == s.active {
			continue
		}
		s.seeds[peer] += n
	}
	slices.Sort(dropped)
	return dropped
}

// SetActive marks peer as the displayed conversation and clears its badge.
// Fetches issued before the switch are treated as stale so they cannot
// resurrect the cleared count.
func (s *Synchronizer) SetActive(peer string) {
	s.active = peer
	if peer == "" {
		return
	}
	delete(s.seeds, peer)
	if i, ok := s.index(peer); ok {
		s.list[i].UnreadCount = 0
	}
	s.applied = max(s.applied, s.issued)
}

// Active returns the displayed conversation, or "".
func (s *Synchronizer) Active() string {
	return s.active
}

// Touch makes sure peer is listed, adding a local entry at the head when the
// server does not know the conversation yet.
func (s *Synchronizer) Touch(peer, displayName string) {
	if _, ok := s.index(peer); ok {
		return
	}
	if displayName == "" {
		displayName = peer
	}
	c := Contact{PeerID: peer, DisplayName: displayName, Presence: Offline, Local: true}
	s.list = append([]Contact{c}, s.list...)
}

// Badge returns the unread badge for peer: 0 while it is active, otherwise
// the larger of the server count and the seeded backlog count.
func (s *Synchronizer) Badge(peer string) int {
	if peer == s.active {
		return 0
	}
	i, ok := s.index(peer)
	if !ok {
		return 0
	}
	return max(s.list[i].UnreadCount, s.seeds[peer], 0)
}

// Contacts returns the list in display order.
func (s *Synchronizer) Contacts() []Contact {
	return slices.Clone(s.list)
}

// Get returns the contact for peer.
func (s *Synchronizer) Get(peer string) (Contact, bool) {
	i, ok := s.index(peer)
	if !ok {
		return Contact{}, false
	}
	return s.list[i], true
}

func (s *Synchronizer) index(peer string) (int, bool) {
	i := slices.IndexFunc(s.list, func(c Contact) bool { return c.PeerID == peer })
	return i, i >= 0
}
