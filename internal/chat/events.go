package chat

import (
	"time"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/contacts"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/tracker"
	"github.com/matheus3301/nexus/internal/transport"
	"github.com/matheus3301/nexus/internal/view"
	"go.uber.org/zap"
)

func (e *Engine) handleEvent(evt bus.Event) {
	if e.stopping {
		return
	}
	switch evt.Kind {
	case bus.TransportMessage:
		if m, ok := evt.Payload.(transport.InboundMessage); ok {
			e.onInbound(m)
		}
	case bus.TransportStatus:
		if u, ok := evt.Payload.(transport.StatusUpdate); ok {
			e.onStatus(u)
		}
	case bus.TransportPresence:
		// Presence never edits a contact directly; the refetch carries it.
		e.refresh.Trigger()
	case bus.TransportClosed:
		e.onClosed(evt.Payload)
	}
}

func (e *Engine) onInbound(m transport.InboundMessage) {
	e.metrics.Received()
	msg := fromInbound(m)
	if e.tracker.AddInbound(msg) {
		e.publishConversation()
		if msg.SenderID == e.contacts.Active() {
			e.markRead(msg.SenderID)
		}
	}
	e.refresh.Trigger()
}

func (e *Engine) onStatus(u transport.StatusUpdate) {
	st, ok := tracker.ParseStatus(u.Status)
	if !ok {
		e.logger.Warn("ignoring status push", zap.String("id", u.ID), zap.String("status", u.Status))
		e.metrics.StatusUpdate(0)
		return
	}
	readAt := u.ReadTimestamp.Time
	if st == tracker.Read && readAt.IsZero() {
		readAt = e.now()
	}
	changed := e.tracker.Apply(tracker.Update{
		ID:          u.ID,
		ClientID:    u.ClientID,
		SenderID:    u.SenderID,
		RecipientID: u.RecipientID,
		Status:      st,
		ReadAt:      readAt,
	})
	e.metrics.StatusUpdate(len(changed))
	if len(changed) == 0 {
		e.logger.Debug("status push changed nothing", zap.String("id", u.ID), zap.String("status", u.Status))
		return
	}
	e.bus.Emit(bus.ViewMessageStatus, view.StatusChange{
		Peer:  e.tracker.Peer(),
		Lines: view.Lines(e.id.Username, e.peerName, changed, e.now()),
	})
}

func (e *Engine) onClosed(payload any) {
	reason, _ := payload.(string)
	e.logger.Warn("transport closed", zap.String("reason", reason))
	e.metrics.SetOnline(false)
	if e.machine.Current() == status.Online {
		if err := e.machine.Transition(status.Closed); err != nil {
			e.logger.Warn("connection state", zap.Error(err))
		}
	}
}

func (e *Engine) refreshContacts() {
	token := e.contacts.NextToken()
	self := e.id.Username
	e.wg.Go(func() {
		started := time.Now()
		list, err := e.history.Contacts(e.ctx, self)
		e.metrics.Fetch("contacts", started, err)
		e.post(func() { e.onContacts(token, list, err) })
	})
}

func (e *Engine) onContacts(token uint64, list []api.Contact, err error) {
	if err != nil {
		e.logger.Warn("contacts fetch failed", zap.Error(err))
		return
	}
	cs := make([]contacts.Contact, 0, len(list))
	for _, c := range list {
		if c.Username == "" || c.Username == e.id.Username {
			continue
		}
		cs = append(cs, contacts.FromAPI(c))
	}
	if !e.contacts.Replace(token, cs) {
		e.metrics.Stale("contacts")
		return
	}
	if c, ok := e.contacts.Get(e.contacts.Active()); ok && c.DisplayName != "" {
		e.peerName = c.DisplayName
	}
	e.publishContacts()
}

func (e *Engine) loadHistory(peer string) {
	e.historyToken++
	token := e.historyToken
	self := e.id.Username
	e.wg.Go(func() {
		started := time.Now()
		msgs, err := e.history.Messages(e.ctx, self, peer)
		e.metrics.Fetch("history", started, err)
		e.post(func() { e.onHistory(token, peer, msgs, err) })
	})
}

func (e *Engine) onHistory(token uint64, peer string, msgs []api.Message, err error) {
	if token != e.historyToken || peer != e.contacts.Active() {
		e.logger.Debug("discarding stale history", zap.String("peer", peer), zap.Uint64("token", token))
		e.metrics.Stale("history")
		return
	}
	if err != nil {
		e.logger.Warn("history fetch failed", zap.String("peer", peer), zap.Error(err))
		return
	}
	e.tracker.Load(peer, fromHistory(msgs))
	e.publishConversation()
	e.markRead(peer)
}

func (e *Engine) fetchUndelivered() {
	self := e.id.Username
	e.wg.Go(func() {
		started := time.Now()
		msgs, err := e.history.Undelivered(e.ctx, self)
		e.metrics.Fetch("undelivered", started, err)
		e.post(func() { e.onUndelivered(msgs, err) })
	})
}

// onUndelivered records the backlog counts. They are applied once, when
// the seed delay that started at connection has also elapsed.
func (e *Engine) onUndelivered(msgs []api.Message, err error) {
	if err != nil {
		e.logger.Warn("undelivered fetch failed", zap.Error(err))
		e.backlog = map[string]int{}
		return
	}
	counts := make(map[string]int)
	for _, m := range msgs {
		if m.SenderID != "" && m.SenderID != e.id.Username {
			counts[m.SenderID]++
		}
	}
	if len(counts) > 0 {
		e.logger.Info("backlog received", zap.Int("messages", len(msgs)), zap.Int("senders", len(counts)))
	}
	e.backlog = counts
	e.applySeed()
}

func (e *Engine) applySeed() {
	if e.stopping || e.seeded || !e.seedDue || e.backlog == nil {
		return
	}
	e.seeded = true
	if len(e.backlog) == 0 {
		return
	}
	e.contacts.Seed(e.backlog)
	e.publishContacts()
}
