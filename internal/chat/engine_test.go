package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/metrics"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/transport"
	"github.com/matheus3301/nexus/internal/view"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeServer is the REST side of the chat server.
type fakeServer struct {
	mu           sync.Mutex
	contacts     map[string][]api.Contact
	messages     map[string][]api.Message
	undelivered  map[string][]api.Message
	reads        []string
	contactCalls int
}

func newFakeServer(t *testing.T) (*fakeServer, *api.Client) {
	t.Helper()
	fs := &fakeServer{
		contacts:    make(map[string][]api.Contact),
		messages:    make(map[string][]api.Message),
		undelivered: make(map[string][]api.Message),
	}
	r := chi.NewRouter()
	r.Get("/contacts/{self}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.contactCalls++
		list := fs.contacts[chi.URLParam(r, "self")]
		fs.mu.Unlock()
		writeJSON(w, list)
	})
	r.Get("/messages/undelivered/{self}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		list := fs.undelivered[chi.URLParam(r, "self")]
		fs.mu.Unlock()
		writeJSON(w, list)
	})
	r.Get("/messages/{self}/{peer}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		list := fs.messages[chi.URLParam(r, "self")+"/"+chi.URLParam(r, "peer")]
		fs.mu.Unlock()
		writeJSON(w, list)
	})
	r.Post("/messages/read/{sender}/{recipient}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.reads = append(fs.reads, chi.URLParam(r, "sender")+"/"+chi.URLParam(r, "recipient"))
		fs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fs, api.New(srv.URL, api.WithToken("tok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		v = []any{}
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (fs *fakeServer) calls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.contactCalls
}

func (fs *fakeServer) readCalls() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return slices.Clone(fs.reads)
}

type publish struct {
	dest    string
	payload any
}

// fakeChannel records publishes instead of talking STOMP.
type fakeChannel struct {
	mu           sync.Mutex
	published    []publish
	disconnected int
}

func (c *fakeChannel) Publish(dest string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publish{dest, payload})
	return nil
}

func (c *fakeChannel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
	return nil
}

func (c *fakeChannel) sent(dest string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, p := range c.published {
		if p.dest == dest {
			out = append(out, p.payload)
		}
	}
	return out
}

type fakePeers struct {
	mu   sync.Mutex
	last string
}

func (p *fakePeers) SetLastPeer(peer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = peer
	return nil
}

type harness struct {
	engine  *Engine
	bus     *bus.Bus
	machine *status.Machine
	channel *fakeChannel
	metrics *metrics.Metrics
}

func identity(user string) session.Identity {
	return session.Identity{Username: user, FullName: user + " name", Token: "tok"}
}

func dialOK(ch *fakeChannel) DialFunc {
	return func(context.Context, session.Identity) (Channel, error) { return ch, nil }
}

func startEngine(t *testing.T, id session.Identity, h History, dial DialFunc, mutate ...func(*Options)) *harness {
	t.Helper()
	b := bus.New()
	ch := &fakeChannel{}
	if dial == nil {
		dial = dialOK(ch)
	}
	m := metrics.New(b)
	opts := Options{
		Identity:       id,
		Bus:            b,
		Machine:        status.NewMachine(b),
		Dial:           dial,
		History:        h,
		Metrics:        m,
		BadgeSeedDelay: 100 * time.Millisecond,
		RefreshDelay:   10 * time.Millisecond,
	}
	for _, f := range mutate {
		f(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Stop)
	return &harness{engine: e, bus: b, machine: opts.Machine, channel: ch, metrics: m}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitOnline(t *testing.T, h *harness) {
	t.Helper()
	eventually(t, "online", func() bool { return h.machine.Current() == status.Online })
}

func badge(list view.ContactList, peer string) int {
	for _, r := range list.Rows {
		if r.PeerID == peer {
			return r.Badge
		}
	}
	return -1
}

func at(h, m int) api.Timestamp {
	return api.Millis(time.Date(2026, 10, 14, h, m, 0, 0, time.UTC))
}

func TestNewRequiresIdentity(t *testing.T) {
	_, client := newFakeServer(t)
	if _, err := New(Options{Bus: bus.New(), History: client, Dial: dialOK(&fakeChannel{})}); err == nil {
		t.Error("New() without identity succeeded")
	}
}

func TestEmptyContactsShowsPlaceholder(t *testing.T) {
	fs, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)

	eventually(t, "contacts fetch", func() bool { return fs.calls() > 0 })
	list := h.engine.Contacts()
	if list.Placeholder != view.EmptyPlaceholder || len(list.Rows) != 0 {
		t.Errorf("Contacts() = %+v, want placeholder only", list)
	}
}

func TestConnectAnnouncesPresence(t *testing.T) {
	_, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	eventually(t, "presence", func() bool { return len(h.channel.sent(transport.AddUser)) == 1 })
	got := h.channel.sent(transport.AddUser)[0]
	want := transport.Presence{Username: "alice", FullName: "alice name", Status: transport.Online}
	if got != want {
		t.Errorf("presence = %+v, want %+v", got, want)
	}
	if h.engine.Identity().Username != "alice" {
		t.Errorf("Identity() = %+v", h.engine.Identity())
	}
}

func TestSendToOfflinePeerStaysSent(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.contacts["alice"] = []api.Contact{{Username: "bob", FullName: "Bob", Status: "OFFLINE"}}
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.Send("hi"); err != nil {
		t.Fatalf("Send() = %v", err)
	}

	conv := h.engine.Conversation()
	if conv.Peer != "bob" || len(conv.Lines) != 1 {
		t.Fatalf("Conversation() = %+v", conv)
	}
	line := conv.Lines[0]
	if line.Content != "hi" || line.Indicator != "✓" || line.Highlight || !line.FromSelf {
		t.Errorf("line = %+v, want SENT indicator", line)
	}

	sent := h.channel.sent(transport.Chat)
	if len(sent) != 1 {
		t.Fatalf("published %d chat messages, want 1", len(sent))
	}
	payload := sent[0].(transport.ChatPayload)
	if payload.SenderID != "alice" || payload.RecipientID != "bob" || payload.Content != "hi" || payload.ClientID != line.ID {
		t.Errorf("payload = %+v, line id %q", payload, line.ID)
	}

	// Nothing arrives from bob: the indicator stays SENT.
	time.Sleep(50 * time.Millisecond)
	if got := h.engine.Conversation().Lines[0].Indicator; got != "✓" {
		t.Errorf("indicator = %q after waiting, want ✓", got)
	}
	if got := testutil.ToFloat64(h.metrics.MessagesSent.WithLabelValues("published")); got != 1 {
		t.Errorf("sent metric = %v, want 1", got)
	}
}

func TestSendRequiresConversation(t *testing.T) {
	_, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)

	if err := h.engine.Send("hi"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("Send() = %v, want ErrNoConversation", err)
	}
	if err := h.engine.Send("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send(blank) = %v, want ErrEmptyMessage", err)
	}
	if err := h.engine.SelectPeer(" ", ""); !errors.Is(err, ErrNoConversation) {
		t.Errorf("SelectPeer(blank) = %v, want ErrNoConversation", err)
	}
	if err := h.engine.SelectPeer("alice", "Alice"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("SelectPeer(self) = %v, want ErrNoConversation", err)
	}
	if got := h.engine.Active(); got != "" {
		t.Errorf("Active() = %q after selecting self", got)
	}
	if got := badge(h.engine.Contacts(), "alice"); got != -1 {
		t.Error("selecting self added a contact")
	}
}

func TestLastPeerSelfIsNotReopened(t *testing.T) {
	_, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil, func(o *Options) {
		o.LastPeer = "alice"
	})
	if got := h.engine.Active(); got != "" {
		t.Errorf("Active() = %q, want none", got)
	}
}

// bob logs in with 3 undelivered messages from alice: the badge shows 3,
// opening the conversation clears it and issues one bulk receipt.
func TestBacklogBadgeClearsOnOpen(t *testing.T) {
	fs, client := newFakeServer(t)
	// The contacts endpoint lags behind; the badge comes from the backlog seed.
	fs.contacts["bob"] = []api.Contact{{Username: "alice", FullName: "Alice", Status: "ONLINE"}}
	backlog := []api.Message{
		{ID: "1", SenderID: "alice", RecipientID: "bob", Content: "one", Status: "DELIVERED", TimeStamp: at(8, 0)},
		{ID: "2", SenderID: "alice", RecipientID: "bob", Content: "two", Status: "DELIVERED", TimeStamp: at(8, 1)},
		{ID: "3", SenderID: "alice", RecipientID: "bob", Content: "three", Status: "DELIVERED", TimeStamp: at(8, 2)},
	}
	fs.undelivered["bob"] = backlog
	fs.messages["bob/alice"] = backlog

	h := startEngine(t, identity("bob"), client, nil)
	waitOnline(t, h)

	eventually(t, "badge 3", func() bool { return badge(h.engine.Contacts(), "alice") == 3 })

	if err := h.engine.SelectPeer("alice", ""); err != nil {
		t.Fatal(err)
	}
	if got := badge(h.engine.Contacts(), "alice"); got != 0 {
		t.Errorf("badge after open = %d, want 0", got)
	}

	eventually(t, "read receipt", func() bool { return len(h.channel.sent(transport.ChatRead)) > 0 })
	eventually(t, "history", func() bool { return len(h.engine.Conversation().Lines) == 3 })
	time.Sleep(50 * time.Millisecond)

	receipts := h.channel.sent(transport.ChatRead)
	if len(receipts) != 1 {
		t.Fatalf("published %d read receipts, want 1", len(receipts))
	}
	want := transport.ReadReceipt{SenderID: "alice", RecipientID: "bob"}
	if receipts[0] != want {
		t.Errorf("receipt = %+v, want %+v", receipts[0], want)
	}

	// Switching away keeps the cleared badge.
	if err := h.engine.SelectPeer("carol", "Carol"); err != nil {
		t.Fatal(err)
	}
	if got := badge(h.engine.Contacts(), "alice"); got != 0 {
		t.Errorf("badge after switching away = %d, want 0", got)
	}
	if got := h.engine.Active(); got != "carol" {
		t.Errorf("Active() = %q, want carol", got)
	}
}

// slowBacklog holds the undelivered fetch until release is closed.
type slowBacklog struct {
	*api.Client
	release chan struct{}
}

func (s slowBacklog) Undelivered(ctx context.Context, self string) ([]api.Message, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Client.Undelivered(ctx, self)
}

func backlogFrom(sender, recipient string, n int) []api.Message {
	out := make([]api.Message, n)
	for i := range out {
		out[i] = api.Message{ID: fmt.Sprint(i + 1), SenderID: sender, RecipientID: recipient, Status: "DELIVERED"}
	}
	return out
}

func TestSeedWaitsForDelayAfterConnect(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.contacts["bob"] = []api.Contact{{Username: "alice", FullName: "Alice"}}
	fs.undelivered["bob"] = backlogFrom("alice", "bob", 2)
	h := startEngine(t, identity("bob"), client, nil, func(o *Options) {
		o.BadgeSeedDelay = 400 * time.Millisecond
	})
	waitOnline(t, h)
	eventually(t, "alice listed", func() bool { return badge(h.engine.Contacts(), "alice") == 0 })

	time.Sleep(100 * time.Millisecond)
	if got := badge(h.engine.Contacts(), "alice"); got != 0 {
		t.Errorf("badge before the delay = %d, want 0", got)
	}
	eventually(t, "badge 2", func() bool { return badge(h.engine.Contacts(), "alice") == 2 })
}

// The delay runs from the connection, so a backlog that arrives after it
// has elapsed is applied right away.
func TestSeedDelayCountsFromConnection(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.contacts["bob"] = []api.Contact{{Username: "alice", FullName: "Alice"}}
	fs.undelivered["bob"] = backlogFrom("alice", "bob", 2)
	slow := slowBacklog{Client: client, release: make(chan struct{})}
	h := startEngine(t, identity("bob"), slow, nil, func(o *Options) {
		o.BadgeSeedDelay = 200 * time.Millisecond
	})
	waitOnline(t, h)
	eventually(t, "alice listed", func() bool { return badge(h.engine.Contacts(), "alice") == 0 })

	time.Sleep(300 * time.Millisecond)
	if got := badge(h.engine.Contacts(), "alice"); got != 0 {
		t.Fatalf("badge without backlog = %d, want 0", got)
	}
	close(slow.release)

	deadline := time.Now().Add(150 * time.Millisecond)
	for badge(h.engine.Contacts(), "alice") != 2 {
		if time.Now().After(deadline) {
			t.Fatal("backlog was not applied once it arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSeedDropsSendersNotListed(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.undelivered["bob"] = []api.Message{{ID: "1", SenderID: "zed", RecipientID: "bob"}}
	h := startEngine(t, identity("bob"), client, nil)
	waitOnline(t, h)

	// Let the seed timer fire, then the server starts listing zed.
	time.Sleep(300 * time.Millisecond)
	fs.mu.Lock()
	fs.contacts["bob"] = []api.Contact{{Username: "zed"}}
	fs.mu.Unlock()
	h.bus.Emit(bus.TransportPresence, transport.Presence{Username: "zed", Status: transport.Online})

	eventually(t, "zed listed", func() bool { return badge(h.engine.Contacts(), "zed") == 0 })
}

func TestUnknownReadUpgradesPendingMessages(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.messages["alice/bob"] = []api.Message{
		{ID: "1", SenderID: "alice", RecipientID: "bob", Content: "a", Status: "DELIVERED", TimeStamp: at(9, 0)},
		{ID: "2", SenderID: "bob", RecipientID: "alice", Content: "b", Status: "READ", TimeStamp: at(9, 1)},
		{ID: "3", SenderID: "alice", RecipientID: "bob", Content: "c", Status: "SENT", TimeStamp: at(9, 2)},
	}
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "history", func() bool { return len(h.engine.Conversation().Lines) == 3 })

	ch, unsub := h.bus.Subscribe(bus.ViewMessageStatus, 10)
	defer unsub()
	h.bus.Emit(bus.TransportStatus, transport.StatusUpdate{ID: "42", SenderID: "bob", Status: "READ", ReadTimestamp: at(9, 30)})

	select {
	case evt := <-ch:
		change := evt.Payload.(view.StatusChange)
		if change.Peer != "bob" || len(change.Lines) != 2 {
			t.Fatalf("change = %+v, want 2 lines for bob", change)
		}
		for _, l := range change.Lines {
			if l.Indicator != "✓✓" || !l.Highlight {
				t.Errorf("line %s = %+v, want READ", l.ID, l)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for status change")
	}

	for _, l := range h.engine.Conversation().Lines {
		if l.FromSelf && !l.Highlight {
			t.Errorf("line %s not upgraded", l.ID)
		}
	}
}

func TestStatusPushRekeysProvisional(t *testing.T) {
	_, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.Send("hi"); err != nil {
		t.Fatal(err)
	}
	clientID := h.channel.sent(transport.Chat)[0].(transport.ChatPayload).ClientID

	h.bus.Emit(bus.TransportStatus, transport.StatusUpdate{ID: "s1", ClientID: clientID, Status: "DELIVERED"})
	eventually(t, "delivered", func() bool {
		lines := h.engine.Conversation().Lines
		return len(lines) == 1 && lines[0].ID == "s1" && lines[0].Indicator == "✓✓"
	})

	// A regression to SENT is ignored.
	h.bus.Emit(bus.TransportStatus, transport.StatusUpdate{ID: "s1", Status: "SENT"})
	time.Sleep(30 * time.Millisecond)
	if got := h.engine.Conversation().Lines[0].Indicator; got != "✓✓" {
		t.Errorf("indicator = %q, want ✓✓", got)
	}
}

func TestInboundForActivePeerRendersAndMarksRead(t *testing.T) {
	fs, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	before := fs.calls()
	h.bus.Emit(bus.TransportMessage, transport.InboundMessage{ID: "9", SenderID: "bob", RecipientID: "alice", Content: "yo", Timestamp: at(10, 0)})

	eventually(t, "rendered", func() bool {
		lines := h.engine.Conversation().Lines
		return len(lines) == 1 && lines[0].Content == "yo" && lines[0].Sender == "Bob"
	})
	eventually(t, "receipt", func() bool { return len(h.channel.sent(transport.ChatRead)) == 1 })
	eventually(t, "contacts refetch", func() bool { return fs.calls() > before })
}

func TestInboundForOtherPeerIsNotRendered(t *testing.T) {
	fs, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	before := fs.calls()
	h.bus.Emit(bus.TransportMessage, transport.InboundMessage{ID: "7", SenderID: "carol", RecipientID: "alice", Content: "hey"})

	eventually(t, "contacts refetch", func() bool { return fs.calls() > before })
	if n := len(h.engine.Conversation().Lines); n != 0 {
		t.Errorf("rendered %d lines for another peer", n)
	}
	if n := len(h.channel.sent(transport.ChatRead)); n != 0 {
		t.Errorf("published %d receipts, want 0", n)
	}
}

func TestConnectionFailureFallsBackToREST(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.messages["alice/bob"] = []api.Message{{ID: "1", SenderID: "bob", RecipientID: "alice", Content: "ping", Status: "DELIVERED"}}
	fail := func(context.Context, session.Identity) (Channel, error) {
		return nil, &transport.ConnectionError{URL: "ws://nowhere", Err: errors.New("refused")}
	}
	h := startEngine(t, identity("alice"), client, fail)

	eventually(t, "failed", func() bool { return h.machine.Current() == status.Failed })
	if h.machine.LastError() == "" {
		t.Error("LastError() empty")
	}

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "REST mark read", func() bool { return slices.Equal(fs.readCalls(), []string{"bob/alice"}) })

	if err := h.engine.Send("hi"); !errors.Is(err, ErrOffline) {
		t.Errorf("Send() = %v, want ErrOffline", err)
	}
	lines := h.engine.Conversation().Lines
	if len(lines) != 2 || lines[1].Indicator != "✓" {
		t.Errorf("lines = %+v, want offline message kept as SENT", lines)
	}
}

func TestTransportClosedGoesOffline(t *testing.T) {
	_, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	h.bus.Emit(bus.TransportClosed, "eof")
	eventually(t, "closed", func() bool { return h.machine.Current() == status.Closed })
	if h.engine.Online() {
		t.Error("Online() = true after close")
	}

	if err := h.engine.SelectPeer("bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.Send("hi"); !errors.Is(err, ErrOffline) {
		t.Errorf("Send() = %v, want ErrOffline", err)
	}
}

func TestStopDisconnects(t *testing.T) {
	_, client := newFakeServer(t)
	h := startEngine(t, identity("alice"), client, nil)
	waitOnline(t, h)

	h.engine.Stop()
	h.engine.Stop()

	h.channel.mu.Lock()
	n := h.channel.disconnected
	h.channel.mu.Unlock()
	if n != 1 {
		t.Errorf("disconnected %d times, want 1", n)
	}
	if got := h.machine.Current(); got != status.Closed {
		t.Errorf("state = %s, want CLOSED", got)
	}
	if err := h.engine.SelectPeer("bob", ""); !errors.Is(err, ErrNotRunning) {
		t.Errorf("SelectPeer() after Stop = %v, want ErrNotRunning", err)
	}
}

func TestLastPeerIsReopened(t *testing.T) {
	fs, client := newFakeServer(t)
	fs.contacts["alice"] = []api.Contact{{Username: "bob", FullName: "Bob"}}
	fs.messages["alice/bob"] = []api.Message{{ID: "1", SenderID: "alice", RecipientID: "bob", Content: "earlier", Status: "READ"}}
	peers := &fakePeers{}
	h := startEngine(t, identity("alice"), client, nil, func(o *Options) {
		o.LastPeer = "bob"
		o.Peers = peers
	})

	if got := h.engine.Active(); got != "bob" {
		t.Errorf("Active() = %q, want bob", got)
	}
	eventually(t, "history", func() bool { return len(h.engine.Conversation().Lines) == 1 })
	eventually(t, "display name", func() bool { return h.engine.Conversation().PeerName == "Bob" })

	if err := h.engine.SelectPeer("carol", "Carol"); err != nil {
		t.Fatal(err)
	}
	peers.mu.Lock()
	defer peers.mu.Unlock()
	if peers.last != "carol" {
		t.Errorf("persisted peer = %q, want carol", peers.last)
	}
}

// gatedHistory holds each history response until the test releases it.
type gatedHistory struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	msgs  map[string][]api.Message
}

func newGatedHistory() *gatedHistory {
	return &gatedHistory{gates: make(map[string]chan struct{}), msgs: make(map[string][]api.Message)}
}

func (g *gatedHistory) gate(peer string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[peer]
	if !ok {
		ch = make(chan struct{})
		g.gates[peer] = ch
	}
	return ch
}

func (g *gatedHistory) release(peer string) { close(g.gate(peer)) }

func (g *gatedHistory) Contacts(context.Context, string) ([]api.Contact, error) { return nil, nil }
func (g *gatedHistory) Undelivered(context.Context, string) ([]api.Message, error) {
	return nil, nil
}
func (g *gatedHistory) MarkRead(context.Context, string, string) error { return nil }

func (g *gatedHistory) Messages(ctx context.Context, _, peer string) ([]api.Message, error) {
	select {
	case <-g.gate(peer):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.msgs[peer], nil
}

func TestStaleHistoryIsDiscarded(t *testing.T) {
	g := newGatedHistory()
	g.msgs["bob"] = []api.Message{{ID: "b1", SenderID: "bob", RecipientID: "alice", Content: "from bob", Status: "READ"}}
	g.msgs["carol"] = []api.Message{{ID: "c1", SenderID: "carol", RecipientID: "alice", Content: "from carol", Status: "READ"}}
	h := startEngine(t, identity("alice"), g, nil)

	if err := h.engine.SelectPeer("bob", ""); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.SelectPeer("carol", ""); err != nil {
		t.Fatal(err)
	}
	g.release("carol")
	eventually(t, "carol history", func() bool { return len(h.engine.Conversation().Lines) == 1 })
	g.release("bob")
	eventually(t, "stale discard", func() bool {
		return testutil.ToFloat64(h.metrics.StaleResponses.WithLabelValues("history")) == 1
	})

	conv := h.engine.Conversation()
	if conv.Peer != "carol" || len(conv.Lines) != 1 || conv.Lines[0].Content != "from carol" {
		t.Errorf("Conversation() = %+v, want carol's history", conv)
	}
}

// Reselecting the same peer while its first fetch is in flight keeps only
// the newest response.
func TestReselectSamePeerUsesNewestFetch(t *testing.T) {
	g := newGatedHistory()
	g.msgs["bob"] = []api.Message{{ID: "b1", SenderID: "bob", RecipientID: "alice", Content: "x", Status: "READ"}}
	h := startEngine(t, identity("alice"), g, nil)

	if err := h.engine.SelectPeer("bob", ""); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.SelectPeer("bob", ""); err != nil {
		t.Fatal(err)
	}
	g.release("bob")
	eventually(t, "stale discard", func() bool {
		return testutil.ToFloat64(h.metrics.StaleResponses.WithLabelValues("history")) == 1
	})
	eventually(t, "history", func() bool { return len(h.engine.Conversation().Lines) == 1 })
}
