package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/chat"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/matheus3301/nexus/internal/view"
)

type fakeEngine struct {
	mu       sync.Mutex
	selected []string
	sent     []string
	sendErr  error
}

func (f *fakeEngine) SelectPeer(peer, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, peer)
	return nil
}

func (f *fakeEngine) Send(content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return f.sendErr
}

func (f *fakeEngine) Contacts() view.ContactList      { return view.ContactList{} }
func (f *fakeEngine) Conversation() view.Conversation { return view.Conversation{} }
func (f *fakeEngine) Identity() session.Identity      { return session.Identity{Username: "alice"} }

func (f *fakeEngine) selections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.selected...)
}

type noSearch struct{}

func (noSearch) SearchUsers(context.Context, string) ([]api.User, error) { return nil, nil }

func newTestApp(t *testing.T, e *fakeEngine) *App {
	t.Helper()
	a := NewApp(Options{Engine: e, Bus: bus.New(), Searcher: noSearch{}, Session: "main"})
	t.Cleanup(a.Stop)
	return a
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenPeerShowsConversation(t *testing.T) {
	e := &fakeEngine{}
	a := newTestApp(t, e)

	a.execute(ParseCommand("chat bob"))
	if a.pages.Current() != pageChat {
		t.Fatalf("page = %q, want chat", a.pages.Current())
	}
	if a.conversation.Peer() != "bob" {
		t.Errorf("conversation peer = %q", a.conversation.Peer())
	}
	waitFor(t, func() bool { return len(e.selections()) == 1 })

	a.back()
	if a.pages.Current() != pageContacts {
		t.Errorf("page after back = %q", a.pages.Current())
	}
	a.back()
	if a.pages.Current() != pageContacts {
		t.Error("back popped the contact list")
	}
}

func TestCommands(t *testing.T) {
	a := newTestApp(t, &fakeEngine{})

	a.execute(ParseCommand("help"))
	if a.pages.Current() != pageHelp {
		t.Errorf("page = %q, want help", a.pages.Current())
	}
	a.execute(ParseCommand("contacts"))
	if a.pages.Current() != pageContacts || a.pages.Depth() != 1 {
		t.Errorf("page = %q depth = %d", a.pages.Current(), a.pages.Depth())
	}
	a.execute(ParseCommand("chat"))
	if msg := a.flash.Get(); msg == nil {
		t.Error("chat without a username should warn")
	}
	a.execute(ParseCommand("bogus"))
	if msg := a.flash.Get(); msg == nil || msg.Text != `unknown command "bogus"` {
		t.Errorf("flash = %+v", msg)
	}
}

func TestRenderOnlyAppliesOpenConversation(t *testing.T) {
	a := newTestApp(t, &fakeEngine{})
	a.openPeer("bob", "Bob")

	a.vm.Apply(bus.Event{Kind: bus.ViewConversation, Payload: view.Conversation{
		Peer: "bob", PeerName: "Bob Builder",
		Lines: []view.Line{{ID: "1", Sender: "Bob Builder", Content: "hello"}},
	}})
	a.render(a.vm.Take())
	if a.conversation.Name() != "Bob Builder" {
		t.Errorf("name = %q", a.conversation.Name())
	}

	a.vm.Apply(bus.Event{Kind: bus.ViewConversation, Payload: view.Conversation{Peer: "carol"}})
	a.render(a.vm.Take())
	if a.conversation.Peer() != "bob" {
		t.Errorf("conversation switched to %q", a.conversation.Peer())
	}
}

func TestSendErrors(t *testing.T) {
	e := &fakeEngine{sendErr: chat.ErrOffline}
	a := newTestApp(t, e)
	a.openPeer("bob", "")

	a.send("hi")
	msg := a.flash.Get()
	if msg == nil || msg.Level != ui.FlashWarn {
		t.Fatalf("offline flash = %+v, want warning", msg)
	}

	e.sendErr = chat.ErrNotRunning
	a.send("hi again")
	msg = a.flash.Get()
	if msg == nil || msg.Level != ui.FlashErr {
		t.Fatalf("flash = %+v, want error", msg)
	}
	if len(e.sent) != 2 {
		t.Errorf("sent = %v", e.sent)
	}
}

func TestOpenSelfIsRefused(t *testing.T) {
	e := &fakeEngine{}
	a := newTestApp(t, e)

	a.execute(ParseCommand("chat alice"))
	if a.pages.Current() != pageContacts {
		t.Errorf("page = %q, want contacts", a.pages.Current())
	}
	if msg := a.flash.Get(); msg == nil || msg.Level != ui.FlashWarn {
		t.Errorf("flash = %+v, want warning", msg)
	}
	time.Sleep(20 * time.Millisecond)
	if got := e.selections(); len(got) != 0 {
		t.Errorf("engine selected %v", got)
	}
}
