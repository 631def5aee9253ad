package model

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/view"
)

func conversation() view.Conversation {
	return view.Conversation{
		Peer:     "bob",
		PeerName: "Bob",
		Lines: []view.Line{
			{ID: "1", Sender: "You", FromSelf: true, Content: "hi", Indicator: "✓"},
			{ID: "2", Sender: "Bob", Content: "hey"},
			{ID: "3", Sender: "You", FromSelf: true, Content: "sup", Indicator: "✓"},
		},
	}
}

func TestApplyStatusChangePatchesLines(t *testing.T) {
	vm := NewViewModel()
	vm.Apply(bus.Event{Kind: bus.ViewConversation, Payload: conversation()})
	vm.Take()

	vm.Apply(bus.Event{Kind: bus.ViewMessageStatus, Payload: view.StatusChange{
		Peer:  "bob",
		Lines: []view.Line{{ID: "3", Sender: "You", FromSelf: true, Content: "sup", Indicator: "✓✓", Highlight: true}},
	}})

	if got := vm.Take(); !got.Has(PartConversation) {
		t.Fatalf("Take = %b, want conversation", got)
	}
	lines := vm.Conversation().Lines
	if lines[2].Indicator != "✓✓" || !lines[2].Highlight {
		t.Errorf("line 3 = %+v", lines[2])
	}
	if lines[0].Indicator != "✓" {
		t.Errorf("line 1 changed: %+v", lines[0])
	}
}

func TestApplyStatusChangeForOtherPeerIgnored(t *testing.T) {
	vm := NewViewModel()
	vm.Apply(bus.Event{Kind: bus.ViewConversation, Payload: conversation()})
	vm.Take()

	vm.Apply(bus.Event{Kind: bus.ViewMessageStatus, Payload: view.StatusChange{
		Peer:  "carol",
		Lines: []view.Line{{ID: "1", Indicator: "✓✓"}},
	}})
	if got := vm.Take(); got != 0 {
		t.Errorf("Take = %b, want nothing", got)
	}
	if vm.Conversation().Lines[0].Indicator != "✓" {
		t.Error("line of another conversation was patched")
	}
}

func TestSeedMarksEverythingDirty(t *testing.T) {
	vm := NewViewModel()
	vm.Seed(view.ContactList{Rows: []view.ContactRow{{PeerID: "bob", Badge: 2}, {PeerID: "carol", Badge: 1}}},
		view.Conversation{}, status.Online)

	got := vm.Take()
	for _, p := range []Part{PartContacts, PartConversation, PartConnection} {
		if !got.Has(p) {
			t.Errorf("Take = %b, missing %b", got, p)
		}
	}
	if vm.Unread() != 3 {
		t.Errorf("Unread = %d, want 3", vm.Unread())
	}
	if vm.Connection().To != status.Online {
		t.Errorf("connection = %s", vm.Connection().To)
	}
}

func TestAttachFollowsBus(t *testing.T) {
	b := bus.New()
	vm := NewViewModel()
	ctx, cancel := context.WithCancel(context.Background())
	done := vm.Attach(ctx, b)
	defer func() {
		cancel()
		<-done
	}()

	m := status.NewMachine(b)
	if err := m.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	b.Emit(bus.ViewContacts, view.ContactList{Placeholder: view.EmptyPlaceholder})

	deadline := time.After(2 * time.Second)
	for vm.Connection().To != status.Connecting || vm.Contacts().Placeholder != view.EmptyPlaceholder {
		select {
		case <-vm.RefreshCh():
		case <-deadline:
			t.Fatal("bus events never applied")
		}
	}
	if got := vm.Take(); !got.Has(PartContacts) || !got.Has(PartConnection) {
		t.Errorf("Take = %b", got)
	}
}
