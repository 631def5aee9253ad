package model

import (
	"context"
	"sync"

	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/view"
)

// Part identifies which snapshot changed since the last Take.
type Part uint8

const (
	PartContacts Part = 1 << iota
	PartConversation
	PartConnection
)

// Has reports whether p includes q.
func (p Part) Has(q Part) bool { return p&q != 0 }

const subscriptionBuffer = 64

// ViewModel caches the projections published on the bus and signals the UI
// to refresh. Refresh signals coalesce: the UI reads whatever changed since
// its previous Take.
type ViewModel struct {
	mu sync.RWMutex

	contacts     view.ContactList
	conversation view.Conversation
	connection   status.StatusChange
	dirty        Part

	refreshCh chan struct{}
}

// NewViewModel creates an empty view model.
func NewViewModel() *ViewModel {
	return &ViewModel{
		connection: status.StatusChange{To: status.Idle},
		refreshCh:  make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh(p Part) {
	vm.dirty |= p
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Seed installs initial snapshots taken before the bus subscription started.
func (vm *ViewModel) Seed(cl view.ContactList, conv view.Conversation, state status.State) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.contacts = cl
	vm.conversation = conv
	vm.connection = status.StatusChange{To: state}
	vm.signalRefresh(PartContacts | PartConversation | PartConnection)
}

// Attach subscribes to view and connection events and folds them in from a
// background goroutine until ctx is done. The returned channel closes when
// that goroutine exits.
func (vm *ViewModel) Attach(ctx context.Context, b *bus.Bus) <-chan struct{} {
	views, unsubViews := b.Subscribe("view.", subscriptionBuffer)
	conn, unsubConn := b.Subscribe(bus.ConnectionChanged, subscriptionBuffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer unsubViews()
		defer unsubConn()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-views:
				vm.Apply(evt)
			case evt := <-conn:
				vm.Apply(evt)
			}
		}
	}()
	return done
}

// Apply folds one bus event into the snapshots. Unknown events are ignored.
func (vm *ViewModel) Apply(evt bus.Event) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	switch p := evt.Payload.(type) {
	case view.ContactList:
		vm.contacts = p
		vm.signalRefresh(PartContacts)
	case view.Conversation:
		vm.conversation = p
		vm.signalRefresh(PartConversation)
	case view.StatusChange:
		if vm.patch(p) {
			vm.signalRefresh(PartConversation)
		}
	case status.StatusChange:
		vm.connection = p
		vm.signalRefresh(PartConnection)
	}
}

// patch replaces the changed lines in place. Changes for a conversation
// that is no longer shown are dropped.
func (vm *ViewModel) patch(sc view.StatusChange) bool {
	if sc.Peer != vm.conversation.Peer {
		return false
	}
	byID := make(map[string]view.Line, len(sc.Lines))
	for _, l := range sc.Lines {
		byID[l.ID] = l
	}
	lines := make([]view.Line, len(vm.conversation.Lines))
	changed := false
	for i, l := range vm.conversation.Lines {
		if nl, ok := byID[l.ID]; ok {
			l = nl
			changed = true
		}
		lines[i] = l
	}
	if changed {
		vm.conversation.Lines = lines
	}
	return changed
}

// Take returns the parts changed since the previous call and clears them.
func (vm *ViewModel) Take() Part {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	p := vm.dirty
	vm.dirty = 0
	return p
}

// Contacts returns the latest contact list.
func (vm *ViewModel) Contacts() view.ContactList {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.contacts
}

// Conversation returns the latest conversation.
func (vm *ViewModel) Conversation() view.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversation
}

// Connection returns the latest connection change.
func (vm *ViewModel) Connection() status.StatusChange {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.connection
}

// Unread sums the badges of all contacts.
func (vm *ViewModel) Unread() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	n := 0
	for _, r := range vm.contacts.Rows {
		n += r.Badge
	}
	return n
}
