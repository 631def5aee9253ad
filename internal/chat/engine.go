// Package chat runs the client engine: a single loop that owns the message
// tracker, the contact list and the active conversation, fed by transport
// events, REST completions, timers and user commands.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/contacts"
	"github.com/matheus3301/nexus/internal/metrics"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/tracker"
	"github.com/matheus3301/nexus/internal/transport"
	"github.com/matheus3301/nexus/internal/view"
	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned by calls made before Start or after Stop.
	ErrNotRunning = errors.New("engine not running")
	// ErrNoConversation is returned when no valid peer is active or selected.
	ErrNoConversation = errors.New("no active conversation")
	// ErrEmptyMessage is returned by Send for blank content.
	ErrEmptyMessage = errors.New("empty message")
	// ErrOffline is returned by Send when the message was kept locally
	// because the real-time connection is down.
	ErrOffline = errors.New("not connected, message kept locally")
)

const (
	defaultBadgeSeedDelay = 500 * time.Millisecond
	defaultRefreshDelay   = 500 * time.Millisecond
	// Status pushes arrive in bursts when a peer reads a long backlog.
	transportBuffer = 1024
)

// Options configures an Engine.
type Options struct {
	Identity session.Identity
	// LastPeer is reopened on start when set.
	LastPeer string

	Bus     *bus.Bus
	Machine *status.Machine
	Dial    DialFunc
	History History
	Peers   PeerStore
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	BadgeSeedDelay time.Duration
	RefreshDelay   time.Duration
	Now            func() time.Time
}

// Engine is the client core. All state below the loop marker is touched only
// from the loop goroutine.
type Engine struct {
	id      session.Identity
	opts    Options
	bus     *bus.Bus
	machine *status.Machine
	history History
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	jobs     chan func()
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  atomic.Bool
	stopOnce sync.Once
	refresh  *Debouncer

	// loop
	conn         Channel
	tracker      *tracker.Tracker
	contacts     *contacts.Synchronizer
	peerName     string
	historyToken uint64
	seed         *time.Timer
	seedDue      bool
	backlog      map[string]int // nil until the undelivered fetch completes
	seeded       bool
	stopping     bool
}

// New creates an engine for opts.Identity. It does nothing until Start.
func New(opts Options) (*Engine, error) {
	if !opts.Identity.Valid() {
		return nil, errors.New("engine: identity required")
	}
	if opts.Bus == nil || opts.History == nil || opts.Dial == nil {
		return nil, errors.New("engine: bus, history and dial are required")
	}
	if opts.Machine == nil {
		opts.Machine = status.NewMachine(opts.Bus)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BadgeSeedDelay <= 0 {
		opts.BadgeSeedDelay = defaultBadgeSeedDelay
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = defaultRefreshDelay
	}
	logger := opts.Logger.With(zap.String("user", opts.Identity.Username))
	e := &Engine{
		id:       opts.Identity,
		opts:     opts,
		bus:      opts.Bus,
		machine:  opts.Machine,
		history:  opts.History,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      opts.Now,
		jobs:     make(chan func()),
		done:     make(chan struct{}),
		tracker:  tracker.New(opts.Identity.Username),
		contacts: contacts.New(logger),
	}
	e.refresh = NewDebouncer(opts.RefreshDelay, func() { e.post(e.refreshContacts) })
	return e, nil
}

// Start launches the loop, loads the contact list and connects the
// transport in the background. A failed connection moves the machine to
// Failed; the engine keeps serving REST-backed state.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}
	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	events, unsub := e.bus.Subscribe("transport.", transportBuffer)
	go e.loop(events, unsub)

	e.do(func() {
		if p := e.opts.LastPeer; p != "" && p != e.id.Username {
			e.selectPeer(e.opts.LastPeer, "")
		} else {
			e.publishContacts()
			e.refreshContacts()
		}
	})

	if err := e.machine.Transition(status.Connecting); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	e.wg.Go(e.connect)
	return nil
}

// Stop disconnects the transport and stops the loop. Safe to call more than once.
func (e *Engine) Stop() {
	if !e.running.Load() {
		return
	}
	e.stopOnce.Do(func() {
		e.do(e.shutdown)
		e.cancel()
		<-e.done
		e.wg.Wait()
	})
}

func (e *Engine) loop(events <-chan bus.Event, unsub func()) {
	defer close(e.done)
	defer unsub()
	for {
		select {
		case job := <-e.jobs:
			job()
		case evt := <-events:
			e.handleEvent(evt)
		case <-e.ctx.Done():
			return
		}
	}
}

// post hands job to the loop. It returns false once the loop has exited.
// It must not be called from the loop itself.
func (e *Engine) post(job func()) bool {
	select {
	case e.jobs <- job:
		return true
	case <-e.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (e *Engine) do(fn func()) bool {
	if !e.running.Load() {
		return false
	}
	ran := make(chan struct{})
	if !e.post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	<-ran
	return true
}

func (e *Engine) shutdown() {
	e.stopping = true
	e.refresh.Stop()
	if e.seed != nil {
		e.seed.Stop()
	}
	if e.conn != nil {
		if err := e.conn.Disconnect(); err != nil {
			e.logger.Warn("transport disconnect", zap.Error(err))
		}
		e.conn = nil
	}
	if e.machine.Current() == status.Online {
		_ = e.machine.Transition(status.Closed)
	}
	e.metrics.SetOnline(false)
	e.logger.Info("engine stopped")
}

// SelectPeer makes peer the active conversation and loads its history.
// displayName is used until the contact list supplies one. The signed-in
// user cannot be selected.
func (e *Engine) SelectPeer(peer, displayName string) error {
	peer = strings.TrimSpace(peer)
	if peer == "" || peer == e.id.Username {
		return ErrNoConversation
	}
	if !e.do(func() { e.selectPeer(peer, displayName) }) {
		return ErrNotRunning
	}
	return nil
}

// Send posts content to the active conversation. The message is rendered
// with status SENT before anything is published.
func (e *Engine) Send(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	var err error
	if !e.do(func() { err = e.send(content) }) {
		return ErrNotRunning
	}
	return err
}

// Contacts returns the current contact list projection.
func (e *Engine) Contacts() view.ContactList {
	var out view.ContactList
	e.do(func() { out = e.contactList() })
	return out
}

// Conversation returns the current conversation projection.
func (e *Engine) Conversation() view.Conversation {
	var out view.Conversation
	e.do(func() { out = e.conversation() })
	return out
}

// Active returns the active peer, or "".
func (e *Engine) Active() string {
	var out string
	e.do(func() { out = e.contacts.Active() })
	return out
}

// Identity returns the signed-in identity.
func (e *Engine) Identity() session.Identity {
	return e.id
}

// Online reports whether the real-time connection is up.
func (e *Engine) Online() bool {
	return e.machine.Current() == status.Online
}

func (e *Engine) connect() {
	conn, err := e.opts.Dial(e.ctx, e.id)
	if err != nil {
		e.post(func() { e.onConnectFailed(err) })
		return
	}
	if !e.post(func() { e.onConnected(conn) }) {
		_ = conn.Disconnect()
	}
}

func (e *Engine) onConnected(conn Channel) {
	if e.stopping {
		_ = conn.Disconnect()
		return
	}
	e.conn = conn
	if err := e.machine.Transition(status.Online); err != nil {
		e.logger.Warn("connection state", zap.Error(err))
	}
	e.metrics.SetOnline(true)
	hello := transport.Presence{
		Username: e.id.Username,
		FullName: e.id.DisplayName(),
		Status:   transport.Online,
	}
	if err := conn.Publish(transport.AddUser, hello); err != nil {
		e.logger.Warn("presence announcement not sent", zap.Error(err))
	}
	e.logger.Info("connected")
	e.seed = time.AfterFunc(e.opts.BadgeSeedDelay, func() {
		e.post(func() {
			e.seedDue = true
			e.applySeed()
		})
	})
	e.fetchUndelivered()
	e.refreshContacts()
}

func (e *Engine) onConnectFailed(err error) {
	e.logger.Error("transport connection failed", zap.Error(err))
	e.metrics.SetOnline(false)
	if ferr := e.machine.Fail(err); ferr != nil {
		e.logger.Warn("connection state", zap.Error(ferr))
	}
}

func (e *Engine) online() bool {
	return e.conn != nil && e.machine.Current() == status.Online
}

func (e *Engine) selectPeer(peer, name string) {
	if name == "" {
		if c, ok := e.contacts.Get(peer); ok {
			name = c.DisplayName
		}
	}
	if name == "" {
		name = peer
	}
	e.peerName = name
	e.contacts.Touch(peer, name)
	e.contacts.SetActive(peer)
	if e.tracker.Peer() != peer {
		e.tracker.Reset(peer)
	}
	if e.opts.Peers != nil {
		if err := e.opts.Peers.SetLastPeer(peer); err != nil {
			e.logger.Warn("persist active conversation", zap.String("peer", peer), zap.Error(err))
		}
	}
	e.publishConversation()
	e.publishContacts()
	e.refreshContacts()
	e.loadHistory(peer)
}

func (e *Engine) send(content string) error {
	peer := e.contacts.Active()
	if peer == "" || e.tracker.Peer() != peer {
		return ErrNoConversation
	}
	now := e.now()
	m := e.tracker.AddLocal(content, now)
	e.publishConversation()
	e.refresh.Trigger()

	if !e.online() {
		e.metrics.Sent(false)
		return ErrOffline
	}
	payload := transport.ChatPayload{
		SenderID:    e.id.Username,
		RecipientID: peer,
		Content:     content,
		Timestamp:   api.Millis(now),
		ClientID:    m.ClientID,
	}
	if err := e.conn.Publish(transport.Chat, payload); err != nil {
		e.metrics.Sent(false)
		return fmt.Errorf("publish message: %w", err)
	}
	e.metrics.Sent(true)
	return nil
}

// markRead issues one bulk read receipt for peer if anything from it is
// unread, over the transport when online and over REST otherwise.
func (e *Engine) markRead(peer string) {
	if !e.tracker.HasUnreadFrom(peer) {
		return
	}
	self := e.id.Username
	published := false
	if e.online() {
		receipt := transport.ReadReceipt{SenderID: peer, RecipientID: self}
		if err := e.conn.Publish(transport.ChatRead, receipt); err != nil {
			e.logger.Warn("read receipt not published, using REST", zap.String("peer", peer), zap.Error(err))
		} else {
			published = true
			e.metrics.ReadReceipt("stomp")
		}
	}
	if !published {
		e.wg.Go(func() {
			started := time.Now()
			err := e.history.MarkRead(e.ctx, peer, self)
			e.metrics.Fetch("mark_read", started, err)
			if err != nil {
				e.logger.Warn("mark read failed", zap.String("peer", peer), zap.Error(err))
				return
			}
			e.metrics.ReadReceipt("rest")
		})
	}
	e.tracker.MarkIncomingRead(e.now())
	e.contacts.SetActive(peer)
	e.publishContacts()
	e.refresh.Trigger()
}

func (e *Engine) contactList() view.ContactList {
	return view.Rows(e.id.Username, e.contacts.Contacts(), e.contacts.Active(), e.contacts.Badge, e.now())
}

func (e *Engine) conversation() view.Conversation {
	return view.Conversation{
		Peer:     e.tracker.Peer(),
		PeerName: e.peerName,
		Lines:    view.Lines(e.id.Username, e.peerName, e.tracker.Messages(), e.now()),
	}
}

func (e *Engine) publishContacts() {
	e.bus.Emit(bus.ViewContacts, e.contactList())
}

func (e *Engine) publishConversation() {
	e.bus.Emit(bus.ViewConversation, e.conversation())
}
