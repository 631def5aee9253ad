// Package transport is the real-time channel to the chat server: STOMP over
// a single WebSocket carrying the private inbox, the private status feed and
// the public presence feed, plus a fire-and-forget publish path.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dialer opens transport connections.
type Dialer struct {
	URL              string
	Bus              *bus.Bus
	Logger           *zap.Logger
	HandshakeTimeout time.Duration
}

// Conn is an established transport connection for one identity.
type Conn struct {
	id     session.Identity
	ws     *wsConn
	stomp  *stomp.Conn
	bus    *bus.Bus
	logger *zap.Logger

	group   *errgroup.Group
	closing atomic.Bool
	once    sync.Once
}

// Connect dials the WebSocket, performs the STOMP handshake and subscribes the
// three feeds scoped to id. Frames are decoded and published on the bus.
// Any failure is returned as *ConnectionError.
func (d *Dialer) Connect(ctx context.Context, id session.Identity) (*Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fail := func(err error) (*Conn, error) {
		return nil, &ConnectionError{URL: d.URL, Err: err}
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return fail(err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	header := http.Header{}
	if id.Token != "" {
		header.Set("Authorization", "Bearer "+id.Token)
	}
	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (http %d)", err, resp.StatusCode)
		}
		return fail(err)
	}

	rwc := newWSConn(ws)
	_ = ws.SetReadDeadline(time.Now().Add(timeout))
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(0, 0),
	}
	if id.Token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+id.Token))
	}
	sc, err := stomp.Connect(rwc, opts...)
	if err != nil {
		_ = rwc.Close()
		return fail(fmt.Errorf("stomp handshake: %w", err))
	}
	_ = ws.SetReadDeadline(time.Time{})

	c := &Conn{
		id:     id,
		ws:     rwc,
		stomp:  sc,
		bus:    d.Bus,
		logger: logger.With(zap.String("transport", d.URL)),
		group:  &errgroup.Group{},
	}

	feeds := []struct {
		dest   string
		decode func([]byte) (string, any, error)
	}{
		{InboxTopic(id.Username), decodeAs[InboundMessage](bus.TransportMessage)},
		{StatusTopic(id.Username), decodeAs[StatusUpdate](bus.TransportStatus)},
		{PresenceTopic, decodeAs[Presence](bus.TransportPresence)},
	}
	for _, f := range feeds {
		sub, err := sc.Subscribe(f.dest, stomp.AckAuto)
		if err != nil {
			_ = sc.Disconnect()
			_ = rwc.Close()
			return fail(fmt.Errorf("subscribe %s: %w", f.dest, err))
		}
		c.group.Go(func() error {
			return c.readLoop(f.dest, sub, f.decode)
		})
	}
	c.logger.Info("transport connected", zap.String("user", id.Username))
	return c, nil
}

func decodeAs[T any](kind string) func([]byte) (string, any, error) {
	return func(body []byte) (string, any, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return kind, nil, err
		}
		return kind, v, nil
	}
}

func (c *Conn) readLoop(dest string, sub *stomp.Subscription, decode func([]byte) (string, any, error)) error {
	for {
		msg, ok := <-sub.C
		if !ok {
			c.lost(dest, nil)
			return nil
		}
		if msg.Err != nil {
			c.lost(dest, msg.Err)
			return msg.Err
		}
		kind, payload, err := decode(msg.Body)
		if err != nil {
			c.logger.Warn("dropping undecodable frame", zap.String("destination", dest), zap.Error(err))
			continue
		}
		if c.bus != nil {
			c.bus.Emit(kind, payload)
		}
	}
}

// lost reports an unexpected end of the connection exactly once.
func (c *Conn) lost(dest string, err error) {
	if c.closing.Load() {
		return
	}
	c.once.Do(func() {
		c.logger.Warn("transport lost", zap.String("destination", dest), zap.Error(err))
		if c.bus != nil {
			msg := "connection closed"
			if err != nil {
				msg = err.Error()
			}
			c.bus.Emit(bus.TransportClosed, msg)
		}
	})
}

// Identity returns the identity the connection is scoped to.
func (c *Conn) Identity() session.Identity {
	return c.id
}

// Publish encodes payload as JSON and sends it to destination. Delivery is not
// acknowledged; only local encoding or write failures are returned.
func (c *Conn) Publish(destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", destination, err)
	}
	if err := c.stomp.Send(destination, "application/json", body); err != nil {
		return fmt.Errorf("send %s: %w", destination, err)
	}
	return nil
}

// Disconnect announces the user offline (best effort) and tears the
// connection down. Safe to call more than once.
func (c *Conn) Disconnect() error {
	if c.closing.Swap(true) {
		return nil
	}
	offline := Presence{Username: c.id.Username, FullName: c.id.FullName, Status: Offline}
	if err := c.Publish(DisconnectUser, offline); err != nil {
		c.logger.Warn("offline notice not sent", zap.Error(err))
	}
	err := c.stomp.Disconnect()
	_ = c.ws.Close()

	done := make(chan struct{})
	go func() {
		_ = c.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(readerDrainTimeout):
		c.logger.Warn("subscription readers did not stop")
	}
	c.logger.Info("transport disconnected")
	return err
}

const readerDrainTimeout = 2 * time.Second
