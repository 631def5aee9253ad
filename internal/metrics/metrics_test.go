package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/nexus/internal/bus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Received()
	m.Sent(true)
	m.StatusUpdate(2)
	m.ReadReceipt("stomp")
	m.Stale("history")
	m.Fetch("contacts", time.Now(), errors.New("boom"))
	m.SetOnline(true)
}

func TestCounters(t *testing.T) {
	m := New(nil)
	m.Received()
	m.Received()
	m.Sent(true)
	m.Sent(false)
	m.Sent(false)
	m.StatusUpdate(0)
	m.StatusUpdate(3)
	m.ReadReceipt("rest")
	m.Stale("contacts")
	m.Fetch("history", time.Now(), nil)
	m.Fetch("history", time.Now(), errors.New("boom"))
	m.SetOnline(true)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"received", testutil.ToFloat64(m.MessagesReceived), 2},
		{"sent published", testutil.ToFloat64(m.MessagesSent.WithLabelValues("published")), 1},
		{"sent offline", testutil.ToFloat64(m.MessagesSent.WithLabelValues("offline")), 2},
		{"status applied", testutil.ToFloat64(m.StatusUpdates.WithLabelValues("applied")), 1},
		{"status ignored", testutil.ToFloat64(m.StatusUpdates.WithLabelValues("ignored")), 1},
		{"receipts rest", testutil.ToFloat64(m.ReadReceipts.WithLabelValues("rest")), 1},
		{"stale contacts", testutil.ToFloat64(m.StaleResponses.WithLabelValues("contacts")), 1},
		{"fetch errors", testutil.ToFloat64(m.FetchErrors.WithLabelValues("history")), 1},
		{"online", testutil.ToFloat64(m.TransportOnline), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if n := testutil.CollectAndCount(m.FetchDuration); n != 1 {
		t.Errorf("FetchDuration series = %d, want 1", n)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	b := bus.New()
	_, unsub := b.Subscribe("x.", 0)
	defer unsub()
	b.Emit("x.full", nil)

	m := New(b)
	m.Received()

	srv := NewServer("127.0.0.1:0", m, zap.NewNop())
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = srv.Stop(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"nexus_messages_received_total 1", "nexus_bus_dropped_total 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
