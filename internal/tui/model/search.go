package model

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/chat"
)

const defaultSearchTimeout = 10 * time.Second

// Searcher looks users up by name.
type Searcher interface {
	SearchUsers(ctx context.Context, query string) ([]api.User, error)
}

// SearchResult is delivered once per settled query. An empty Query means
// the results should be hidden.
type SearchResult struct {
	Query string
	Users []api.User
	Err   error
}

// Search debounces keystrokes into user searches. Only the result of the
// newest query is ever delivered; older responses are discarded.
type Search struct {
	searcher  Searcher
	deliver   func(SearchResult)
	debouncer *chat.Debouncer
	timeout   time.Duration

	mu    sync.Mutex
	query string
	seq   uint64
	self  string
}

// NewSearch creates a search model. deliver is called from a background
// goroutine.
func NewSearch(s Searcher, delay, timeout time.Duration, deliver func(SearchResult)) *Search {
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	m := &Search{searcher: s, deliver: deliver, timeout: timeout}
	m.debouncer = chat.NewDebouncer(delay, m.fire)
	return m
}

// SetQuery records the latest input. A blank query cancels any pending
// search and hides the results immediately.
func (m *Search) SetQuery(q string) {
	q = strings.TrimSpace(q)
	m.mu.Lock()
	m.query = q
	m.seq++
	m.mu.Unlock()

	if q == "" {
		m.debouncer.Stop()
		m.deliver(SearchResult{})
		return
	}
	m.debouncer.Trigger()
}

// Exclude drops username from every result; the signed-in user never shows
// up in their own search.
func (m *Search) Exclude(username string) {
	m.mu.Lock()
	m.self = username
	m.mu.Unlock()
}

// Stop cancels a pending search.
func (m *Search) Stop() {
	m.mu.Lock()
	m.seq++
	m.mu.Unlock()
	m.debouncer.Stop()
}

func (m *Search) fire() {
	m.mu.Lock()
	q, seq := m.query, m.seq
	m.mu.Unlock()
	if q == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	users, err := m.searcher.SearchUsers(ctx, q)

	m.mu.Lock()
	current, self := seq == m.seq, m.self
	m.mu.Unlock()
	if !current {
		return
	}
	m.deliver(SearchResult{Query: q, Users: without(users, self), Err: err})
}

func without(users []api.User, username string) []api.User {
	if username == "" {
		return users
	}
	out := make([]api.User, 0, len(users))
	for _, u := range users {
		if u.Username != username {
			out = append(out, u)
		}
	}
	return out
}
