package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/nexus/internal/api"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	delay   map[string]time.Duration
	err     error
}

func (f *fakeSearcher) SearchUsers(ctx context.Context, q string) ([]api.User, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	d := f.delay[q]
	f.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	if f.err != nil {
		return nil, f.err
	}
	return []api.User{{Username: q, FullName: "User " + q}}, nil
}

func (f *fakeSearcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func collect() (func(SearchResult), <-chan SearchResult) {
	ch := make(chan SearchResult, 8)
	return func(r SearchResult) { ch <- r }, ch
}

func TestSearchDebouncesKeystrokes(t *testing.T) {
	fs := &fakeSearcher{}
	deliver, results := collect()
	s := NewSearch(fs, 30*time.Millisecond, time.Second, deliver)
	defer s.Stop()

	for _, q := range []string{"a", "al", "ali"} {
		s.SetQuery(q)
	}

	select {
	case r := <-results:
		if r.Query != "ali" || len(r.Users) != 1 || r.Users[0].Username != "ali" {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	if calls := fs.calls(); len(calls) != 1 {
		t.Errorf("searcher called with %v, want only ali", calls)
	}
}

func TestSearchEmptyQueryHidesResults(t *testing.T) {
	fs := &fakeSearcher{}
	deliver, results := collect()
	s := NewSearch(fs, 30*time.Millisecond, time.Second, deliver)
	defer s.Stop()

	s.SetQuery("bo")
	s.SetQuery("   ")

	select {
	case r := <-results:
		if r.Query != "" || r.Users != nil {
			t.Errorf("result = %+v, want hide", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no hide result")
	}
	select {
	case r := <-results:
		t.Errorf("unexpected result %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
	if calls := fs.calls(); len(calls) != 0 {
		t.Errorf("searcher called with %v", calls)
	}
}

func TestSearchDiscardsSupersededResponse(t *testing.T) {
	fs := &fakeSearcher{delay: map[string]time.Duration{"slow": 150 * time.Millisecond}}
	deliver, results := collect()
	s := NewSearch(fs, 10*time.Millisecond, time.Second, deliver)
	defer s.Stop()

	s.SetQuery("slow")
	time.Sleep(50 * time.Millisecond) // slow is in flight
	s.SetQuery("fast")

	select {
	case r := <-results:
		if r.Query != "fast" {
			t.Errorf("first result = %q, want fast", r.Query)
		}
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	select {
	case r := <-results:
		t.Errorf("stale result delivered: %+v", r)
	case <-time.After(250 * time.Millisecond):
	}
}

func TestSearchReportsErrors(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("boom")}
	deliver, results := collect()
	s := NewSearch(fs, 5*time.Millisecond, time.Second, deliver)
	defer s.Stop()

	s.SetQuery("x")
	select {
	case r := <-results:
		if r.Err == nil || r.Query != "x" {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
}

func TestSearchExcludesSelf(t *testing.T) {
	fs := &fakeSearcher{}
	deliver, results := collect()
	s := NewSearch(fs, 5*time.Millisecond, time.Second, deliver)
	s.Exclude("alice")
	defer s.Stop()

	next := func(q string) SearchResult {
		t.Helper()
		s.SetQuery(q)
		select {
		case r := <-results:
			return r
		case <-time.After(time.Second):
			t.Fatalf("no result for %q", q)
			return SearchResult{}
		}
	}

	if r := next("alice"); r.Query != "alice" || len(r.Users) != 0 {
		t.Errorf("result = %+v, want alice filtered out", r)
	}
	if r := next("alicia"); len(r.Users) != 1 || r.Users[0].Username != "alicia" {
		t.Errorf("result = %+v, want alicia", r)
	}
}
