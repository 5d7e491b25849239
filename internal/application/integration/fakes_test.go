package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/magesync/backend/internal/domain/integration"
)

// fakeSession hands out tok-1, tok-2... and counts logins
type fakeSession struct {
	mu          sync.Mutex
	token       string
	logins      int
	tokenCalls  int
	invalidated []string
	loginErr    error
}

func (s *fakeSession) Open(context.Context) (integration.Session, error) {
	return s, nil
}

func (s *fakeSession) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenCalls++
	if s.token != "" {
		return s.token, nil
	}
	if s.loginErr != nil {
		return "", s.loginErr
	}
	s.logins++
	s.token = fmt.Sprintf("tok-%d", s.logins)
	return s.token, nil
}

func (s *fakeSession) Invalidate(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, token)
	if s.token == token {
		s.token = ""
	}
}

func (s *fakeSession) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

// recordingSleep records every requested delay without waiting
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.delays {
		if got == d {
			n++
		}
	}
	return n
}

// memoryStore is a keyed store that tracks concurrency per write
type memoryStore struct {
	mu       sync.Mutex
	rows     map[string]string
	writes   int
	inFlight int
	maxSeen  int
	busy     map[string]bool
	overlap  bool
	delay    time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]string{}, busy: map[string]bool{}}
}

func (m *memoryStore) upsert(_ context.Context, key, value string) (integration.UpsertOutcome, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	if m.busy[key] {
		m.overlap = true
	}
	m.busy[key] = true
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	delete(m.busy, key)
	m.writes++
	_, existed := m.rows[key]
	m.rows[key] = value
	return integration.UpsertOutcome{Created: !existed, Items: 1}, nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fetchScript decides the outcome of each fetch attempt per target
type fetchScript struct {
	mu       sync.Mutex
	attempts map[string]int
	failures map[string][]error
}

func newFetchScript() *fetchScript {
	return &fetchScript{attempts: map[string]int{}, failures: map[string][]error{}}
}

// failWith queues errors returned by the first attempts of id
func (f *fetchScript) failWith(id string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = append(f.failures[id], errs...)
}

func (f *fetchScript) fetch(_ context.Context, token string, t integration.Target) (integration.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.attempts[t.ID]
	f.attempts[t.ID] = n + 1
	if queued := f.failures[t.ID]; n < len(queued) && queued[n] != nil {
		return integration.RawRecord{}, queued[n]
	}
	return integration.RawRecordOf(map[string]string{"id": t.ID, "token": token}), nil
}

func (f *fetchScript) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func (f *fetchScript) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.attempts {
		n += c
	}
	return n
}

func transportError() error {
	return &integration.RemoteHTTPError{StatusCode: 503, Body: "Service Unavailable"}
}

// testJob wires a fetch script and a memory store into a job over fixed targets
func testJob(targets []integration.Target, script *fetchScript, store *memoryStore) Job[integration.RawRecord, string] {
	return Job[integration.RawRecord, string]{
		Name: "test",
		Enumerate: func(context.Context, integration.Session) ([]integration.Target, error) {
			return targets, nil
		},
		Fetch: script.fetch,
		Normalize: func(t integration.Target, raw integration.RawRecord) (string, error) {
			id, ok := raw.Get("id")
			if !ok {
				return "", errors.New("record without id")
			}
			return "record-" + id, nil
		},
		Upsert: func(ctx context.Context, t integration.Target, v string) (integration.UpsertOutcome, error) {
			return store.upsert(ctx, t.ID, v)
		},
	}
}

func idsOf(n int) []integration.Target {
	targets := make([]integration.Target, 0, n)
	for i := 1; i <= n; i++ {
		targets = append(targets, integration.NewTarget(fmt.Sprintf("1000%05d", i)))
	}
	return targets
}

// recorderSpy counts recorder callbacks
type recorderSpy struct {
	mu       sync.Mutex
	targets  int
	failed   int
	passes   []*integration.SyncResult
	attempts []int
}

func (r *recorderSpy) TargetFinished(_ string, succeeded bool, attempts int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets++
	if !succeeded {
		r.failed++
	}
	r.attempts = append(r.attempts, attempts)
}

func (r *recorderSpy) PassFinished(result *integration.SyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes = append(r.passes, result)
}
