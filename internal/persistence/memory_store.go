package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of UserStore,
// EventStore and AnswerStore backed by maps. It is non-durable and intended
// for tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[int64]*api.UserRecord
	events  map[int64][]api.EventLogEntry
	answers map[int64]map[int]bool
	nextID  int64
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[int64]*api.UserRecord),
		events:  make(map[int64][]api.EventLogEntry),
		answers: make(map[int64]map[int]bool),
	}
}

// Ensure InMemoryStore implements the interfaces.
var _ UserStore = (*InMemoryStore)(nil)

var _ EventStore = (*InMemoryStore)(nil)

var _ AnswerStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) CreateUser(ctx context.Context, u *api.UserRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.UserID]; ok {
		return false, nil
	}
	copied := *u
	s.users[u.UserID] = &copied
	return true, nil
}

func (s *InMemoryStore) GetUser(ctx context.Context, userID int64) (*api.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *InMemoryStore) ListUsers(ctx context.Context) ([]*api.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*api.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		copied := *u
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastAction.After(result[j].LastAction)
	})
	return result, nil
}

func (s *InMemoryStore) CompareAndSwapStage(ctx context.Context, userID int64, from, to api.Stage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if u.Stage != from {
		return ErrStaleStage
	}
	u.Stage = to
	u.LastAction = at
	return nil
}

func (s *InMemoryStore) SetSubscription(ctx context.Context, userID int64, sub api.Subscription, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Subscribed = sub
	u.LastAction = at
	return nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.EventLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ev.ID = s.nextID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events[ev.UserID] = append(s.events[ev.UserID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, userID int64) ([]api.EventLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[userID]
	out := make([]api.EventLogEntry, len(events))
	copy(out, events)
	return out, nil
}

func (s *InMemoryStore) RecordAnswer(ctx context.Context, a api.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.answers[a.UserID]
	if !ok {
		m = make(map[int]bool)
		s.answers[a.UserID] = m
	}
	// Last write wins per question.
	m[a.Question] = a.Answer
	return nil
}

func (s *InMemoryStore) ListAnswers(ctx context.Context, userID int64) ([]api.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.answers[userID]
	out := make([]api.AnswerRecord, 0, len(m))
	for q, yes := range m {
		out = append(out, api.AnswerRecord{UserID: userID, Question: q, Answer: yes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Question < out[j].Question })
	return out, nil
}

func (s *InMemoryStore) TallyYes(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, yes := range s.answers[userID] {
		if yes {
			n++
		}
	}
	return n, nil
}
