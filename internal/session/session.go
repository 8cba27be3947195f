// Package session holds the per-user conversation flows: registration and
// editing a logged record. Flow state lives in an explicit Context that is
// created when a flow starts and dropped when it ends or expires.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/google/uuid"
)

var (
	ErrNoSession = errors.New("no active session")
	ErrExpired   = errors.New("session expired")
)

type Kind int

const (
	KindRegistration Kind = iota + 1
	KindEdit
)

func (k Kind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindEdit:
		return "edit"
	default:
		return "unknown"
	}
}

type State int

const (
	StateGender State = iota + 1
	StateAge
	StateHeight
	StateWeight
	StateTargetWeight
	StateGoal
	StateActivity
	StateDone

	StateAwaitingEditInput
)

func (s State) String() string {
	switch s {
	case StateGender:
		return "gender"
	case StateAge:
		return "age"
	case StateHeight:
		return "height"
	case StateWeight:
		return "weight"
	case StateTargetWeight:
		return "target_weight"
	case StateGoal:
		return "goal"
	case StateActivity:
		return "activity"
	case StateDone:
		return "done"
	case StateAwaitingEditInput:
		return "awaiting_edit_input"
	default:
		return "unknown"
	}
}

// Context is the scratch state of one running flow.
type Context struct {
	ID        string
	UserID    int64
	Kind      Kind
	State     State
	StartedAt time.Time

	// Registration answers collected so far.
	Profile service.ProfileInput

	// RecordID is the food log being edited.
	RecordID int64
}

// Option is a choice offered with a reply, rendered as a button by the
// transport. Value is what comes back when the user picks it.
type Option struct {
	Label string
	Value string
}

// Reply is what a flow step wants shown to the user.
type Reply struct {
	Text    string
	Options []Option
	// Done is set when the step ended the flow.
	Done    bool
	Profile *model.Profile
	Record  *model.FoodLog
}

type key struct {
	userID int64
	kind   Kind
}

// Store keeps running flows keyed by user and flow kind, plus the per-user
// detailed photo preference. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[key]*Context
	detailed map[int64]bool
}

type StoreOption func(*Store)

// WithClock replaces time.Now for flow start times and expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:      time.Now,
		sessions: map[key]*Context{},
		detailed: map[int64]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Now() time.Time { return s.now() }

// Begin starts a flow, replacing any running flow of the same kind.
func (s *Store) Begin(userID int64, kind Kind, state State) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Context{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		State:     state,
		StartedAt: s.now(),
	}
	s.sessions[key{userID, kind}] = c
	return c
}

func (s *Store) Get(userID int64, kind Kind) (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[key{userID, kind}]
	return c, ok
}

// Active returns the user's running flow, edit first.
func (s *Store) Active(userID int64) (*Context, bool) {
	if c, ok := s.Get(userID, KindEdit); ok {
		return c, true
	}
	return s.Get(userID, KindRegistration)
}

func (s *Store) End(userID int64, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key{userID, kind})
}

// EndAll drops every flow of the user and reports whether any was running.
func (s *Store) EndAll(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ended := false
	for _, k := range []Kind{KindRegistration, KindEdit} {
		if _, ok := s.sessions[key{userID, k}]; ok {
			delete(s.sessions, key{userID, k})
			ended = true
		}
	}
	return ended
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) Detailed(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailed[userID]
}

// ToggleDetailed flips the detailed photo mode and returns the new value.
func (s *Store) ToggleDetailed(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := !s.detailed[userID]
	if v {
		s.detailed[userID] = true
	} else {
		delete(s.detailed, userID)
	}
	return v
}
