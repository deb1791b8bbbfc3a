package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	loopx "github.com/tanpawarit/parcel-scout/agent/loop"
	nodex "github.com/tanpawarit/parcel-scout/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/parcel-scout/agent/state"
)

var ErrInvalidMessage = nodex.ErrInvalidMessage

type Config struct {
	Store   statex.Store
	Decider contractx.Decider
	Tools   []contractx.Tool
	// MaxRounds bounds decision rounds per turn. Zero means loop.DefaultMaxRounds.
	MaxRounds int
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	SessionID string                 `json:"sessionId"`
	Output    string                 `json:"output"`
	Trace     []contractx.TraceEntry `json:"executionTrace,omitempty"`
}

type Orchestrator struct {
	store  statex.Store
	runner *loopx.Runner

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	locks       *sessionLocks

	now   func() time.Time
	newID func() string
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}

	runner, err := loopx.New(loopx.Config{
		Agent:     contractx.AgentTypeOrchestrator,
		Decider:   cfg.Decider,
		Tools:     cfg.Tools,
		MaxRounds: cfg.MaxRounds,
	})
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:  cfg.Store,
		runner: runner,
		locks:  newSessionLocks(),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one turn. An empty sessionID starts a new session.
// Turns of the same session are serialized.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (Reply, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = o.newID()
	}

	unlock := o.locks.lock(id)
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: id,
		Text:      text,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{SessionID: out.SessionID, Output: out.Reply, Trace: out.Trace}, nil
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks is a keyed mutex. Entries are dropped once nobody holds or waits on them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: map[string]*sessionLock{}}
}

func (s *sessionLocks) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sessionLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *sessionLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
