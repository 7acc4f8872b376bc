// Package notify serializes handling of asynchronous notifications sent by
// the running engine.
//
// A Sequencer runs queued items one at a time on a single worker goroutine,
// in enqueue order. An item's processor finishes (or fails) before the next
// one starts, and a failing or panicking processor never affects the items
// after it. Registry and Dispatcher map decoded peer messages onto a
// Sequencer, and Pump feeds them from a newline-delimited JSON stream.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
)

// State is the lifecycle state of a Sequencer.
type State int

const (
	// StateRunning accepts and processes items.
	StateRunning State = iota
	// StateDraining rejects new items and finishes the accepted ones.
	StateDraining
	// StateStopped has processed every accepted item. It is final.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProcessFunc handles one queued item.
type ProcessFunc func(ctx context.Context, item Item) error

// Item is a unit of queued work.
type Item struct {
	// ID identifies the item in logs. Enqueue assigns one when zero.
	ID      uuid.UUID
	Payload any
	Process ProcessFunc
}

// Sequencer is a FIFO work queue with a single worker.
type Sequencer struct {
	ctx    context.Context
	logger config.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Item
	state   State

	done     chan struct{}
	stopOnce sync.Once
}

// NewSequencer starts a Sequencer. ctx is handed to every processor; it does
// not stop the worker, use Stop for that.
func NewSequencer(ctx context.Context, logger config.Logger) *Sequencer {
	s := &Sequencer{
		ctx:    ctx,
		logger: config.OrNop(logger),
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.work()
	return s
}

// Enqueue appends item to the queue. Once Stop has been called it does
// nothing and returns false.
func (s *Sequencer) Enqueue(item Item) bool {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		s.logger.Debug("dropping notification, queue stopped", "id", item.ID, "state", s.state)
		return false
	}
	s.pending = append(s.pending, item)
	s.cond.Signal()
	return true
}

// Stop closes the queue to new items and returns once every item accepted
// before it has been processed. It is safe to call more than once.
func (s *Sequencer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDraining
		s.cond.Broadcast()
		s.mu.Unlock()
	})

	<-s.done

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of items waiting to start.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Sequencer) work() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.pending) == 0 && s.state == StateRunning {
			s.cond.Wait()
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		item := s.pending[0]
		s.pending[0] = Item{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.run(item)
	}
}

// run processes one item, isolating errors and panics.
func (s *Sequencer) run(item Item) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification processor panicked", "id", item.ID, "panic", r)
		}
	}()

	if item.Process == nil {
		s.logger.Warn("notification has no processor", "id", item.ID)
		return
	}
	if err := item.Process(s.ctx, item); err != nil {
		s.logger.Error("notification processing failed", "id", item.ID, "error", err)
	}
}
