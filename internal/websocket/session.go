package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSessionClosed is returned by Deliver once the session is torn down.
var ErrSessionClosed = errors.New("session closed")

// Session is one clinician connection as seen by the hub. Its organization
// is fixed at construction from the authenticated identity.
type Session struct {
	ID          string
	OrgID       string
	ClinicianID string

	mu     sync.Mutex // guards queue sends and closed
	queue  chan Message
	closed bool
	done   chan struct{}

	// sendMu is held for the duration of a transport write so that close
	// can wait out an in-flight write.
	sendMu    sync.Mutex
	isClosed  atomic.Bool
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func NewSession(id, orgID, clinicianID string, queueSize int) *Session {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Session{
		ID:          id,
		OrgID:       orgID,
		ClinicianID: clinicianID,
		queue:       make(chan Message, queueSize),
		done:        make(chan struct{}),
	}
}

// enqueue adds msg without blocking. When the queue is full the oldest
// undelivered message is discarded. It reports whether msg was accepted and
// whether an older message was dropped to make room.
func (s *Session) enqueue(msg Message) (accepted, dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, false
	}

	select {
	case s.queue <- msg:
		return true, false
	default:
	}

	select {
	case <-s.queue:
		dropped = true
		s.dropped.Add(1)
	default:
	}

	// Only enqueue sends on the channel and it holds mu, so there is room now.
	s.queue <- msg
	return true, dropped
}

// close tears the session down. It returns only after any in-flight
// Deliver call has finished; no Deliver starts afterwards.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.isClosed.Store(true)
	close(s.done)
	s.discardQueued()
	s.mu.Unlock()

	// Wait for an in-flight Deliver to finish.
	s.sendMu.Lock()
	s.sendMu.Unlock()
	return true
}

// discardQueued empties the queue. The writer may be receiving concurrently,
// so it never blocks.
func (s *Session) discardQueued() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// Messages is the outbound queue consumed by the connection writer.
func (s *Session) Messages() <-chan Message {
	return s.queue
}

// Done is closed when the session is detached.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Closed() bool {
	return s.isClosed.Load()
}

// Deliver runs write unless the session has been torn down.
func (s *Session) Deliver(write func() error) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.isClosed.Load() {
		return ErrSessionClosed
	}
	if err := write(); err != nil {
		return err
	}
	s.delivered.Add(1)
	return nil
}

func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Session) Delivered() uint64 {
	return s.delivered.Load()
}

// Pending is the number of queued, undelivered messages.
func (s *Session) Pending() int {
	return len(s.queue)
}
