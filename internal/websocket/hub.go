package websocket

import (
	"context"
	"fmt"
	"sync"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/models"
)

// Message defines the generic structure for WS communication
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SnapshotPayload is the body of the first message a session receives.
type SnapshotPayload struct {
	Alerts []models.Alert `json:"alerts"`
}

// room holds the sessions watching one organization.
type room struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// Hub fans messages out to the sessions of one organization at a time.
// Organizations never share a lock beyond the brief room lookup.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]*room
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Subscription is the handle returned by Attach.
type Subscription struct {
	session *Session
	orgID   string
}

func (s *Subscription) Session() *Session {
	return s.session
}

func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]*room),
		log:     log.Component("hub"),
		metrics: m,
	}
}

// Run blocks until ctx is cancelled, then detaches every session.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("WebSocket Hub started")
	<-ctx.Done()
	h.log.Info("WebSocket Hub shutting down...")
	h.Shutdown()
}

// Attach registers s to receive messages published to orgID from now on.
func (h *Hub) Attach(orgID string, s *Session) (*Subscription, error) {
	if orgID == "" {
		return nil, fmt.Errorf("session without organization: %w", models.ErrUnauthorized)
	}
	if s.OrgID != orgID {
		return nil, fmt.Errorf("session org %q does not match %q: %w", s.OrgID, orgID, models.ErrForbidden)
	}
	if s.Closed() {
		return nil, ErrSessionClosed
	}

	h.mu.Lock()
	r, ok := h.rooms[orgID]
	if !ok {
		r = &room{sessions: make(map[*Session]struct{})}
		h.rooms[orgID] = r
	}
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	count := len(r.sessions)
	r.mu.Unlock()
	h.mu.Unlock()

	h.metrics.SessionAttached()
	h.log.Info("Session %s attached to org %s (clinician %s). Org sessions: %d", s.ID, orgID, s.ClinicianID, count)
	return &Subscription{session: s, orgID: orgID}, nil
}

// Detach removes the subscription and tears the session down. It is safe to
// call more than once; when it returns the session receives nothing further.
func (h *Hub) Detach(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	removed := false
	if r, ok := h.rooms[sub.orgID]; ok {
		r.mu.Lock()
		if _, ok := r.sessions[sub.session]; ok {
			delete(r.sessions, sub.session)
			removed = true
		}
		if len(r.sessions) == 0 {
			delete(h.rooms, sub.orgID)
		}
		r.mu.Unlock()
	}
	h.mu.Unlock()

	sub.session.close()

	if removed {
		h.metrics.SessionDetached()
		h.log.Info("Session %s detached from org %s (dropped %d messages)", sub.session.ID, sub.orgID, sub.session.Dropped())
	}
}

// Publish enqueues msg on every session attached to orgID at call time and
// returns how many accepted it. It never blocks on a session.
func (h *Hub) Publish(orgID string, msg Message) int {
	h.mu.Lock()
	r, ok := h.rooms[orgID]
	h.mu.Unlock()
	if !ok {
		return 0
	}

	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	accepted := 0
	for _, s := range targets {
		ok, dropped := s.enqueue(msg)
		if dropped {
			h.metrics.Dropped()
			h.log.Debug("Session %s queue full, dropped oldest message", s.ID)
		}
		if ok {
			accepted++
			h.metrics.Published()
		}
	}
	return accepted
}

// PublishAlert wraps an alert event in a Message for the organization.
func (h *Hub) PublishAlert(orgID, eventType string, alert models.Alert) {
	n := h.Publish(orgID, Message{Type: eventType, Payload: alert})
	h.log.Debug("%s %s published to %d sessions", eventType, alert.ID, n)
}

// SessionCount is the number of sessions attached to orgID.
func (h *Hub) SessionCount(orgID string) int {
	h.mu.Lock()
	r, ok := h.rooms[orgID]
	h.mu.Unlock()
	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TotalSessions is the number of sessions across all organizations.
func (h *Hub) TotalSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, r := range h.rooms {
		r.mu.RLock()
		total += len(r.sessions)
		r.mu.RUnlock()
	}
	return total
}

// Shutdown detaches every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var subs []*Subscription
	for orgID, r := range h.rooms {
		r.mu.RLock()
		for s := range r.sessions {
			subs = append(subs, &Subscription{session: s, orgID: orgID})
		}
		r.mu.RUnlock()
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.Detach(sub)
	}
}
