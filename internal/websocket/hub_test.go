package websocket

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHub() (*Hub, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewHub(logger.Nop(), m), m
}

func msg(i int) Message {
	return Message{Type: models.EventAlertCreated, Payload: i}
}

func drain(s *Session) []Message {
	var out []Message
	for {
		select {
		case m := <-s.Messages():
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestHub_PublishReachesOnlySessionsAttachedAtCallTime(t *testing.T) {
	h, _ := newTestHub()

	early := NewSession("s1", "org-1", "dr-1", 8)
	_, err := h.Attach("org-1", early)
	require.NoError(t, err)

	assert.Equal(t, 1, h.Publish("org-1", msg(1)))

	late := NewSession("s2", "org-1", "dr-2", 8)
	_, err = h.Attach("org-1", late)
	require.NoError(t, err)

	assert.Len(t, drain(early), 1)
	assert.Empty(t, drain(late))
	assert.Equal(t, 2, h.SessionCount("org-1"))
}

func TestHub_OrganizationsAreIsolated(t *testing.T) {
	h, _ := newTestHub()

	a := NewSession("a", "org-a", "dr-1", 8)
	b := NewSession("b", "org-b", "dr-2", 8)
	_, err := h.Attach("org-a", a)
	require.NoError(t, err)
	_, err = h.Attach("org-b", b)
	require.NoError(t, err)

	h.Publish("org-a", msg(1))

	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
	assert.Zero(t, h.Publish("org-none", msg(2)))
}

func TestHub_FullQueueDropsOldest(t *testing.T) {
	h, m := newTestHub()

	s := NewSession("s1", "org-1", "dr-1", 2)
	_, err := h.Attach("org-1", s)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, h.Publish("org-1", msg(i)), "publish never rejects a live session")
	}

	got := drain(s)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Payload)
	assert.Equal(t, 3, got[1].Payload)
	assert.Equal(t, uint64(1), s.Dropped())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryDropped))
}

func TestHub_DetachedSessionReceivesNothing(t *testing.T) {
	h, m := newTestHub()

	s := NewSession("s1", "org-1", "dr-1", 8)
	sub, err := h.Attach("org-1", s)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsAttached))

	h.Detach(sub)
	h.Detach(sub)

	assert.True(t, s.Closed())
	assert.NotPanics(t, func() {
		assert.Zero(t, h.Publish("org-1", msg(1)))
	})
	assert.Empty(t, drain(s))
	assert.Zero(t, h.SessionCount("org-1"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsAttached))

	err = s.Deliver(func() error {
		t.Fatal("write must not run after teardown")
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = h.Attach("org-1", s)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestHub_AttachRequiresOrganization(t *testing.T) {
	h, _ := newTestHub()

	_, err := h.Attach("", NewSession("s1", "", "dr-1", 8))
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = h.Attach("org-2", NewSession("s2", "org-1", "dr-1", 8))
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Zero(t, h.TotalSessions())
}

func TestHub_ConcurrentPublishAttachDetach(t *testing.T) {
	h, _ := newTestHub()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Publish("org-1", msg(i))
			}
		}()
	}
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s := NewSession(fmt.Sprintf("s-%d-%d", c, i), "org-1", "dr", 4)
				sub, err := h.Attach("org-1", s)
				if !assert.NoError(t, err) {
					return
				}
				drain(s)
				h.Detach(sub)
				assert.Empty(t, drain(s))
			}
		}(c)
	}
	wg.Wait()

	assert.Zero(t, h.TotalSessions())
}

func TestHub_Shutdown(t *testing.T) {
	h, _ := newTestHub()

	sessions := []*Session{
		NewSession("s1", "org-1", "dr-1", 4),
		NewSession("s2", "org-2", "dr-2", 4),
	}
	for _, s := range sessions {
		_, err := h.Attach(s.OrgID, s)
		require.NoError(t, err)
	}

	h.Shutdown()

	for _, s := range sessions {
		assert.True(t, s.Closed())
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s not torn down", s.ID)
		}
	}
	assert.Zero(t, h.TotalSessions())
}

func TestSession_DeliverPropagatesWriteError(t *testing.T) {
	s := NewSession("s1", "org-1", "dr-1", 1)
	boom := errors.New("broken pipe")

	assert.ErrorIs(t, s.Deliver(func() error { return boom }), boom)
	assert.NoError(t, s.Deliver(func() error { return nil }))
	assert.Equal(t, uint64(1), s.Delivered())
}

func TestHub_LogsComponentOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.log")
	log, err := logger.New(logger.Config{Level: logger.INFO, LogFilePath: path, Output: &bytes.Buffer{}})
	require.NoError(t, err)

	h := NewHub(log, nil)
	s := NewSession("s1", "org-1", "dr-1", 4)
	sub, err := h.Attach("org-1", s)
	require.NoError(t, err)
	h.Detach(sub)
	require.NoError(t, log.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, `"component":"hub"`), line)
	}
}
