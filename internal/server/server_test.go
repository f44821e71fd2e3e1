package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WardWatchAPI/internal/auth"
	"WardWatchAPI/internal/config"
	"WardWatchAPI/internal/evaluator"
	"WardWatchAPI/internal/handler"
	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/repository"
	"WardWatchAPI/internal/service"
	"WardWatchAPI/internal/websocket"
)

type stack struct {
	url  string
	auth *auth.Authenticator
	hub  *websocket.Hub
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedMethods: []string{"GET", "POST", "PUT"},
			RateLimitPerMinute: 1000,
			EnableRateLimit:    true,
		},
	}

	a, err := auth.New("0123456789abcdef0123456789abcdef", "", time.Hour)
	require.NoError(t, err)
	eval, err := evaluator.New(evaluator.DefaultPolicy())
	require.NoError(t, err)

	hub := websocket.NewHub(log, m)
	thresholds := service.NewThresholdService(repository.NewMemoryThresholdRepository(), log)
	alerts := service.NewAlertService(repository.NewMemoryAlertRepository(), m, log)
	vitals := service.NewVitalsService(thresholds, eval, alerts,
		service.VitalsConfig{AutoInitOrgs: true, BatchConcurrency: 2}, m, log, hub)

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(cfg, log, m)
	srv.RegisterHandlers(ctx, a, reg, Handlers{
		Alerts:     handler.NewAlertHandler(alerts, log),
		Thresholds: handler.NewThresholdHandler(thresholds, log),
		Vitals:     handler.NewVitalsHandler(vitals, log),
		Ws:         handler.NewWsHandler(hub, alerts, 16, log),
		Health:     handler.NewHealthHandler(nil, nil, hub, log),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Shutdown()
		ts.Close()
		cancel()
	})

	return &stack{url: ts.URL, auth: a, hub: hub}
}

func (s *stack) token(t *testing.T, id models.Identity) string {
	t.Helper()
	tok, err := s.auth.Issue(id)
	require.NoError(t, err)
	return tok
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readMessage(t *testing.T, conn *gws.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m wireMessage
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestServer_ReadingReachesWebsocket(t *testing.T) {
	s := newStack(t)
	tok := s.token(t, models.Identity{UserID: "nurse-1", OrgID: "org-1", Role: models.RoleClinician})

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/ws?token=" + tok
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readMessage(t, conn)
	require.Equal(t, models.EventSnapshot, snap.Type)

	req, err := http.NewRequest(http.MethodPost, s.url+"/api/v1/vitals",
		strings.NewReader(`{"patient_id":"p-1","heart_rate":130}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := readMessage(t, conn)
	assert.Equal(t, models.EventAlertCreated, msg.Type)
	var alert models.Alert
	require.NoError(t, json.Unmarshal(msg.Payload, &alert))
	assert.Equal(t, "p-1", alert.PatientID)
	assert.Equal(t, models.ChannelHeartRate, alert.Channel)
}

func TestServer_WebsocketRequiresToken(t *testing.T) {
	s := newStack(t)

	_, resp, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.url, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, s.hub.TotalSessions())
}

func TestServer_MetricsAndHealth(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.url + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `wardwatch_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
