package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	auditrepo "github.com/smallbiznis/repairdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/repairdesk/internal/audit/service"
	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/config"
	exportservice "github.com/smallbiznis/repairdesk/internal/export/service"
	"github.com/smallbiznis/repairdesk/internal/migration"
	"github.com/smallbiznis/repairdesk/internal/observability"
	obsmetrics "github.com/smallbiznis/repairdesk/internal/observability/metrics"
	"github.com/smallbiznis/repairdesk/internal/providers/telegram"
	"github.com/smallbiznis/repairdesk/internal/ratelimit"
	requestdomain "github.com/smallbiznis/repairdesk/internal/request/domain"
	"github.com/smallbiznis/repairdesk/internal/request/repository"
	requestservice "github.com/smallbiznis/repairdesk/internal/request/service"
	"github.com/smallbiznis/repairdesk/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	records []requestdomain.Record
}

func (n *recordingNotifier) Notify(_ context.Context, rec requestdomain.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

type fakeTelegram struct {
	bot       telegram.Bot
	botErr    error
	updates   []telegram.Update
	updateErr error
}

func (f *fakeTelegram) PostMessage(context.Context, string, string) error { return nil }

func (f *fakeTelegram) GetMe(context.Context) (telegram.Bot, error) { return f.bot, f.botErr }

func (f *fakeTelegram) GetUpdates(context.Context) ([]telegram.Update, error) {
	return f.updates, f.updateErr
}

type testServer struct {
	server   *Server
	db       *gorm.DB
	clock    *clock.FakeClock
	notifier *recordingNotifier
	telegram *fakeTelegram
}

type testOptions struct {
	adminToken     string
	burst          int
	trustedProxies []string
}

func newTestServer(t *testing.T, opts testOptions) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := dbtest.New(t.Name())
	require.NoError(t, err)
	require.NoError(t, migration.Apply(conn, "sqlite3"))

	clk := clock.NewFakeClock(time.Date(2025, 5, 17, 9, 30, 0, 0, time.UTC))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	cfg := config.Config{
		AdminToken: opts.adminToken,
		Telegram:   config.TelegramConfig{BotToken: "1234567890:AAFake_token_value9xYz", ChatID: "42"},
	}

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	repo := repository.Provide(clk)
	notifier := &recordingNotifier{}
	tg := &fakeTelegram{}

	var limiter *ratelimit.IntakeLimiter
	if opts.burst > 0 {
		limiter = ratelimit.NewIntakeLimiterWithStore(ratelimit.NewMemoryBucket(clk), 1, opts.burst)
	}

	engine, err := NewEngine(observability.Config{}, obsmetrics.NewHTTPMetricsWithRegisterer(prometheus.NewRegistry()), opts.trustedProxies)
	require.NoError(t, err)
	srv, err := NewServer(ServerParams{
		Gin:     engine,
		Cfg:     cfg,
		DB:      conn,
		Pricing: config.NewPricingCatalog(config.DefaultPricing()),
		RequestSvc: requestservice.New(requestservice.Params{
			DB: conn, Log: zap.NewNop(), Repo: repo, Notifier: notifier, AuditSvc: auditSvc,
		}),
		RequestRepo: repo,
		ExportSvc: exportservice.New(exportservice.Params{
			DB: conn, Log: zap.NewNop(), Config: cfg, Clock: clk, Repo: repo, AuditSvc: auditSvc,
		}),
		AuditSvc: auditSvc,
		Telegram: tg,
		Limiter:  limiter,
	})
	require.NoError(t, err)

	return testServer{server: srv, db: conn, clock: clk, notifier: notifier, telegram: tg}
}

func (ts testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(w, req)
	return w
}

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/request", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSubmitRequestJSONAccepted(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	req := postJSON(`{"name":"Ivan","phone":"+7 900 000-00-00","brand":"Atlant","problem":"not cooling","preferred_time":"evening"}`)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, msgRequestAccepted, body["message"])

	var rec requestdomain.Record
	require.NoError(t, ts.db.First(&rec).Error)
	assert.Equal(t, "Ivan", rec.Name)
	assert.Equal(t, "Atlant", rec.Brand)
	assert.Equal(t, "203.0.113.7", rec.SourceIP)
	assert.Equal(t, "test-agent", rec.UserAgent)
	assert.Equal(t, "2025-05-17T09:30:00Z", rec.CreatedAt)
	assert.Equal(t, 1, ts.notifier.count())
}

func TestSubmitRequestFormAccepted(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	form := url.Values{"name": {"  Olga "}, "phone": {" 8-900-111-22-33 "}}
	req := httptest.NewRequest(http.MethodPost, "/api/request", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "198.51.100.4:51234"
	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code)

	var rec requestdomain.Record
	require.NoError(t, ts.db.First(&rec).Error)
	assert.Equal(t, "Olga", rec.Name)
	assert.Equal(t, "8-900-111-22-33", rec.Phone)
	assert.Equal(t, "", rec.Brand)
	assert.Equal(t, "198.51.100.4", rec.SourceIP)
}

func TestSubmitRequestMissingFieldsRejected(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	for _, body := range []string{
		`{"name":"","phone":"123"}`,
		`{"name":"Ivan","phone":"   "}`,
		`{}`,
		`not json`,
	} {
		w := ts.do(postJSON(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		resp := decodeBody(t, w)
		assert.Equal(t, false, resp["ok"], body)
		assert.Equal(t, msgMissingRequired, resp["message"], body)
	}

	var count int64
	require.NoError(t, ts.db.Model(&requestdomain.Record{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, ts.notifier.count())
}

func TestSubmitRequestNumericJSONValues(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(postJSON(`{"name":"Ivan","phone":89001112233}`))
	require.Equal(t, http.StatusOK, w.Code)

	var rec requestdomain.Record
	require.NoError(t, ts.db.First(&rec).Error)
	assert.Equal(t, "89001112233", rec.Phone)
}

func TestSubmitRequestPersistenceFailure(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	require.NoError(t, ts.db.Exec("DROP TABLE requests").Error)

	w := ts.do(postJSON(`{"name":"Ivan","phone":"123"}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, msgPersistenceFailed, body["message"])
	assert.Zero(t, ts.notifier.count())
}

func TestSubmitRequestRateLimited(t *testing.T) {
	ts := newTestServer(t, testOptions{burst: 2})

	for i := 0; i < 2; i++ {
		w := ts.do(postJSON(`{"name":"Ivan","phone":"123"}`))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(postJSON(`{"name":"Ivan","phone":"123"}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, msgRateLimited, decodeBody(t, w)["message"])

	ts.clock.Advance(2 * time.Minute)
	assert.Equal(t, http.StatusOK, ts.do(postJSON(`{"name":"Ivan","phone":"123"}`)).Code)
}

func TestSubmitRequestRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	ts := newTestServer(t, testOptions{burst: 2})

	accepted := 0
	for i := 0; i < 20; i++ {
		req := postJSON(`{"name":"Ivan","phone":"123"}`)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		if ts.do(req).Code == http.StatusOK {
			accepted++
		}
	}
	assert.Equal(t, 2, accepted)

	// The stored origin still prefers the forwarded address.
	var rec requestdomain.Record
	require.NoError(t, ts.db.Order("id").First(&rec).Error)
	assert.Equal(t, "198.51.100.1", rec.SourceIP)
}

func TestNewEngineRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewEngine(observability.Config{}, obsmetrics.NewHTTPMetricsWithRegisterer(prometheus.NewRegistry()), []string{"not-an-ip"})
	assert.Error(t, err)
}

func TestSubmitRequestRateLimitHonoursTrustedProxy(t *testing.T) {
	ts := newTestServer(t, testOptions{burst: 1, trustedProxies: []string{"10.0.0.0/8"}})

	send := func(client string) int {
		req := postJSON(`{"name":"Ivan","phone":"123"}`)
		req.RemoteAddr = "10.1.2.3:40000"
		req.Header.Set("X-Forwarded-For", client)
		return ts.do(req).Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2"))
}

func TestExportCSVRequiresToken(t *testing.T) {
	ts := newTestServer(t, testOptions{adminToken: "s3cret"})

	for _, target := range []string{"/admin/export.csv", "/admin/export.csv?token=wrong"} {
		w := ts.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, w.Code, target)
		assert.Equal(t, msgForbidden, decodeBody(t, w)["message"], target)
	}
}

func TestExportCSVStreamsNewestFirst(t *testing.T) {
	ts := newTestServer(t, testOptions{adminToken: "s3cret"})

	require.Equal(t, http.StatusOK, ts.do(postJSON(`{"name":"first","phone":"1"}`)).Code)
	ts.clock.Advance(time.Minute)
	require.Equal(t, http.StatusOK, ts.do(postJSON(`{"name":"second","phone":"2","problem":"a, \"quoted\"\nline"}`)).Code)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin/export.csv?token=s3cret", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="requests_20250517_093100.csv"`, w.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name", "phone", "brand", "problem", "preferred_time", "created_at", "source_ip", "user_agent"}, rows[0])
	assert.Equal(t, "second", rows[1][1])
	assert.Equal(t, "a, \"quoted\"\nline", rows[1][4])
	assert.Equal(t, "first", rows[2][1])
}

func TestExportCSVOpenWithoutSecret(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin/export.csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "id,name,phone,brand,problem,preferred_time,created_at,source_ip,user_agent\n", w.Body.String())
}

func TestListAuditLogs(t *testing.T) {
	ts := newTestServer(t, testOptions{adminToken: "s3cret"})
	require.Equal(t, http.StatusOK, ts.do(postJSON(`{"name":"Ivan","phone":"1"}`)).Code)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs?action=request.created", nil)
	req.Header.Set(headerAdminToken, "s3cret")
	w = ts.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	entry := data[0].(map[string]any)
	assert.Equal(t, "request.created", entry["action"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/admin/audit-logs?token=s3cret&page_token=not-a-cursor", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifierInfo(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	ts.telegram.bot = telegram.Bot{ID: 1, IsBot: true, FirstName: "Repair", Username: "repair_bot"}
	ts.telegram.updates = []telegram.Update{
		{UpdateID: 1, Message: &telegram.Message{Chat: telegram.Chat{ID: 42, FirstName: "Anna"}}},
		{UpdateID: 2, EditedMessage: &telegram.Message{Chat: telegram.Chat{ID: 42, FirstName: "Anna"}}},
		{UpdateID: 3, Message: &telegram.Message{Chat: telegram.Chat{ID: -100, Title: "Staff"}}},
		{UpdateID: 4},
	}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin/notifier-info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp notifierInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Configured)
	assert.Equal(t, "42", resp.ChatID)
	assert.Equal(t, "1234567890:****9xYz", resp.BotToken)
	require.NotNil(t, resp.Bot)
	assert.Equal(t, "repair_bot", resp.Bot.Username)
	assert.Equal(t, []notifierChat{{ID: "42", Name: "Anna"}, {ID: "-100", Name: "Staff"}}, resp.Chats)
	assert.NotContains(t, w.Body.String(), "AAFake_token_value")
}

func TestNotifierInfoReportsProviderErrors(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	ts.telegram.botErr = &telegram.APIError{StatusCode: 401, ErrorCode: 401, Description: "Unauthorized"}
	ts.telegram.updateErr = errors.New("dial tcp: connection refused")

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin/notifier-info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp notifierInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Bot)
	assert.Equal(t, "Unauthorized", resp.BotError)
	assert.Equal(t, "unavailable", resp.UpdatesError)
	assert.Empty(t, resp.Chats)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testOptions{burst: 5})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	require.Equal(t, http.StatusOK, ts.do(postJSON(`{"name":"Ivan","phone":"1"}`)).Code)
	w = ts.do(httptest.NewRequest(http.MethodGet, "/healthz?verbose=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","requests":1,"notifier":true,"rate_limit":"custom"}`, w.Body.String())
}

func TestPagesRenderPricing(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Компрессор")
	assert.Contains(t, w.Body.String(), "16\u00a0500")

	for _, path := range []string{"/about", "/contacts", "/static/js/app.js"} {
		w := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPricing(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/pricing", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []config.PricingEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, config.DefaultPricing(), resp.Data)
}

func TestFormatRoubles(t *testing.T) {
	assert.Equal(t, "0", formatRoubles(0))
	assert.Equal(t, "900", formatRoubles(900))
	assert.Equal(t, "4\u00a0500", formatRoubles(4500))
	assert.Equal(t, "1\u00a0234\u00a0567", formatRoubles(1234567))
	assert.Equal(t, "-12\u00a0000", formatRoubles(-12000))
}
