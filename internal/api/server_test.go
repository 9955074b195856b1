package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/audit"
	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/jobs"
	"github.com/0xayot/davids-sling/internal/launch"
	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const secret = "pouch-secret"

type recorder struct {
	mu     sync.Mutex
	events []launch.Event
	block  chan struct{}
}

func (r *recorder) Handle(_ context.Context, ev launch.Event) (*domain.TokenLaunch, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return &domain.TokenLaunch{ContractAddress: ev.BaseInfo.Address}, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func tuningWithKey(key string) config.StaticTuning {
	t := config.DefaultTuning()
	t.WebhookKey = key
	return config.StaticTuning(t)
}

func newServer(t *testing.T, tuning config.TuningSource) (*Server, *recorder, *observability.Registry) {
	t.Helper()
	rec := &recorder{}
	reg := observability.NewRegistry()
	s := New(context.Background(), Deps{Launches: rec, Tuning: tuning, Metrics: reg})
	return s, rec, reg
}

const event = `{
	"creator": "Creator111",
	"timestamp": "2024-05-01T10:00:00Z",
	"base_info": {"address": "Mint111", "decimals": 6, "lp_amount": "1000000"},
	"quote_info": {"address": "So11111111111111111111111111111111111111112", "decimals": 9, "lp_amount": 300}
}`

func do(s *Server, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(KeyHeader, key)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhook_Accepted(t *testing.T) {
	for _, path := range []string{"/webhook/raydium", "/webhooks/raydium_token_event"} {
		t.Run(path, func(t *testing.T) {
			s, rec, _ := newServer(t, tuningWithKey(secret))

			w := do(s, http.MethodPost, path, secret, event)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"accepted"}`, w.Body.String())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, s.Wait(ctx))
			require.Equal(t, 1, rec.count())
			ev := rec.events[0]
			assert.Equal(t, "Mint111", ev.BaseInfo.Address)
			assert.True(t, ev.QuoteInfo.LPAmount.Equal(decimal.NewFromInt(300)))
			assert.Equal(t, uint8(6), ev.BaseInfo.Decimals)
		})
	}
}

func TestWebhook_RejectedLooksLikeUnknownRoute(t *testing.T) {
	s, rec, reg := newServer(t, tuningWithKey(secret))
	unknown := do(s, http.MethodPost, "/no/such/route", "", event)
	require.Equal(t, http.StatusNotFound, unknown.Code)

	cases := map[string]string{
		"missing key": "",
		"wrong key":   "guess",
		"prefix":      secret[:4],
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/webhook/raydium", key, event)
			assert.Equal(t, unknown.Code, w.Code)
			assert.Equal(t, unknown.Body.String(), w.Body.String())
			assert.Equal(t, unknown.Header().Get("Content-Type"), w.Header().Get("Content-Type"))
		})
	}
	assert.Zero(t, rec.count())
	assert.Equal(t, float64(len(cases)), reg.GetCounter(observability.MetricWebhookRejected).Value())
}

func TestWebhook_UnsetSecret(t *testing.T) {
	s, rec, _ := newServer(t, tuningWithKey(""))
	w := do(s, http.MethodPost, "/webhook/raydium", "anything", event)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, rec.count())
}

type brokenTuning struct{}

func (brokenTuning) Tuning() (config.Tuning, error) { return config.Tuning{}, errors.New("bad env") }

func TestWebhook_TuningError(t *testing.T) {
	s, _, _ := newServer(t, brokenTuning{})
	w := do(s, http.MethodPost, "/webhook/raydium", secret, event)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// The key is read on every request, so rotating it takes effect at once.
type rotating struct {
	mu  sync.Mutex
	key string
}

func (r *rotating) Tuning() (config.Tuning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return tuningWithKey(r.key).Tuning()
}

func TestWebhook_KeyReadPerRequest(t *testing.T) {
	src := &rotating{key: "old"}
	s, _, _ := newServer(t, src)
	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, "/webhook/raydium", "old", event).Code)

	src.mu.Lock()
	src.key = "new"
	src.mu.Unlock()
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/webhook/raydium", "old", event).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, "/webhook/raydium", "new", event).Code)
}

func TestWebhook_BadBody(t *testing.T) {
	s, rec, _ := newServer(t, tuningWithKey(secret))
	for _, body := range []string{`{not json`, `{"quote_info":{"address":"So1","lp_amount":1}}`} {
		w := do(s, http.MethodPost, "/webhook/raydium", secret, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Zero(t, rec.count())
}

func TestWait_TracksInflightEvents(t *testing.T) {
	s, rec, _ := newServer(t, tuningWithKey(secret))
	rec.block = make(chan struct{})

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/webhook/raydium", secret, event).Code)

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(short), context.DeadlineExceeded)

	close(rec.block)
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, 1, rec.count())
}

func TestHealthz(t *testing.T) {
	mon := observability.NewHealthMonitor(time.Second)
	down := false
	mon.Register("rpc", observability.ErrorCheck(observability.StatusUnhealthy, func(context.Context) error {
		if down {
			return errors.New("rpc unreachable")
		}
		return nil
	}))
	s := New(context.Background(), Deps{Tuning: tuningWithKey(secret), Health: mon})

	w := do(s, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body observability.SystemHealth
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, observability.StatusHealthy, body.Status)

	down = true
	w = do(s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "rpc unreachable")
}

func TestMetrics(t *testing.T) {
	reg := observability.SlingMetrics()
	reg.GetCounter(observability.MetricLaunchEvents).Add(2)
	s := New(context.Background(), Deps{Tuning: tuningWithKey(secret), Metrics: reg})

	w := do(s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 2.0, snap[observability.MetricLaunchEvents])

	w = do(s, http.MethodGet, "/metrics/prometheus", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), observability.MetricLaunchEvents+" 2")
}

func TestAudit(t *testing.T) {
	stores := memory.NewStores()
	trail := audit.NewTrail(stores.Transactions, 16)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, trail.RecordTransaction(ctx, &domain.OnchainTransaction{
			TraceID: "trace-1", UserID: 1, WalletID: 1, Status: domain.TxConfirmed, Side: domain.SideBuy,
			FromToken: "So11111111111111111111111111111111111111112", ToToken: "Mint111",
		}))
	}
	s := New(ctx, Deps{Tuning: tuningWithKey(secret), Audit: trail})

	w := do(s, http.MethodGet, "/audit/recent?limit=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Transactions []domain.OnchainTransaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.Transactions, 2)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/audit/recent?limit=0", "", "").Code)

	w = do(s, http.MethodGet, "/audit/trace/trace-1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.Transactions, 3)
}

func TestJobs(t *testing.T) {
	runner := jobs.New(context.Background())
	ran := 0
	require.NoError(t, runner.Add("watchlist", "-", func(context.Context) error { ran++; return nil }))
	s := New(context.Background(), Deps{Tuning: tuningWithKey(secret), Jobs: runner})

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/jobs/watchlist/run", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/jobs/unknown/run", secret, "").Code)

	w := do(s, http.MethodPost, "/jobs/watchlist/run", secret, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"job":"watchlist","status":"ok"}`, w.Body.String())
	assert.Equal(t, 1, ran)

	w = do(s, http.MethodGet, "/jobs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runs":1`)
}
