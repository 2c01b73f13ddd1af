package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/recorder"
)

type mocks struct {
	fetcher  *MockFetcher
	store    *MockStore
	archive  *MockArchiver
	notifier *MockNotifier
}

func newMocks(t *testing.T) mocks {
	ctrl := gomock.NewController(t)
	return mocks{
		fetcher:  NewMockFetcher(ctrl),
		store:    NewMockStore(ctrl),
		archive:  NewMockArchiver(ctrl),
		notifier: NewMockNotifier(ctrl),
	}
}

var testOptions = Options{
	Limit:             10,
	TopAssets:         5,
	BigMoverThreshold: 10,
	Interval:          time.Hour,
	RetryBackoff:      10 * time.Millisecond,
}

// textMatcher matches a string argument containing every fragment.
type textMatcher []string

func containsText(fragments ...string) gomock.Matcher { return textMatcher(fragments) }

func (m textMatcher) Matches(x any) bool {
	s, ok := x.(string)
	if !ok {
		return false
	}
	for _, f := range m {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}

func (m textMatcher) String() string { return "contains " + strings.Join(m, ", ") }

func (m mocks) scheduler(opts Options) *Scheduler {
	return NewScheduler(m.fetcher, m.store, m.archive, m.notifier, opts)
}

func testSnapshot() *model.Snapshot {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &model.Snapshot{
		ObservedAt: at,
		Raw:        []byte(`{"data":[]}`),
		Quotes: []model.AssetQuote{
			{ID: 1, Symbol: "BTC", Name: "Bitcoin", Price: decimal.NewFromInt(60000), MarketCap: 1.2e12,
				Volume24h: 3e10, PercentChange1h: 0.5, PercentChange24h: 2, PercentChange7d: 4, ObservedAt: at},
			{ID: 2, Symbol: "PUMP", Name: "Pump", Price: decimal.NewFromFloat(0.01), MarketCap: 1e7,
				Volume24h: 5e6, PercentChange1h: 25, PercentChange24h: 40, PercentChange7d: 60, ObservedAt: at},
		},
	}
}

func TestRunCycle_FetchHTTP500SkipsCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	fetcher := collector.NewCoinMarketCapFetcher(srv.URL, "key", 2*time.Second, "")

	m := newMocks(t)
	// No store or archive expectations: any write fails the test.
	m.notifier.EXPECT().
		Notify(gomock.Any(), containsText("skipped"), gomock.Nil()).
		Return(true).
		Times(1)

	s := NewScheduler(fetcher, m.store, m.archive, m.notifier, testOptions)
	res := s.RunCycle(context.Background())

	var fe *collector.FetchError
	require.True(t, errors.As(res.Err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome)
	assert.False(t, res.Delivered)
	assert.False(t, s.Status().Healthy())
}

func TestRunCycle_PipelineOrder(t *testing.T) {
	m := newMocks(t)
	snap := testSnapshot()

	gomock.InOrder(
		m.fetcher.EXPECT().Fetch(gomock.Any(), 10).Return(snap, nil),
		m.archive.EXPECT().SaveRaw(snap.Raw, snap.ObservedAt).Return("data/raw.json", nil),
		m.store.EXPECT().AppendSnapshot(gomock.Any(), snap).Return(nil),
		m.store.EXPECT().AppendAnalysis(gomock.Any(), gomock.Len(len(model.Views)), snap.ObservedAt).Return(nil),
		m.archive.EXPECT().SaveChart(gomock.Any(), snap.ObservedAt).Return("data/chart.png", nil),
		m.notifier.EXPECT().
			Notify(gomock.Any(), containsText("Pump (PUMP) has risen 25.00%"), gomock.Nil()).
			Return(true),
		m.notifier.EXPECT().
			Notify(gomock.Any(), containsText("CRYPTO MARKET OVERVIEW", "DETAILED ANALYSIS"), gomock.Not(gomock.Nil())).
			Return(true),
		m.store.EXPECT().MarkDelivered(gomock.Any(), snap.ObservedAt).Return(nil),
	)

	s := m.scheduler(testOptions)
	res := s.RunCycle(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, metrics.OutcomeOK, res.Outcome)
	assert.Equal(t, 2, res.Assets)
	assert.True(t, res.Delivered)
	assert.NotEmpty(t, res.ID)

	st := s.Status()
	assert.Equal(t, res.ID, st.CycleID)
	assert.True(t, st.Healthy())
	assert.False(t, st.LastSuccess.IsZero())
}

func TestRunCycle_StoreFailuresDoNotStopReport(t *testing.T) {
	m := newMocks(t)
	snap := testSnapshot()
	snap.Quotes[1].PercentChange1h = 1 // no alerts

	storeErr := &recorder.StoreError{Op: "append_snapshot", Err: errors.New("UNIQUE constraint failed")}
	m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(snap, nil)
	m.archive.EXPECT().SaveRaw(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))
	m.store.EXPECT().AppendSnapshot(gomock.Any(), gomock.Any()).Return(storeErr)
	m.store.EXPECT().AppendAnalysis(gomock.Any(), gomock.Any(), gomock.Any()).Return(storeErr)
	m.archive.EXPECT().SaveChart(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Not(gomock.Nil())).Return(true).Times(1)
	m.store.EXPECT().MarkDelivered(gomock.Any(), gomock.Any()).Return(nil)

	res := m.scheduler(testOptions).RunCycle(context.Background())
	assert.Equal(t, metrics.OutcomeOK, res.Outcome)
	assert.True(t, res.Delivered)
}

func TestRunCycle_UndeliveredReportStaysUnmarked(t *testing.T) {
	m := newMocks(t)
	snap := testSnapshot()
	snap.Quotes[1].PercentChange1h = 1

	m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(snap, nil)
	m.archive.EXPECT().SaveRaw(gomock.Any(), gomock.Any()).Return("raw.json", nil)
	m.store.EXPECT().AppendSnapshot(gomock.Any(), gomock.Any()).Return(nil)
	m.store.EXPECT().AppendAnalysis(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.archive.EXPECT().SaveChart(gomock.Any(), gomock.Any()).Return("chart.png", nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(false)
	m.store.EXPECT().MarkDelivered(gomock.Any(), gomock.Any()).Times(0)

	res := m.scheduler(testOptions).RunCycle(context.Background())
	assert.Equal(t, metrics.OutcomeOK, res.Outcome)
	assert.False(t, res.Delivered)
}

func TestRun_RecoversPanicAndStops(t *testing.T) {
	m := newMocks(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, int) (*model.Snapshot, error) {
		cancel()
		panic("boom")
	})

	s := m.scheduler(testOptions)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	st := s.Status()
	assert.Equal(t, metrics.OutcomePanic, st.Outcome)
	assert.Contains(t, st.Error, "boom")
}

func TestRun_BacksOffAfterPanicThenContinues(t *testing.T) {
	m := newMocks(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, int) (*model.Snapshot, error) {
			panic("first cycle blew up")
		}),
		m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, &collector.FetchError{Err: errors.New("offline")}),
	)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Nil()).DoAndReturn(func(context.Context, string, []byte) bool {
		cancel()
		return true
	})

	done := make(chan error, 1)
	go func() { done <- m.scheduler(testOptions).Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not retry after the backoff")
	}
}

func TestRun_CronMode(t *testing.T) {
	m := newMocks(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, &collector.FetchError{Err: errors.New("offline")})
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Nil()).DoAndReturn(func(context.Context, string, []byte) bool {
		cancel()
		return true
	})

	opts := testOptions
	opts.Cron = "0 0 0 1 1 *"
	done := make(chan error, 1)
	go func() { done <- m.scheduler(opts).Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cron scheduler did not stop")
	}
}

func TestRun_InvalidCron(t *testing.T) {
	m := newMocks(t)
	opts := testOptions
	opts.Cron = "every now and then"

	err := m.scheduler(opts).Run(context.Background())
	require.Error(t, err)
}

func TestCommands(t *testing.T) {
	m := newMocks(t)
	s := m.scheduler(testOptions)
	cmds := s.Commands()
	require.Contains(t, cmds, "/report")
	require.Contains(t, cmds, "/status")

	assert.Equal(t, "No cycle has run yet.", cmds["/status"](context.Background()))

	m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, &collector.FetchError{StatusCode: 503, Err: errors.New("unavailable")})
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Nil()).Return(true)

	reply := cmds["/report"](context.Background())
	assert.Contains(t, reply, "Outcome: Skipped")
	assert.Contains(t, reply, "Report delivered: false")
	assert.Contains(t, reply, "unavailable")
}

func TestCommands_ReportDeliveredHasNoReply(t *testing.T) {
	m := newMocks(t)
	snap := testSnapshot()
	snap.Quotes[1].PercentChange1h = 1

	m.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(snap, nil)
	m.archive.EXPECT().SaveRaw(gomock.Any(), gomock.Any()).Return("raw.json", nil)
	m.store.EXPECT().AppendSnapshot(gomock.Any(), gomock.Any()).Return(nil)
	m.store.EXPECT().AppendAnalysis(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.archive.EXPECT().SaveChart(gomock.Any(), gomock.Any()).Return("chart.png", nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true)
	m.store.EXPECT().MarkDelivered(gomock.Any(), gomock.Any()).Return(nil)

	assert.Empty(t, m.scheduler(testOptions).Commands()["/report"](context.Background()))
}
