package app

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresProxy/internal/domain"
	"futuresProxy/internal/metrics"
	"futuresProxy/internal/ports"
)

const (
	closeMillis = int64(1700000000000) // 2023-11-14T22:13:20Z
	nowMillis   = int64(1700100000000)
)

var creds = ports.Credentials{APIKey: "key", APISecret: "secret"}

func newReconciler(t *testing.T, cfg ReconcilerConfig, ex *mockExchange, valid mockValidator) (*PositionReconciler, *countingPacer, *metrics.Metrics) {
	t.Helper()
	pacer := &countingPacer{}
	m := metrics.NewMetrics()
	r, err := NewPositionReconciler(cfg, &mockLogger{}, ex, valid, pacer, m)
	require.NoError(t, err)
	r.now = func() time.Time { return time.UnixMilli(nowMillis) }
	return r, pacer, m
}

func strPtr(s string) *string { return &s }

func TestNewPositionReconciler(t *testing.T) {
	_, err := NewPositionReconciler(ReconcilerConfig{}, nil, &mockExchange{}, mockValidator{}, &countingPacer{}, nil)
	assert.Error(t, err)

	r, err := NewPositionReconciler(ReconcilerConfig{}, &mockLogger{}, &mockExchange{}, mockValidator{}, &countingPacer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultIncomeLimit, r.cfg.IncomeLimit)
	assert.Equal(t, DefaultLookback, r.cfg.Lookback)
	assert.Equal(t, DefaultMaxHistory, r.cfg.MaxHistory)
}

func TestLookbackWindow(t *testing.T) {
	now := time.UnixMilli(nowMillis)

	tests := []struct {
		name      string
		closeTime time.Time
		wantStart time.Time
	}{
		{
			name:      "recent close looks back three days",
			closeTime: now.Add(-24 * time.Hour),
			wantStart: now.Add(-24*time.Hour - DefaultLookback),
		},
		{
			name:      "close exactly at the history limit",
			closeTime: now.Add(-DefaultMaxHistory),
			wantStart: now.Add(-DefaultMaxHistory),
		},
		{
			name:      "close within three days of the limit is clamped",
			closeTime: now.Add(-DefaultMaxHistory + 24*time.Hour),
			wantStart: now.Add(-DefaultMaxHistory),
		},
		{
			name:      "close older than the limit starts at the limit",
			closeTime: now.Add(-DefaultMaxHistory - 10*24*time.Hour),
			wantStart: now.Add(-DefaultMaxHistory),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := LookbackWindow(tt.closeTime, now, DefaultLookback, DefaultMaxHistory)
			assert.True(t, tt.wantStart.Equal(start), "start %v, want %v", start, tt.wantStart)
			assert.True(t, tt.closeTime.Equal(end))
		})
	}
}

func TestSummarize_MissingCredentialsMakesNoCalls(t *testing.T) {
	for _, c := range []ports.Credentials{{}, {APIKey: "key"}, {APISecret: "secret"}} {
		ex := &mockExchange{}
		r, _, _ := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"BTCUSDT": true})

		out, err := r.Summarize(context.Background(), c, 0)
		assert.ErrorIs(t, err, ports.ErrMissingCredentials)
		assert.Nil(t, out)
		assert.Equal(t, 0, ex.totalCalls())
	}
}

func TestSummarize_SingleOrderIsBothOpenAndClose(t *testing.T) {
	ex := &mockExchange{
		incomes: []domain.IncomeRecord{{Symbol: "BTCUSDT", Income: "12.5", Time: closeMillis}},
		orders: map[string][]domain.OrderRecord{
			"BTCUSDT": {{
				Symbol: "BTCUSDT", Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth,
				Type: domain.OrderTypeLimit, AvgPrice: "30000", UpdateTime: 1699999000000, ExecutedQty: "0.1",
			}},
		},
	}
	r, pacer, m := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"BTCUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, domain.PositionSummary{
		Symbol:     "BTCUSDT",
		PNL:        12.5,
		CloseTime:  "2023-11-14T22:13:20.000Z",
		OpenTime:   strPtr("2023-11-14T21:56:40.000Z"),
		EntryPrice: strPtr("30000"),
		ClosePrice: strPtr("30000"),
		Volume:     strPtr("0.1"),
	}, out[0])

	require.Len(t, ex.incomeQueries, 1)
	assert.Equal(t, ports.IncomeQuery{IncomeType: domain.IncomeTypeRealizedPNL, Limit: DefaultIncomeLimit}, ex.incomeQueries[0])

	require.Len(t, ex.orderCalls, 1)
	assert.Equal(t, closeMillis, ex.orderCalls[0].end.UnixMilli())
	assert.Equal(t, closeMillis-DefaultLookback.Milliseconds(), ex.orderCalls[0].start.UnixMilli())
	assert.Equal(t, 1, pacer.waits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummaryRecords.WithLabelValues(metrics.ResultEmitted)))
}

func TestSummarize_PassesStartTime(t *testing.T) {
	ex := &mockExchange{}
	r, _, _ := newReconciler(t, ReconcilerConfig{IncomeLimit: 50}, ex, mockValidator{})

	out, err := r.Summarize(context.Background(), creds, 1690000000000)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, ex.incomeQueries, 1)
	assert.Equal(t, int64(1690000000000), ex.incomeQueries[0].StartTime)
	assert.Equal(t, 50, ex.incomeQueries[0].Limit)
}

func TestSummarize_SkipsInvalidSymbols(t *testing.T) {
	ex := &mockExchange{
		incomes: []domain.IncomeRecord{
			{Symbol: "DELISTEDUSDT", Income: "-3", Time: closeMillis},
			{Symbol: "BTCUSDT", Income: "1", Time: closeMillis},
		},
	}
	r, pacer, m := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"BTCUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "BTCUSDT", out[0].Symbol)

	for _, call := range ex.orderCalls {
		assert.NotEqual(t, "DELISTEDUSDT", call.symbol)
	}
	assert.Equal(t, 1, pacer.waits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummaryRecords.WithLabelValues(metrics.ResultSkipped)))
}

func TestSummarize_OrderFailureDegradesRecord(t *testing.T) {
	ex := &mockExchange{
		incomes: []domain.IncomeRecord{
			{Symbol: "ETHUSDT", Income: "-4.25", Time: closeMillis},
			{Symbol: "BTCUSDT", Income: "2", Time: closeMillis + 1000},
		},
		orderErrs: map[string]error{"ETHUSDT": fmt.Errorf("GetOrderHistory failed: %w", ports.ErrUpstreamShape)},
		orders: map[string][]domain.OrderRecord{
			"BTCUSDT": {{Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, AvgPrice: "1", ExecutedQty: "2", UpdateTime: closeMillis}},
		},
	}
	logger := &mockLogger{}
	r, err := NewPositionReconciler(ReconcilerConfig{}, logger, ex, mockValidator{"BTCUSDT": true, "ETHUSDT": true}, &countingPacer{}, nil)
	require.NoError(t, err)
	r.now = func() time.Time { return time.UnixMilli(nowMillis) }

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)

	degraded := out[0]
	assert.Equal(t, "ETHUSDT", degraded.Symbol)
	assert.Equal(t, -4.25, degraded.PNL)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", degraded.CloseTime)
	assert.Nil(t, degraded.OpenTime)
	assert.Nil(t, degraded.EntryPrice)
	assert.Nil(t, degraded.ClosePrice)
	assert.Nil(t, degraded.Volume)
	assert.True(t, degraded.Degraded())

	assert.Equal(t, "BTCUSDT", out[1].Symbol)
	assert.False(t, out[1].Degraded())
	assert.Contains(t, logger.warnMsgs, "Order history unavailable, order fields left empty")
}

func TestSummarize_IncomeFailureIsFatal(t *testing.T) {
	ex := &mockExchange{incomeErr: fmt.Errorf("GetIncomeHistory failed: %w", ports.ErrUpstreamUnavailable)}
	r, _, _ := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"BTCUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	assert.ErrorIs(t, err, ports.ErrUpstreamUnavailable)
	assert.Nil(t, out)
	assert.Empty(t, ex.orderCalls)
}

func TestSummarize_PacerErrorIsFatal(t *testing.T) {
	ex := &mockExchange{incomes: []domain.IncomeRecord{{Symbol: "BTCUSDT", Income: "1", Time: closeMillis}}}
	pacer := &countingPacer{err: context.Canceled}
	r, err := NewPositionReconciler(ReconcilerConfig{}, &mockLogger{}, ex, mockValidator{"BTCUSDT": true}, pacer, nil)
	require.NoError(t, err)
	r.now = func() time.Time { return time.UnixMilli(nowMillis) }

	_, err = r.Summarize(context.Background(), creds, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ex.orderCalls)
}

func TestSummarize_CloseOlderThanHistoryLimitSkipsLookup(t *testing.T) {
	old := nowMillis - (DefaultMaxHistory + 24*time.Hour).Milliseconds()
	ex := &mockExchange{incomes: []domain.IncomeRecord{{Symbol: "BTCUSDT", Income: "7", Time: old}}}
	r, pacer, _ := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"BTCUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Degraded())
	assert.Equal(t, 7.0, out[0].PNL)
	assert.Empty(t, ex.orderCalls)
	assert.Equal(t, 0, pacer.waits)
}

func TestSummarize_PreservesIncomeOrder(t *testing.T) {
	ex := &mockExchange{
		incomes: []domain.IncomeRecord{
			{Symbol: "SOLUSDT", Income: "5", Time: closeMillis},
			{Symbol: "BTCUSDT", Income: "-1", Time: closeMillis + 1},
			{Symbol: "ADAUSDT", Income: "100", Time: closeMillis + 2},
			{Symbol: "BTCUSDT", Income: "0.5", Time: closeMillis + 3},
		},
	}
	r, pacer, _ := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"SOLUSDT": true, "BTCUSDT": true, "ADAUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)

	var got []string
	for _, s := range out {
		got = append(got, s.Symbol)
	}
	assert.Equal(t, []string{"SOLUSDT", "BTCUSDT", "ADAUSDT", "BTCUSDT"}, got)
	assert.Equal(t, []float64{5, -1, 100, 0.5}, []float64{out[0].PNL, out[1].PNL, out[2].PNL, out[3].PNL})
	assert.Equal(t, 4, pacer.waits)
}

func TestSummarize_UnparsablePNL(t *testing.T) {
	ex := &mockExchange{incomes: []domain.IncomeRecord{{Symbol: "BTCUSDT", Income: "n/a", Time: closeMillis}}}
	r, _, _ := newReconciler(t, ReconcilerConfig{}, ex, mockValidator{"BTCUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].PNL)

	_, err = json.Marshal(out)
	assert.NoError(t, err)
}

func TestMatchHeuristic(t *testing.T) {
	limitEntry := domain.OrderRecord{OrderID: 1, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, Side: domain.Buy, UpdateTime: 1}
	secondLimit := domain.OrderRecord{OrderID: 2, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, Side: domain.Buy, UpdateTime: 2}
	marketExit := domain.OrderRecord{OrderID: 3, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeMarket, Side: domain.Sell, UpdateTime: 3}
	canceled := domain.OrderRecord{OrderID: 4, Status: domain.OrderStatusCanceled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, UpdateTime: 4}
	hedgeLimit := domain.OrderRecord{OrderID: 5, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideLong, Type: domain.OrderTypeLimit, UpdateTime: 0}

	tests := []struct {
		name      string
		orders    []domain.OrderRecord
		wantOpen  int64
		wantClose int64
	}{
		{"empty", nil, 0, 0},
		{"only canceled", []domain.OrderRecord{canceled}, 0, 0},
		{"first limit entry and last fill", []domain.OrderRecord{hedgeLimit, limitEntry, secondLimit, marketExit, canceled}, 1, 3},
		{"market only has no open", []domain.OrderRecord{marketExit}, 0, 3},
		{"hedge-mode entries are not opens", []domain.OrderRecord{hedgeLimit}, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, closing := matchHeuristic(tt.orders)
			assert.Equal(t, tt.wantOpen, orderID(open))
			assert.Equal(t, tt.wantClose, orderID(closing))
		})
	}
}

func TestMatchStrict(t *testing.T) {
	buyEntryOld := domain.OrderRecord{OrderID: 1, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, Side: domain.Buy, UpdateTime: 1}
	sellExitOld := domain.OrderRecord{OrderID: 2, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, Side: domain.Sell, UpdateTime: 2}
	buyEntry := domain.OrderRecord{OrderID: 3, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, Side: domain.Buy, UpdateTime: 3}
	sellExit := domain.OrderRecord{OrderID: 4, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeMarket, Side: domain.Sell, UpdateTime: 4}

	open, closing := matchStrict([]domain.OrderRecord{buyEntryOld, sellExitOld, buyEntry, sellExit})
	assert.Equal(t, int64(3), orderID(open))
	assert.Equal(t, int64(4), orderID(closing))

	open, closing = matchStrict([]domain.OrderRecord{buyEntry})
	assert.Nil(t, open, "a single fill cannot be both open and close")
	assert.Equal(t, int64(3), orderID(closing))

	open, closing = matchStrict(nil)
	assert.Nil(t, open)
	assert.Nil(t, closing)
}

func TestSummarize_StrictMatching(t *testing.T) {
	ex := &mockExchange{
		incomes: []domain.IncomeRecord{{Symbol: "BTCUSDT", Income: "1", Time: closeMillis}},
		orders: map[string][]domain.OrderRecord{
			"BTCUSDT": {{OrderID: 9, Status: domain.OrderStatusFilled, PositionSide: domain.PositionSideBoth, Type: domain.OrderTypeLimit, Side: domain.Buy, AvgPrice: "10", ExecutedQty: "1", UpdateTime: closeMillis}},
		},
	}
	r, _, _ := newReconciler(t, ReconcilerConfig{StrictMatching: true}, ex, mockValidator{"BTCUSDT": true})

	out, err := r.Summarize(context.Background(), creds, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].OpenTime)
	assert.Nil(t, out[0].EntryPrice)
	assert.Equal(t, "10", *out[0].ClosePrice)
}

func TestFillPrice(t *testing.T) {
	tests := []struct {
		name  string
		order domain.OrderRecord
		want  *string
	}{
		{"avg price", domain.OrderRecord{AvgPrice: "30000.5", Price: "30000"}, strPtr("30000.5")},
		{"zero avg falls back to price", domain.OrderRecord{AvgPrice: "0.00000", Price: "29999"}, strPtr("29999")},
		{"missing avg falls back to price", domain.OrderRecord{Price: "29999"}, strPtr("29999")},
		{"no usable price", domain.OrderRecord{AvgPrice: "0", Price: "0"}, nil},
		{"zero placeholders are not prices", domain.OrderRecord{AvgPrice: "0.00000", Price: "0.00"}, nil},
		{"neither field present", domain.OrderRecord{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fillPrice(&tt.order))
		})
	}
}

func TestPositionSummary_JSONNulls(t *testing.T) {
	raw, err := json.Marshal(domain.PositionSummary{Symbol: "BTCUSDT", PNL: 1.5, CloseTime: "2023-11-14T22:13:20.000Z"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"BTCUSDT","pnl":1.5,"closeTime":"2023-11-14T22:13:20.000Z","openTime":null,"entryPrice":null,"closePrice":null,"volume":null}`, string(raw))
}

func orderID(o *domain.OrderRecord) int64 {
	if o == nil {
		return 0
	}
	return o.OrderID
}


