package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"futuresProxy/internal/domain"
	"futuresProxy/internal/metrics"
	"futuresProxy/internal/ports"
)

const (
	DefaultIncomeLimit = 1000
	DefaultLookback    = 3 * 24 * time.Hour
	DefaultMaxHistory  = 90 * 24 * time.Hour // exchange refuses order queries older than this
)

// ReconcilerConfig tunes the position reconciler.
type ReconcilerConfig struct {
	IncomeLimit int           // realized PnL rows per request
	Lookback    time.Duration // order search window before each close event
	MaxHistory  time.Duration // never search orders older than now-MaxHistory
	// StrictMatching pairs the close with the latest opposite-side limit
	// entry filled before it, instead of the first limit fill in the window.
	StrictMatching bool
}

// PositionReconciler correlates realized PnL events with the order history
// around them to rebuild a per-trade summary.
type PositionReconciler struct {
	cfg      ReconcilerConfig
	logger   ports.Logger
	exchange ports.ExchangeClient
	symbols  ports.SymbolValidator
	pacer    ports.Pacer
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPositionReconciler creates a reconciler; zero config values take the defaults.
func NewPositionReconciler(
	cfg ReconcilerConfig,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	symbols ports.SymbolValidator,
	pacer ports.Pacer,
	m *metrics.Metrics,
) (*PositionReconciler, error) {
	if logger == nil || exchange == nil || symbols == nil || pacer == nil {
		return nil, fmt.Errorf("missing required dependencies for PositionReconciler")
	}
	if cfg.IncomeLimit <= 0 {
		cfg.IncomeLimit = DefaultIncomeLimit
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	return &PositionReconciler{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		symbols:  symbols,
		pacer:    pacer,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// LookbackWindow returns the order-history window for a close event: it ends
// at closeTime and starts lookback earlier, but never before now-maxHistory.
// For close events older than maxHistory the start lies after the end.
func LookbackWindow(closeTime, now time.Time, lookback, maxHistory time.Duration) (start, end time.Time) {
	end = closeTime
	start = closeTime.Add(-lookback)
	if floor := now.Add(-maxHistory); start.Before(floor) {
		start = floor
	}
	return start, end
}

// Summarize builds one PositionSummary per realized PnL event since startTime
// (epoch millis, 0 for no bound), in the order the exchange returned them.
// Events for symbols outside the valid set are dropped. A failed order lookup
// degrades only its own record; a failed income fetch fails the whole call.
func (r *PositionReconciler) Summarize(ctx context.Context, creds ports.Credentials, startTime int64) ([]domain.PositionSummary, error) {
	if !creds.Complete() {
		return nil, ports.ErrMissingCredentials
	}

	incomes, err := r.exchange.GetIncomeHistory(ctx, creds, ports.IncomeQuery{
		IncomeType: domain.IncomeTypeRealizedPNL,
		StartTime:  startTime,
		Limit:      r.cfg.IncomeLimit,
	})
	if err != nil {
		r.logger.Error(ctx, err, "Position summary aborted: realized PnL history unavailable", map[string]interface{}{"operation": "GetIncomeHistory", "startTime": startTime})
		return nil, fmt.Errorf("fetching realized PnL history: %w", err)
	}
	r.logger.Info(ctx, "Realized PnL history fetched", map[string]interface{}{"count": len(incomes), "startTime": startTime})

	summaries := make([]domain.PositionSummary, 0, len(incomes))
	for i := range incomes {
		event := &incomes[i]
		if !r.symbols.IsValid(event.Symbol) {
			r.logger.Debug(ctx, "Skipping income event for unknown symbol", map[string]interface{}{"symbol": event.Symbol, "time": event.Time})
			r.metrics.RecordSummary(metrics.ResultSkipped)
			continue
		}

		summary, err := r.summarizeEvent(ctx, creds, event)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (r *PositionReconciler) summarizeEvent(ctx context.Context, creds ports.Credentials, event *domain.IncomeRecord) (domain.PositionSummary, error) {
	summary := domain.PositionSummary{
		Symbol:    event.Symbol,
		PNL:       r.parsePNL(ctx, event),
		CloseTime: domain.FormatMillis(event.Time),
	}

	start, end := LookbackWindow(time.UnixMilli(event.Time), r.now(), r.cfg.Lookback, r.cfg.MaxHistory)
	fields := map[string]interface{}{
		"operation": "GetOrderHistory",
		"symbol":    event.Symbol,
		"startTime": start.UnixMilli(),
		"endTime":   end.UnixMilli(),
	}

	if start.After(end) {
		r.logger.Warn(ctx, "Close event is older than the order history limit, order fields left empty", fields)
		r.metrics.RecordSummary(metrics.ResultDegraded)
		return summary, nil
	}

	if err := r.pacer.Wait(ctx); err != nil {
		return domain.PositionSummary{}, fmt.Errorf("pacing order history lookup for %s: %w", event.Symbol, err)
	}

	orders, err := r.exchange.GetOrderHistory(ctx, creds, event.Symbol, start, end)
	if err != nil {
		fields["error"] = err.Error()
		r.logger.Warn(ctx, "Order history unavailable, order fields left empty", fields)
		r.metrics.RecordSummary(metrics.ResultDegraded)
		return summary, nil
	}

	var open, closing *domain.OrderRecord
	if r.cfg.StrictMatching {
		open, closing = matchStrict(orders)
	} else {
		open, closing = matchHeuristic(orders)
	}

	if open != nil {
		openTime := domain.FormatMillis(open.UpdateTime)
		summary.OpenTime = &openTime
		summary.EntryPrice = fillPrice(open)
	}
	if closing != nil {
		summary.ClosePrice = fillPrice(closing)
		summary.Volume = nonEmpty(closing.ExecutedQty)
	}

	if summary.Degraded() {
		r.metrics.RecordSummary(metrics.ResultDegraded)
	} else {
		r.metrics.RecordSummary(metrics.ResultEmitted)
	}
	return summary, nil
}

// parsePNL converts the income amount; an unparsable amount is reported as 0.
func (r *PositionReconciler) parsePNL(ctx context.Context, event *domain.IncomeRecord) float64 {
	d, err := decimal.NewFromString(event.Income)
	if err != nil {
		r.logger.Warn(ctx, "Unparsable realized PnL amount", map[string]interface{}{"symbol": event.Symbol, "income": event.Income, "time": event.Time})
		return 0
	}
	return d.InexactFloat64()
}

// matchHeuristic picks the first filled one-way limit order as the opening
// fill and the last filled order of any kind as the closing fill. With a
// single fill in the window both are the same order, and with several trades
// in the window they may belong to different trades.
func matchHeuristic(orders []domain.OrderRecord) (open, closing *domain.OrderRecord) {
	for i := range orders {
		o := &orders[i]
		if !o.IsFilled() {
			continue
		}
		if open == nil && isLimitEntry(o) {
			open = o
		}
		closing = o
	}
	return open, closing
}

// matchStrict keeps the heuristic's closing fill but only accepts an opening
// fill that precedes it, is a different order and sits on the opposite side.
// The latest such candidate wins.
func matchStrict(orders []domain.OrderRecord) (open, closing *domain.OrderRecord) {
	closeIdx := -1
	for i := range orders {
		if orders[i].IsFilled() {
			closeIdx = i
		}
	}
	if closeIdx < 0 {
		return nil, nil
	}
	closing = &orders[closeIdx]

	for i := closeIdx - 1; i >= 0; i-- {
		o := &orders[i]
		if !o.IsFilled() || !isLimitEntry(o) {
			continue
		}
		if o.OrderID == closing.OrderID || o.UpdateTime > closing.UpdateTime {
			continue
		}
		if o.Side == "" || o.Side == closing.Side {
			continue
		}
		return o, closing
	}
	return nil, closing
}

func isLimitEntry(o *domain.OrderRecord) bool {
	return o.PositionSide == domain.PositionSideBoth && o.Type != domain.OrderTypeMarket
}

// fillPrice prefers the average fill price and falls back to the order price
// when the average is missing or zero. A zero price is never reported: when
// both are "0" the price is null rather than the exchange's "0" placeholder.
func fillPrice(o *domain.OrderRecord) *string {
	if isPositive(o.AvgPrice) {
		return nonEmpty(o.AvgPrice)
	}
	if isPositive(o.Price) {
		return nonEmpty(o.Price)
	}
	return nil
}

func isPositive(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsPositive()
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
