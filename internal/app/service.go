package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"futuresProxy/internal/domain"
	"futuresProxy/internal/ports"
)

const (
	defaultFundingSymbol = "BTCUSDT"
	fundingFeeLimit      = 1000
)

// ProxyService exposes the proxy's operations to the inbound HTTP layer.
type ProxyService struct {
	logger     ports.Logger
	exchange   ports.ExchangeClient
	reconciler *PositionReconciler
}

// NewProxyService creates a new application service instance.
func NewProxyService(logger ports.Logger, exchange ports.ExchangeClient, reconciler *PositionReconciler) (*ProxyService, error) {
	if logger == nil || exchange == nil || reconciler == nil {
		return nil, fmt.Errorf("missing required dependencies for ProxyService")
	}
	return &ProxyService{
		logger:     logger,
		exchange:   exchange,
		reconciler: reconciler,
	}, nil
}

// FundingRate returns the latest funding rate of symbol (BTCUSDT when empty).
func (s *ProxyService) FundingRate(ctx context.Context, symbol string) ([]domain.FundingRate, error) {
	if symbol == "" {
		symbol = defaultFundingSymbol
	}
	rates, err := s.exchange.GetFundingRate(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching funding rate for %s: %w", symbol, err)
	}
	return rates, nil
}

// FundingFees returns the account's funding fee payments.
func (s *ProxyService) FundingFees(ctx context.Context, creds ports.Credentials) ([]domain.IncomeRecord, error) {
	if !creds.Complete() {
		return nil, ports.ErrMissingCredentials
	}
	rows, err := s.exchange.GetIncomeHistory(ctx, creds, ports.IncomeQuery{
		IncomeType: domain.IncomeTypeFundingFee,
		Limit:      fundingFeeLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching funding fees: %w", err)
	}
	return rows, nil
}

// Income returns income history of incomeType (REALIZED_PNL when empty),
// optionally starting at startTime (epoch millis).
func (s *ProxyService) Income(ctx context.Context, creds ports.Credentials, incomeType string, startTime int64) ([]domain.IncomeRecord, error) {
	if !creds.Complete() {
		return nil, ports.ErrMissingCredentials
	}
	if incomeType == "" {
		incomeType = domain.IncomeTypeRealizedPNL
	}
	rows, err := s.exchange.GetIncomeHistory(ctx, creds, ports.IncomeQuery{
		IncomeType: incomeType,
		StartTime:  startTime,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s income: %w", incomeType, err)
	}
	return rows, nil
}

// ActivePositions returns the account positions with a non-zero amount.
func (s *ProxyService) ActivePositions(ctx context.Context, creds ports.Credentials) ([]domain.AccountPosition, error) {
	if !creds.Complete() {
		return nil, ports.ErrMissingCredentials
	}
	positions, err := s.exchange.GetAccountPositions(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("fetching account positions: %w", err)
	}

	active := make([]domain.AccountPosition, 0, len(positions))
	for _, p := range positions {
		amt, err := decimal.NewFromString(p.PositionAmt)
		if err != nil {
			s.logger.Warn(ctx, "Skipping position with unparsable amount", map[string]interface{}{"symbol": p.Symbol, "positionAmt": p.PositionAmt})
			continue
		}
		if amt.IsZero() {
			continue
		}
		active = append(active, p)
	}
	return active, nil
}

// PositionSummary reconciles realized PnL events with their orders.
func (s *ProxyService) PositionSummary(ctx context.Context, creds ports.Credentials, startTime int64) ([]domain.PositionSummary, error) {
	return s.reconciler.Summarize(ctx, creds, startTime)
}
