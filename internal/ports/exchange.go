package ports

import (
	"context"
	"time"

	"futuresProxy/internal/domain"
)

// Credentials are the caller's exchange API key pair. They are supplied per
// inbound request and never stored.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Complete reports whether both halves of the key pair are present.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// IncomeQuery selects rows from the account income history.
type IncomeQuery struct {
	IncomeType string // e.g. REALIZED_PNL, FUNDING_FEE
	StartTime  int64  // epoch millis, 0 means unbounded
	Limit      int    // 0 means exchange default
}

// ExchangeClient is the data source the proxy mediates for. Every method
// returns either decoded records or a classified error; an upstream payload of
// the wrong shape is an error, never a panic.
type ExchangeClient interface {
	// GetFundingRate returns the most recent funding-rate record for symbol.
	GetFundingRate(ctx context.Context, symbol string) ([]domain.FundingRate, error)

	// GetIncomeHistory returns signed income history rows, oldest first.
	GetIncomeHistory(ctx context.Context, creds Credentials, q IncomeQuery) ([]domain.IncomeRecord, error)

	// GetOrderHistory returns all orders for symbol updated within [start, end].
	GetOrderHistory(ctx context.Context, creds Credentials, symbol string, start, end time.Time) ([]domain.OrderRecord, error)

	// GetAccountPositions returns every position row of the futures account.
	GetAccountPositions(ctx context.Context, creds Credentials) ([]domain.AccountPosition, error)
}

// SymbolCatalog lists the instruments currently known to the exchange.
type SymbolCatalog interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

// SymbolValidator answers whether a symbol is currently tradable.
type SymbolValidator interface {
	IsValid(symbol string) bool
}

// Pacer spaces out consecutive calls to the exchange.
type Pacer interface {
	// Wait blocks until the next call may proceed or ctx is done.
	Wait(ctx context.Context) error
}
