package domain

import "time"

// OrderStatus is the exchange-reported lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// PositionSide is the position-mode side an order was placed against.
type PositionSide string

const (
	PositionSideBoth  PositionSide = "BOTH" // one-way mode
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// OrderType represents the order type (MARKET, LIMIT, ...).
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Income types understood by the income history endpoint.
const (
	IncomeTypeRealizedPNL = "REALIZED_PNL"
	IncomeTypeFundingFee  = "FUNDING_FEE"
)

// isoMillis matches the exchange dashboard's ISO-8601 rendering (UTC, millisecond precision).
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// FormatMillis renders an epoch-millis timestamp as an ISO-8601 UTC string.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoMillis)
}
