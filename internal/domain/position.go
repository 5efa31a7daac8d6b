package domain

// PositionSummary is the derived view of one realized-PnL event correlated
// with the orders that most likely opened and closed the position.
// Nil pointers encode as JSON null.
type PositionSummary struct {
	Symbol     string  `json:"symbol"`
	PNL        float64 `json:"pnl"`
	CloseTime  string  `json:"closeTime"`
	OpenTime   *string `json:"openTime"`
	EntryPrice *string `json:"entryPrice"`
	ClosePrice *string `json:"closePrice"`
	Volume     *string `json:"volume"`
}

// Degraded reports whether none of the order-derived fields could be filled.
func (s *PositionSummary) Degraded() bool {
	return s.OpenTime == nil && s.EntryPrice == nil && s.ClosePrice == nil && s.Volume == nil
}

// AccountPosition is one row of the account's position table.
type AccountPosition struct {
	Symbol           string       `json:"symbol"`
	PositionAmt      string       `json:"positionAmt"`
	EntryPrice       string       `json:"entryPrice"`
	UnrealizedProfit string       `json:"unrealizedProfit"`
	Leverage         string       `json:"leverage"`
	Isolated         bool         `json:"isolated"`
	PositionSide     PositionSide `json:"positionSide"`
	Notional         string       `json:"notional"`
	UpdateTime       int64        `json:"updateTime"`
}
