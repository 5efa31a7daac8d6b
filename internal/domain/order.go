package domain

// OrderRecord is a historical futures order as reported by the exchange.
// Prices and quantities stay as the exchange's decimal strings.
type OrderRecord struct {
	OrderID      int64        `json:"orderId"`
	Symbol       string       `json:"symbol"`
	Status       OrderStatus  `json:"status"`
	Side         OrderSide    `json:"side"`
	PositionSide PositionSide `json:"positionSide"`
	Type         OrderType    `json:"type"`
	AvgPrice     string       `json:"avgPrice"`
	Price        string       `json:"price"`
	OrigQty      string       `json:"origQty"`
	ExecutedQty  string       `json:"executedQty"`
	ReduceOnly   bool         `json:"reduceOnly"`
	Time         int64        `json:"time"`
	UpdateTime   int64        `json:"updateTime"` // epoch millis
}

// IsFilled reports whether the order was completely filled.
func (o *OrderRecord) IsFilled() bool {
	return o.Status == OrderStatusFilled
}
