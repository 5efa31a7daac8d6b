package domain

// IncomeRecord is one row of the account income history, e.g. a realized PnL event.
type IncomeRecord struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"` // decimal string, signed
	Asset      string `json:"asset"`
	Info       string `json:"info"`
	Time       int64  `json:"time"` // epoch millis
	TranID     int64  `json:"tranId"`
	TradeID    string `json:"tradeId"`
}

// FundingRate is a single funding-rate settlement of a perpetual contract.
type FundingRate struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
	MarkPrice   string `json:"markPrice,omitempty"`
}
