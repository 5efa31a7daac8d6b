package analytics

import (
	"sort"
	"time"

	"futuresProxy/internal/domain"
)

// PerformanceReport aggregates realized results over a set of position summaries.
type PerformanceReport struct {
	// Basic Metrics
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
	TotalPNL      float64 `json:"totalPnl"`
	GrossProfit   float64 `json:"grossProfit"`
	GrossLoss     float64 `json:"grossLoss"`
	ProfitFactor  float64 `json:"profitFactor"`
	AverageWin    float64 `json:"averageWin"`
	AverageLoss   float64 `json:"averageLoss"`
	Expectancy    float64 `json:"expectancy"`

	// Advanced Metrics
	MaxConsecutiveWins   int           `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int           `json:"maxConsecutiveLosses"`
	MaxDrawdown          float64       `json:"maxDrawdown"` // largest fall of cumulative PnL from its peak
	AverageHoldTime      time.Duration `json:"averageHoldTimeNs"`
	DegradedRecords      int           `json:"degradedRecords"`
	MonthlyPNL           []PeriodPNL   `json:"monthlyPnl"`
	SymbolPNL            []PeriodPNL   `json:"symbolPnl"`
}

// PeriodPNL is the PnL accumulated under one key (a month or a symbol).
type PeriodPNL struct {
	Key    string  `json:"key"`
	PNL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
}

// AnalyzePerformance walks the summaries in close-time order. Zero PnL counts
// as a loss. Hold time only covers summaries with a known open time.
func AnalyzePerformance(summaries []domain.PositionSummary) *PerformanceReport {
	report := &PerformanceReport{}
	if len(summaries) == 0 {
		return report
	}

	// Sort a copy so the caller's slice keeps its order.
	ordered := make([]domain.PositionSummary, len(summaries))
	copy(ordered, summaries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CloseTime < ordered[j].CloseTime
	})

	monthly := map[string]*PeriodPNL{}
	bySymbol := map[string]*PeriodPNL{}
	var cumulative, peak float64
	var consecutiveWins, consecutiveLosses int
	var holdTotal time.Duration
	var holdCount int

	for i := range ordered {
		s := &ordered[i]
		report.TotalTrades++
		report.TotalPNL += s.PNL

		if s.PNL > 0 {
			report.WinningTrades++
			report.GrossProfit += s.PNL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			report.LosingTrades++
			report.GrossLoss += -s.PNL
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > report.MaxConsecutiveWins {
			report.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > report.MaxConsecutiveLosses {
			report.MaxConsecutiveLosses = consecutiveLosses
		}

		// Update drawdown tracking
		cumulative += s.PNL
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > report.MaxDrawdown {
			report.MaxDrawdown = dd
		}

		closeTime, closeErr := time.Parse(time.RFC3339, s.CloseTime)
		if closeErr == nil {
			accumulate(monthly, closeTime.Format("2006-01"), s.PNL)
		}
		accumulate(bySymbol, s.Symbol, s.PNL)

		if s.Degraded() {
			report.DegradedRecords++
		}
		if s.OpenTime != nil && closeErr == nil {
			if openTime, err := time.Parse(time.RFC3339, *s.OpenTime); err == nil && !openTime.After(closeTime) {
				holdTotal += closeTime.Sub(openTime)
				holdCount++
			}
		}
	}

	// Calculate final metrics
	report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades)
	if report.WinningTrades > 0 {
		report.AverageWin = report.GrossProfit / float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = -report.GrossLoss / float64(report.LosingTrades)
	}
	if report.GrossLoss > 0 {
		report.ProfitFactor = report.GrossProfit / report.GrossLoss
	}
	report.Expectancy = report.WinRate*report.AverageWin + (1-report.WinRate)*report.AverageLoss
	if holdCount > 0 {
		report.AverageHoldTime = holdTotal / time.Duration(holdCount)
	}
	report.MonthlyPNL = sorted(monthly)
	report.SymbolPNL = sorted(bySymbol)

	return report
}

func accumulate(m map[string]*PeriodPNL, key string, pnl float64) {
	p, ok := m[key]
	if !ok {
		p = &PeriodPNL{Key: key}
		m[key] = p
	}
	p.PNL += pnl
	p.Trades++
}

func sorted(m map[string]*PeriodPNL) []PeriodPNL {
	out := make([]PeriodPNL, 0, len(m))
	for _, p := range m {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
