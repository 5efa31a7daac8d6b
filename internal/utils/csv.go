package utils

import (
	"encoding/csv"
	"io"
	"strconv"

	"futuresProxy/internal/domain"
)

var positionSummaryHeader = []string{"symbol", "pnl", "close_time", "open_time", "entry_price", "close_price", "volume"}

// WritePositionSummariesToCSV writes one row per summary; null fields are empty cells.
func WritePositionSummariesToCSV(summaries []domain.PositionSummary, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(positionSummaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := writer.Write([]string{
			s.Symbol,
			strconv.FormatFloat(s.PNL, 'f', -1, 64),
			s.CloseTime,
			deref(s.OpenTime),
			deref(s.EntryPrice),
			deref(s.ClosePrice),
			deref(s.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
