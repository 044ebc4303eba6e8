package engine

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// WriteTradesCSV writes the closed-trade log to path, one row per round
// trip, header included.
func WriteTradesCSV(path string, trades []types.ClosedTrade) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"entry_time", "exit_time", "entry_price", "exit_price",
		"qty_shares", "commission", "pnl", "pnl_pct",
		"entry_reason", "exit_reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatInt(t.QtyShares, 10),
			strconv.FormatFloat(t.Commission, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
			strconv.FormatFloat(t.PnLPct, 'f', -1, 64),
			t.EntryReason,
			t.ExitReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}
