package trader

import (
	"sort"

	"insider-trade-bot-go/internal/models"
)

// FilterSignificant selects the tickers whose insider activity clears all
// three thresholds: summed transaction value, distinct insider count, and
// average ownership change. The result is sorted by ticker so the same input
// always yields the same buy order. Tickers with no transactions are skipped.
func FilterSignificant(data models.InsiderData, minValue float64, minInsiders int, minOwnChange float64) []string {
	var significant []string

	for ticker, transactions := range data {
		if len(transactions) == 0 {
			continue
		}

		var totalValue, totalOwnChange float64
		insiders := make(map[string]struct{})
		for _, tx := range transactions {
			totalValue += tx.TotalValue
			totalOwnChange += tx.OwnChange
			insiders[tx.InsiderName] = struct{}{}
		}
		avgOwnChange := totalOwnChange / float64(len(transactions))

		if totalValue >= minValue && len(insiders) >= minInsiders && avgOwnChange >= minOwnChange {
			significant = append(significant, ticker)
		}
	}

	sort.Strings(significant)
	return significant
}
