// Package reconcile matches ledger transactions to a return's period.
// Everything here is pure: callers own loading and persisting.
package reconcile

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
)

// AutoReconcile returns a copy of txs where every unmatched transaction dated
// inside period is marked matched to returnID. Already matched transactions
// and those outside the period come back unchanged. The second result lists
// the ids that changed, in input order.
func AutoReconcile(period vatdomain.Period, txs []txdomain.Transaction, returnID snowflake.ID, at time.Time) ([]txdomain.Transaction, []snowflake.ID) {
	out := make([]txdomain.Transaction, len(txs))
	var changed []snowflake.ID
	for i, tx := range txs {
		out[i] = tx.Clone()
		if tx.Matched || !period.Contains(tx.Date) {
			continue
		}
		id := returnID
		matchedAt := at
		out[i].Matched = true
		out[i].MatchedReturnID = &id
		out[i].MatchedAt = &matchedAt
		changed = append(changed, tx.ID)
	}
	return out, changed
}

// Summarize compares transactions matched to ret against its declared figures.
// Zero-rated and exempt sales contribute to sales but not to output VAT.
func Summarize(ret *vatdomain.VatReturn, matched []txdomain.Transaction) vatdomain.Variance {
	v := vatdomain.Variance{
		MatchedSales:     decimal.Zero,
		MatchedOutputVat: decimal.Zero,
		MatchedInputVat:  decimal.Zero,
	}
	for _, tx := range matched {
		switch tx.Type {
		case txdomain.TypeSale:
			v.MatchedSales = v.MatchedSales.Add(tx.Amount)
			if tx.VatCategory == txdomain.VatCategoryVatable {
				v.MatchedOutputVat = v.MatchedOutputVat.Add(tx.VatAmount)
			}
		case txdomain.TypePurchase:
			v.MatchedInputVat = v.MatchedInputVat.Add(tx.VatAmount)
		}
		v.MatchedTransactions++
	}
	v.OutputVatDelta = ret.OutputVat.Sub(v.MatchedOutputVat)
	v.InputVatDelta = ret.InputVat.Sub(v.MatchedInputVat)
	v.Balanced = v.OutputVatDelta.IsZero() && v.InputVatDelta.IsZero()
	return v
}
