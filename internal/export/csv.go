package export

import (
	"bytes"
	"encoding/csv"

	"github.com/shopspring/decimal"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
)

var (
	returnHeader = []string{
		"return_id", "period_start", "period_end", "status",
		"taxable_sales", "zero_rated_sales", "exempt_sales", "vat_rate",
		"output_vat", "input_vat", "adjustments", "credits", "penalties",
		"net_vat", "filing_reference",
	}
	transactionHeader = []string{
		"date", "invoice_number", "type", "amount", "vat_amount", "category", "vat_category",
	}
)

// ToCSV writes the return summary followed by its transactions. Output depends
// only on the input, so two calls over unchanged state are byte-identical.
func ToCSV(in Input) ([]byte, error) {
	ret := in.Return
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		returnHeader,
		{
			ret.ID.String(),
			vatdomain.FormatDate(ret.PeriodStart),
			vatdomain.FormatDate(ret.PeriodEnd),
			string(ret.Status),
			money(ret.TaxableSales),
			money(ret.ZeroRatedSales),
			money(ret.ExemptSales),
			ret.VatRate.String(),
			money(ret.OutputVat),
			money(ret.InputVat),
			money(ret.Adjustments),
			money(ret.Credits),
			money(ret.Penalties),
			money(ret.NetVat()),
			filingReference(ret),
		},
		transactionHeader,
	}

	totalAmount, totalVat := decimal.Zero, decimal.Zero
	for _, tx := range sortedTransactions(in.Transactions) {
		rows = append(rows, []string{
			vatdomain.FormatDate(tx.Date),
			tx.InvoiceNumber,
			string(tx.Type),
			money(tx.Amount),
			money(tx.VatAmount),
			tx.Category,
			string(tx.VatCategory),
		})
		totalAmount = totalAmount.Add(tx.Amount)
		totalVat = totalVat.Add(tx.VatAmount)
	}
	rows = append(rows, []string{"total", "", "", money(totalAmount), money(totalVat), "", ""})

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
