package export

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
)

var (
	labelText  = props.Text{Size: 9}
	valueText  = props.Text{Size: 9, Align: align.Right}
	headerText = props.Text{Size: 9, Style: fontstyle.Bold}
)

// ToPDF renders a print-ready summary. The creation date is pinned to the
// return's last update so unchanged returns render the same metadata.
func ToPDF(in Input) ([]byte, error) {
	ret := in.Return

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		WithTitle(fmt.Sprintf("VAT return %s", ret.Period()), true).
		WithCreationDate(ret.UpdatedAt.UTC()).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "VAT Return", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Return: "+ret.ID.String(), props.Text{Top: 0}),
			text.New("Period: "+vatdomain.FormatDate(ret.PeriodStart)+" to "+vatdomain.FormatDate(ret.PeriodEnd), props.Text{Top: 5}),
			text.New("Status: "+string(ret.Status), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Filing reference: "+orDash(filingReference(ret)), props.Text{Top: 0}),
			text.New("VAT rate: "+ret.VatRate.Mul(decimal.NewFromInt(100)).String()+"%", props.Text{Top: 5}),
		),
	)

	summary := [][2]string{
		{"Taxable sales", money(ret.TaxableSales)},
		{"Zero-rated sales", money(ret.ZeroRatedSales)},
		{"Exempt sales", money(ret.ExemptSales)},
		{"Output VAT", money(ret.OutputVat)},
		{"Input VAT", money(ret.InputVat)},
		{"Adjustments", money(ret.Adjustments)},
		{"Credits", money(ret.Credits)},
		{"Penalties", money(ret.Penalties)},
	}
	for _, row := range summary {
		m.AddRow(6,
			text.NewCol(8, row[0], labelText),
			text.NewCol(4, row[1], valueText),
		)
	}
	m.AddRow(8,
		text.NewCol(8, "Net VAT", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(4, money(ret.NetVat()), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(12, text.NewCol(12, "Matched transactions", props.Text{Size: 12, Style: fontstyle.Bold, Top: 4}))
	m.AddRow(8,
		text.NewCol(2, "Date", headerText),
		text.NewCol(2, "Invoice", headerText),
		text.NewCol(3, "Vendor", headerText),
		text.NewCol(1, "Type", headerText),
		text.NewCol(2, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "VAT", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	totalAmount, totalVat := decimal.Zero, decimal.Zero
	for _, tx := range sortedTransactions(in.Transactions) {
		vendor := ""
		if tx.VendorID != nil {
			vendor = in.VendorNames[*tx.VendorID]
		}
		m.AddRow(6,
			text.NewCol(2, vatdomain.FormatDate(tx.Date), labelText),
			text.NewCol(2, tx.InvoiceNumber, labelText),
			text.NewCol(3, orDash(vendor), labelText),
			text.NewCol(1, string(tx.Type), labelText),
			text.NewCol(2, money(tx.Amount), valueText),
			text.NewCol(2, money(tx.VatAmount), valueText),
		)
		totalAmount = totalAmount.Add(tx.Amount)
		totalVat = totalVat.Add(tx.VatAmount)
	}
	if len(in.Transactions) == 0 {
		m.AddRow(6, text.NewCol(12, "No transactions matched to this return.", labelText))
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(8,
		col.New(6),
		text.NewCol(2, "Total", headerText),
		text.NewCol(2, money(totalAmount), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, money(totalVat), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
