package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() Input {
	ret := &vatdomain.VatReturn{
		ID:           snowflake.ID(1001),
		PeriodStart:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:       vatdomain.StatusReady,
		TaxableSales: decimal.RequireFromString("1000"),
		VatRate:      decimal.RequireFromString("0.2"),
		OutputVat:    decimal.RequireFromString("200"),
		InputVat:     decimal.RequireFromString("30"),
		Adjustments:  decimal.RequireFromString("-5"),
		UpdatedAt:    time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC),
	}
	vendor := snowflake.ID(9)
	return Input{
		Return: ret,
		Transactions: []txdomain.Transaction{
			{ID: 3, Date: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), Type: txdomain.TypePurchase, VendorID: &vendor, InvoiceNumber: "P-7", Amount: decimal.RequireFromString("150"), VatAmount: decimal.RequireFromString("30"), Category: "supplies", VatCategory: txdomain.VatCategoryVatable},
			{ID: 2, Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Type: txdomain.TypeSale, InvoiceNumber: "S-1", Amount: decimal.RequireFromString("1000"), VatAmount: decimal.RequireFromString("200"), Category: "consulting", VatCategory: txdomain.VatCategoryVatable},
		},
		VendorNames: map[snowflake.ID]string{vendor: "Acme Supplies"},
	}
}

func TestToCSVLayout(t *testing.T) {
	body, err := ToCSV(sampleInput())
	require.NoError(t, err)

	want := strings.Join([]string{
		"return_id,period_start,period_end,status,taxable_sales,zero_rated_sales,exempt_sales,vat_rate,output_vat,input_vat,adjustments,credits,penalties,net_vat,filing_reference",
		"1001,2024-01-01,2024-01-31,ready,1000.00,0.00,0.00,0.2,200.00,30.00,-5.00,0.00,0.00,165.00,",
		"date,invoice_number,type,amount,vat_amount,category,vat_category",
		"2024-01-15,S-1,sale,1000.00,200.00,consulting,vatable",
		"2024-01-20,P-7,purchase,150.00,30.00,supplies,vatable",
		"total,,,1150.00,230.00,,",
		"",
	}, "\n")
	assert.Equal(t, want, string(body))
}

func TestToCSVIsDeterministic(t *testing.T) {
	in := sampleInput()
	first, err := ToCSV(in)
	require.NoError(t, err)
	second, err := ToCSV(in)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	// input order must not leak into the output
	in.Transactions[0], in.Transactions[1] = in.Transactions[1], in.Transactions[0]
	third, err := ToCSV(in)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestRenderFormats(t *testing.T) {
	doc, err := Render("CSV", sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "text/csv", doc.ContentType)
	assert.Equal(t, "vat-return-1001-2024-01-01.csv", doc.Filename)

	doc, err = Render("pdf", sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))

	_, err = Render("xlsx", sampleInput())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestToPDFWithoutTransactions(t *testing.T) {
	in := sampleInput()
	in.Transactions = nil
	body, err := ToPDF(in)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}
