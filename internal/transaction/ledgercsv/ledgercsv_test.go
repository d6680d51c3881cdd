package ledgercsv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMapsColumnsByHeader(t *testing.T) {
	input := "Type,Date,Amount,VAT_Amount,Invoice_Number,Notes\n" +
		"sale,2024-01-15,\"1,000.00\",200.00,INV-1,first\n" +
		"\n" +
		"purchase,2024-01-20,50\n"

	rows, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-01-15", rows[0].Date)
	assert.Equal(t, "sale", rows[0].Type)
	assert.Equal(t, "1,000.00", rows[0].Amount)
	assert.Equal(t, "200.00", rows[0].VatAmount)
	assert.Equal(t, "INV-1", rows[0].InvoiceNumber)

	assert.Equal(t, "purchase", rows[1].Type)
	assert.Equal(t, "50", rows[1].Amount)
	assert.Empty(t, rows[1].VatAmount)
	assert.Empty(t, rows[1].InvoiceNumber)
}

func TestReadRequiresDateAndType(t *testing.T) {
	_, err := Read(strings.NewReader("amount,vat_amount\n1,2\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadHeaderOnly(t *testing.T) {
	rows, err := Read(strings.NewReader("\ufeffdate,type\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
