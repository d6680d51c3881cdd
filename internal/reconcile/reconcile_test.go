package reconcile

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := vatdomain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func january(t *testing.T) vatdomain.Period {
	t.Helper()
	p, err := vatdomain.ParsePeriod("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	return p
}

func TestAutoReconcileMatchesOnlyInPeriod(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []txdomain.Transaction{
		{ID: 1, Date: date(t, "2024-01-15"), Type: txdomain.TypeSale},
		{ID: 2, Date: date(t, "2024-02-01"), Type: txdomain.TypeSale},
		{ID: 3, Date: date(t, "2024-01-01"), Type: txdomain.TypePurchase},
		{ID: 4, Date: date(t, "2024-01-31"), Type: txdomain.TypePurchase},
		{ID: 5, Date: date(t, "2023-12-31"), Type: txdomain.TypeSale},
	}

	out, changed := AutoReconcile(january(t), txs, 99, at)

	assert.Equal(t, []snowflake.ID{1, 3, 4}, changed)
	require.Len(t, out, 5)
	assert.True(t, out[0].Matched)
	require.NotNil(t, out[0].MatchedReturnID)
	assert.Equal(t, snowflake.ID(99), *out[0].MatchedReturnID)
	assert.Equal(t, at, *out[0].MatchedAt)
	assert.False(t, out[1].Matched)
	assert.Nil(t, out[1].MatchedReturnID)
	assert.False(t, out[4].Matched)

	assert.False(t, txs[0].Matched, "input must not be mutated")
}

func TestAutoReconcileIsIdempotent(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []txdomain.Transaction{
		{ID: 1, Date: date(t, "2024-01-15")},
		{ID: 2, Date: date(t, "2024-02-01")},
	}

	first, changed := AutoReconcile(january(t), txs, 7, at)
	assert.Len(t, changed, 1)

	second, changed := AutoReconcile(january(t), first, 7, at.Add(time.Hour))
	assert.Empty(t, changed)
	assert.Equal(t, first, second)
}

func TestAutoReconcileLeavesOtherReturnsClaims(t *testing.T) {
	other := snowflake.ID(5)
	txs := []txdomain.Transaction{
		{ID: 1, Date: date(t, "2024-01-10"), Matched: true, MatchedReturnID: &other},
	}
	out, changed := AutoReconcile(january(t), txs, 7, time.Now())
	assert.Empty(t, changed)
	assert.Equal(t, other, *out[0].MatchedReturnID)
}

func TestSummarizeReportsVariance(t *testing.T) {
	ret := &vatdomain.VatReturn{
		OutputVat: decimal.RequireFromString("200.00"),
		InputVat:  decimal.RequireFromString("50.00"),
	}
	matched := []txdomain.Transaction{
		{Type: txdomain.TypeSale, Amount: decimal.RequireFromString("1000.00"), VatAmount: decimal.RequireFromString("200.00"), VatCategory: txdomain.VatCategoryVatable},
		{Type: txdomain.TypeSale, Amount: decimal.RequireFromString("300.00"), VatAmount: decimal.Zero, VatCategory: txdomain.VatCategoryZeroRated},
		{Type: txdomain.TypePurchase, Amount: decimal.RequireFromString("150.00"), VatAmount: decimal.RequireFromString("30.00"), VatCategory: txdomain.VatCategoryVatable},
	}

	v := Summarize(ret, matched)
	assert.True(t, v.MatchedSales.Equal(decimal.RequireFromString("1300.00")))
	assert.True(t, v.OutputVatDelta.IsZero())
	assert.True(t, v.InputVatDelta.Equal(decimal.RequireFromString("20.00")))
	assert.False(t, v.Balanced)
	assert.Equal(t, 3, v.MatchedTransactions)
}
