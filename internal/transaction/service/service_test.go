package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/vatdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/vatdesk/internal/audit/service"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"github.com/smallbiznis/vatdesk/internal/transaction/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errReturnNotFound = fmt.Errorf("not_found")
	errReturnClosed   = fmt.Errorf("invalid_transition")
)

type mockReturns struct {
	mock.Mock
}

func (m *mockReturns) EnsureReturn(ctx context.Context, returnID snowflake.ID) error {
	return m.Called(ctx, returnID).Error(0)
}

func (m *mockReturns) AppendActivity(ctx context.Context, returnID snowflake.ID, activityType string, message string) error {
	return m.Called(ctx, returnID, activityType, message).Error(0)
}

func (m *mockReturns) MatchTransaction(ctx context.Context, returnID, txID snowflake.ID) (bool, error) {
	args := m.Called(ctx, returnID, txID)
	return args.Bool(0), args.Error(1)
}

type harness struct {
	svc     domain.Service
	db      *gorm.DB
	returns *mockReturns
	clock   *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Transaction{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	returns := new(mockReturns)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		Returns:  returns,
		AuditSvc: auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepo.Provide()}),
	})
	return &harness{svc: svc, db: db, returns: returns, clock: clk}
}

func TestImportClassifiesRows(t *testing.T) {
	h := newHarness(t)
	result, err := h.svc.Import(context.Background(), domain.ImportRequest{
		Source: "ledger.csv",
		Rows: []domain.ImportRow{
			{Date: "2024-01-15", Type: "sale", InvoiceNumber: "S-1", Amount: "1,000.00", VatAmount: "200", VatCategory: "vatable"},
			{Date: "2024-01-16", Type: "Purchase", Amount: "abc", VatAmount: "10"},
			{Date: "2024-01-17", Type: "sale", Amount: "10", VatCategory: "luxury"},
			{Date: "", Type: "sale", Amount: "10"},
			{Date: "2024-01-18", Type: "refund", Amount: "10"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Len(t, result.BatchID, 26)
	assert.Equal(t, 2, result.Defaulted)
	assert.Equal(t, 2, result.Rejected)
	require.Len(t, result.Rows, 5)
	assert.Equal(t, domain.RowImported, result.Rows[0].Status)
	assert.Equal(t, domain.RowDefaulted, result.Rows[1].Status)
	assert.Contains(t, result.Rows[1].Warnings[0], "malformed amount")
	assert.Equal(t, domain.RowDefaulted, result.Rows[2].Status)
	assert.Equal(t, domain.RowRejected, result.Rows[3].Status)
	assert.Empty(t, result.Rows[3].TransactionID)
	assert.Equal(t, domain.RowRejected, result.Rows[4].Status)

	require.Len(t, result.Transactions, 3)
	assert.Equal(t, "2024-01-17", result.Transactions[0].Date, "newest first")

	var stored []domain.Transaction
	require.NoError(t, h.db.Order("date asc").Find(&stored).Error)
	require.Len(t, stored, 3)
	assert.Equal(t, "1000.00", stored[0].Amount.StringFixed(2))
	assert.Equal(t, domain.TypePurchase, stored[1].Type)
	assert.True(t, stored[1].Amount.IsZero())
	assert.Equal(t, domain.VatCategoryVatable, stored[1].VatCategory)
	assert.Equal(t, domain.VatCategoryVatable, stored[2].VatCategory)
	for _, tx := range stored {
		assert.False(t, tx.Matched)
	}

	var audits int64
	require.NoError(t, h.db.Model(&auditdomain.AuditLog{}).Where("action LIKE ?", "transaction.import.%").Count(&audits).Error)
	assert.Equal(t, int64(4), audits)
	h.returns.AssertNotCalled(t, "AppendActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestImportScopedToReturnRecordsWarnings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	returnID := snowflake.ID(77)
	// Import wraps ctx in a span, so the collaborator sees a derived context.
	h.returns.On("EnsureReturn", mock.Anything, returnID).Return(nil)
	h.returns.On("AppendActivity", mock.Anything, returnID, "warning", mock.AnythingOfType("string")).Return(nil)

	_, err := h.svc.Import(ctx, domain.ImportRequest{
		ReturnID: "77",
		Rows: []domain.ImportRow{
			{Date: "2024-01-15", Type: "sale", Amount: "10"},
			{Date: "2024-01-16", Type: "sale", Amount: "x"},
			{Date: "nope", Type: "sale"},
		},
	})
	require.NoError(t, err)
	h.returns.AssertNumberOfCalls(t, "AppendActivity", 2)
}

func TestImportRejectsUnknownReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.returns.On("EnsureReturn", mock.Anything, snowflake.ID(5)).Return(errReturnNotFound)

	_, err := h.svc.Import(ctx, domain.ImportRequest{ReturnID: "5", Rows: []domain.ImportRow{{Date: "2024-01-01", Type: "sale"}}})
	assert.ErrorIs(t, err, errReturnNotFound)

	var count int64
	require.NoError(t, h.db.Model(&domain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMatchIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.svc.Import(ctx, domain.ImportRequest{Rows: []domain.ImportRow{{Date: "2024-01-15", Type: "sale", Amount: "10"}}})
	require.NoError(t, err)
	txID := result.Transactions[0].ID

	returnID := snowflake.ID(9)
	id, err := snowflake.ParseString(txID)
	require.NoError(t, err)
	h.returns.On("MatchTransaction", mock.Anything, returnID, id).
		Run(func(mock.Arguments) {
			n, err := repository.Provide().Claim(ctx, h.db, []snowflake.ID{id}, returnID, h.clock.Now())
			require.NoError(t, err)
			require.Equal(t, int64(1), n)
		}).
		Return(true, nil).Once()

	first, err := h.svc.Match(ctx, domain.MatchRequest{ID: txID, ReturnID: "9"})
	require.NoError(t, err)
	assert.True(t, first.Matched)
	assert.Equal(t, "9", first.MatchedReturnID)

	h.clock.Advance(time.Hour)
	second, err := h.svc.Match(ctx, domain.MatchRequest{ID: txID})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	h.returns.AssertExpectations(t)
}

func TestMatchRejectedByReturnLeavesTransactionOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.svc.Import(ctx, domain.ImportRequest{Rows: []domain.ImportRow{{Date: "2024-01-15", Type: "sale", Amount: "10"}}})
	require.NoError(t, err)
	txID := result.Transactions[0].ID

	h.returns.On("MatchTransaction", mock.Anything, snowflake.ID(9), mock.Anything).Return(false, errReturnClosed)

	_, err = h.svc.Match(ctx, domain.MatchRequest{ID: txID, ReturnID: "9"})
	assert.ErrorIs(t, err, errReturnClosed)

	got, err := h.svc.Get(ctx, txID)
	require.NoError(t, err)
	assert.False(t, got.Matched)
	assert.Empty(t, got.MatchedReturnID)

	var audits int64
	require.NoError(t, h.db.Model(&auditdomain.AuditLog{}).Where("action = ?", "transaction.matched").Count(&audits).Error)
	assert.Zero(t, audits)
	h.returns.AssertNotCalled(t, "AppendActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMatchUnknownTransaction(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Match(context.Background(), domain.MatchRequest{ID: "12345"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.svc.Match(context.Background(), domain.MatchRequest{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.svc.Import(ctx, domain.ImportRequest{Rows: []domain.ImportRow{
		{Date: "2024-01-05", Type: "sale", Amount: "1"},
		{Date: "2024-01-20", Type: "purchase", Amount: "2"},
		{Date: "2024-02-03", Type: "sale", Amount: "3"},
	}})
	require.NoError(t, err)
	_, err = h.svc.Match(ctx, domain.MatchRequest{ID: result.Transactions[2].ID})
	require.NoError(t, err)

	all, err := h.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02-03", all[0].Date)

	sales, err := h.svc.List(ctx, domain.ListRequest{Type: "sale"})
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	unmatched := false
	open, err := h.svc.List(ctx, domain.ListRequest{Matched: &unmatched})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	january, err := h.svc.List(ctx, domain.ListRequest{From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)
	assert.Len(t, january, 2)

	_, err = h.svc.List(ctx, domain.ListRequest{From: "2024-02-01", To: "2024-01-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
	_, err = h.svc.List(ctx, domain.ListRequest{Type: "refund"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestGetTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.svc.Import(ctx, domain.ImportRequest{Rows: []domain.ImportRow{{Date: "2024-01-05", Type: "sale", Amount: "1", VatCategory: "exempt"}}})
	require.NoError(t, err)

	got, err := h.svc.Get(ctx, result.Transactions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VatCategoryExempt, got.VatCategory)
}
