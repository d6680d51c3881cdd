package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/audit/repository"
	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk, db
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), "user", "alice")
	ctx = auditcontext.WithRequestID(ctx, "req-1")

	target := "42"
	err := svc.AuditLog(ctx, "", nil, "vat_return.filed", "vat_return", &target, map[string]any{
		"filing_reference": "REF-2026-000123",
		"status":           "filed",
	})
	require.NoError(t, err)

	var entry domain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "alice", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "filed", entry.Metadata["status"])
	assert.Equal(t, "****0123", entry.Metadata["filing_reference"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _, db := newTestService(t)
	require.NoError(t, svc.AuditLog(context.Background(), "", nil, "transactions.imported", "", nil, nil))

	var entry domain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "system", entry.ActorType)
	assert.Equal(t, "unknown", entry.TargetType)
	assert.Nil(t, entry.ActorID)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), "", nil, "  ", "vat_return", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AuditLog(ctx, "cli", nil, fmt.Sprintf("action.%d", i), "vat_return", nil, nil))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, domain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "action.4", first.AuditLogs[0].Action)
	assert.Equal(t, "action.3", first.AuditLogs[1].Action)

	second, err := svc.List(ctx, domain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 2)
	assert.Equal(t, "action.2", second.AuditLogs[0].Action)

	third, err := svc.List(ctx, domain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: second.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, third.AuditLogs, 1)
	assert.False(t, third.HasMore)
	assert.Empty(t, third.NextPageToken)
}

func TestListValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.List(context.Background(), domain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	_, err = svc.List(context.Background(), domain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
