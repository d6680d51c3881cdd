package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Vendor, error) {
	args := m.Called(ctx, db, id)
	v, _ := args.Get(0).(*domain.Vendor)
	return v, args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, db *gorm.DB) ([]domain.Vendor, error) {
	args := m.Called(ctx, db)
	v, _ := args.Get(0).([]domain.Vendor)
	return v, args.Error(1)
}

func (m *mockRepo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Vendor, error) {
	args := m.Called(ctx, db, ids)
	v, _ := args.Get(0).([]domain.Vendor)
	return v, args.Error(1)
}

func TestGetVendor(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(Params{Log: zap.NewNop(), Repo: repo})
	ctx := context.Background()

	repo.On("FindByID", ctx, (*gorm.DB)(nil), snowflake.ID(7)).
		Return(&domain.Vendor{ID: 7, Name: "Acme Supplies", CreatedAt: time.Now()}, nil)
	repo.On("FindByID", ctx, (*gorm.DB)(nil), snowflake.ID(8)).Return(nil, nil)

	resp, err := svc.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies", resp.Name)

	_, err = svc.Get(ctx, "8")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	repo.AssertExpectations(t)
}

func TestNamesSkipsUnknownVendors(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(Params{Log: zap.NewNop(), Repo: repo})
	ctx := context.Background()
	ids := []snowflake.ID{1, 2}

	repo.On("FindByIDs", ctx, (*gorm.DB)(nil), ids).
		Return([]domain.Vendor{{ID: 1, Name: "Northwind"}}, nil)

	names, err := svc.Names(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, map[snowflake.ID]string{1: "Northwind"}, names)
}
