package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	vendordomain "github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&vatdomain.VatReturn{}, &vatdomain.Version{}, &vatdomain.Activity{},
		&txdomain.Transaction{}, &vendordomain.Vendor{},
	))
	return db
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"returns": [`), 0o600))

	ds, err := Load(path)
	assert.Nil(t, ds)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
}

func TestApplyDemoDataset(t *testing.T) {
	ds, err := Load("testdata/demo.json")
	require.NoError(t, err)
	db := openDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	opts := Options{Node: node, VatRate: decimal.RequireFromString("0.20"), Now: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}

	summary, err := Apply(context.Background(), db, ds, opts)
	require.NoError(t, err)
	assert.Equal(t, Summary{Vendors: 2, Returns: 2, Transactions: 4}, summary)

	var filed vatdomain.VatReturn
	require.NoError(t, db.First(&filed, "id = ?", 2001).Error)
	assert.Equal(t, vatdomain.StatusFiled, filed.Status)
	assert.Equal(t, "2500.00", filed.OutputVat.StringFixed(2))
	require.NotNil(t, filed.FilingReference)

	var versions int64
	require.NoError(t, db.Model(&vatdomain.Version{}).Count(&versions).Error)
	assert.Equal(t, int64(2), versions)

	again, err := Apply(context.Background(), db, ds, opts)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestApplyRollsBackOnInvalidRecord(t *testing.T) {
	db := openDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	ds := &Dataset{
		Vendors: []VendorRecord{{Name: "Acme"}},
		Returns: []ReturnRecord{{PeriodStart: "2024-02-01", PeriodEnd: "2024-01-01"}},
	}

	_, err = Apply(context.Background(), db, ds, Options{Node: node, VatRate: decimal.RequireFromString("0.2")})
	assert.ErrorIs(t, err, vatdomain.ErrInvalidPeriod)

	var vendors int64
	require.NoError(t, db.Model(&vendordomain.Vendor{}).Count(&vendors).Error)
	assert.Zero(t, vendors)
}
