// Package domain contains the imported sale/purchase ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeSale     Type = "sale"
	TypePurchase Type = "purchase"
)

type VatCategory string

const (
	VatCategoryVatable   VatCategory = "vatable"
	VatCategoryZeroRated VatCategory = "zero_rated"
	VatCategoryExempt    VatCategory = "exempt"
)

// Transaction is created by import and only ever mutated by matching.
// MatchedReturnID records which return claimed it.
type Transaction struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	Date            time.Time       `gorm:"not null;index"`
	Type            Type            `gorm:"type:varchar(16);not null"`
	VendorID        *snowflake.ID   `gorm:"column:vendor_id;index"`
	InvoiceNumber   string          `gorm:"column:invoice_number;type:text"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	VatAmount       decimal.Decimal `gorm:"column:vat_amount;type:numeric(20,2);not null"`
	Category        string          `gorm:"type:text"`
	VatCategory     VatCategory     `gorm:"column:vat_category;type:varchar(16);not null;default:'vatable'"`
	Matched         bool            `gorm:"not null;default:false;index"`
	MatchedReturnID *snowflake.ID   `gorm:"column:matched_return_id;index"`
	MatchedAt       *time.Time      `gorm:"column:matched_at"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	out := t
	if t.VendorID != nil {
		v := *t.VendorID
		out.VendorID = &v
	}
	if t.MatchedReturnID != nil {
		v := *t.MatchedReturnID
		out.MatchedReturnID = &v
	}
	if t.MatchedAt != nil {
		v := *t.MatchedAt
		out.MatchedAt = &v
	}
	return out
}
