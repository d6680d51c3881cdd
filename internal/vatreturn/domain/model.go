// Package domain contains the VAT return lifecycle model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the filing lifecycle. Transitions only move forward.
type Status string

const (
	StatusDraft Status = "draft"
	StatusReady Status = "ready"
	StatusFiled Status = "filed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusFiled:
		return true
	default:
		return false
	}
}

// ActivityType classifies entries of a return's audit trail.
type ActivityType string

const (
	ActivityCreate    ActivityType = "create"
	ActivityUpdate    ActivityType = "update"
	ActivityReady     ActivityType = "ready"
	ActivityFiled     ActivityType = "filed"
	ActivityReconcile ActivityType = "reconcile"
	ActivityMatch     ActivityType = "match"
	ActivityWarning   ActivityType = "warning"
)

// VatReturn is one tax-filing record.
// OutputVat is derived: round(TaxableSales * VatRate, 2), where VatRate is the
// rate snapshot taken by the last create or update.
type VatReturn struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	PeriodStart time.Time    `gorm:"column:period_start;not null;index"`
	PeriodEnd   time.Time    `gorm:"column:period_end;not null;index"`
	Status      Status       `gorm:"type:varchar(16);not null;default:'draft';index"`

	TaxableSales   decimal.Decimal `gorm:"column:taxable_sales;type:numeric(20,2);not null"`
	ZeroRatedSales decimal.Decimal `gorm:"column:zero_rated_sales;type:numeric(20,2);not null"`
	ExemptSales    decimal.Decimal `gorm:"column:exempt_sales;type:numeric(20,2);not null"`

	VatRate     decimal.Decimal `gorm:"column:vat_rate;type:numeric(8,6);not null"`
	OutputVat   decimal.Decimal `gorm:"column:output_vat;type:numeric(20,2);not null"`
	InputVat    decimal.Decimal `gorm:"column:input_vat;type:numeric(20,2);not null"`
	Adjustments decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Credits     decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Penalties   decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	Attachments datatypes.JSONSlice[string] `gorm:"type:json"`

	FilingReference *string    `gorm:"column:filing_reference;type:text"`
	FiledAt         *time.Time `gorm:"column:filed_at"`
	FiledBy         *string    `gorm:"column:filed_by;type:text"`

	Revision  int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (VatReturn) TableName() string { return "vat_returns" }

func (r *VatReturn) Period() Period {
	return Period{Start: TruncateDate(r.PeriodStart), End: TruncateDate(r.PeriodEnd)}
}

// NetVat is the amount payable (positive) or reclaimable (negative).
func (r *VatReturn) NetVat() decimal.Decimal {
	return r.OutputVat.
		Sub(r.InputVat).
		Add(r.Adjustments).
		Sub(r.Credits).
		Add(r.Penalties)
}

// Recompute refreshes the derived fields from rate.
func (r *VatReturn) Recompute(rate decimal.Decimal) {
	r.VatRate = rate
	r.OutputVat = ComputeOutputVat(r.TaxableSales, rate)
}

// Snapshot copies the editable fields for a version record.
func (r *VatReturn) Snapshot() Snapshot {
	attachments := make([]string, len(r.Attachments))
	copy(attachments, r.Attachments)
	return Snapshot{
		PeriodStart:     FormatDate(r.PeriodStart),
		PeriodEnd:       FormatDate(r.PeriodEnd),
		Status:          r.Status,
		TaxableSales:    r.TaxableSales,
		ZeroRatedSales:  r.ZeroRatedSales,
		ExemptSales:     r.ExemptSales,
		VatRate:         r.VatRate,
		OutputVat:       r.OutputVat,
		InputVat:        r.InputVat,
		Adjustments:     r.Adjustments,
		Credits:         r.Credits,
		Penalties:       r.Penalties,
		Attachments:     attachments,
		FilingReference: r.FilingReference,
		FiledBy:         r.FiledBy,
		FiledAt:         r.FiledAt,
	}
}

// ComputeOutputVat rounds half away from zero to cents.
func ComputeOutputVat(taxableSales, rate decimal.Decimal) decimal.Decimal {
	return taxableSales.Mul(rate).Round(2)
}

// Snapshot is the point-in-time copy stored with every version.
type Snapshot struct {
	PeriodStart     string          `json:"period_start"`
	PeriodEnd       string          `json:"period_end"`
	Status          Status          `json:"status"`
	TaxableSales    decimal.Decimal `json:"taxable_sales"`
	ZeroRatedSales  decimal.Decimal `json:"zero_rated_sales"`
	ExemptSales     decimal.Decimal `json:"exempt_sales"`
	VatRate         decimal.Decimal `json:"vat_rate"`
	OutputVat       decimal.Decimal `json:"output_vat"`
	InputVat        decimal.Decimal `json:"input_vat"`
	Adjustments     decimal.Decimal `json:"adjustments"`
	Credits         decimal.Decimal `json:"credits"`
	Penalties       decimal.Decimal `json:"penalties"`
	Attachments     []string        `json:"attachments"`
	FilingReference *string         `json:"filing_reference,omitempty"`
	FiledBy         *string         `json:"filed_by,omitempty"`
	FiledAt         *time.Time      `json:"filed_at,omitempty"`
}

// Version is an append-only snapshot row; Seq equals the return revision it captured.
type Version struct {
	ID        snowflake.ID                  `gorm:"primaryKey"`
	ReturnID  snowflake.ID                  `gorm:"column:return_id;not null;uniqueIndex:ux_vat_return_versions_seq"`
	Seq       int64                         `gorm:"not null;uniqueIndex:ux_vat_return_versions_seq"`
	Snapshot  datatypes.JSONType[Snapshot] `gorm:"type:json;not null"`
	CreatedAt time.Time                     `gorm:"not null"`
}

func (Version) TableName() string { return "vat_return_versions" }

// Activity is one human-readable audit trail entry. Never edited.
type Activity struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ReturnID  snowflake.ID `gorm:"column:return_id;not null;index"`
	Type      ActivityType `gorm:"type:varchar(16);not null"`
	Message   string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Activity) TableName() string { return "vat_return_activities" }
