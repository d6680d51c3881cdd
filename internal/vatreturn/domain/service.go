package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	MarkReady(ctx context.Context, id string) (*Response, error)
	MarkFiled(ctx context.Context, req FileRequest) (*Response, error)
	AutoReconcile(ctx context.Context, id string) (*ReconcileResult, error)
	Export(ctx context.Context, id string, format string) (*Document, error)

	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	ListVersions(ctx context.Context, id string) ([]VersionResponse, error)
	ListActivity(ctx context.Context, id string) ([]ActivityResponse, error)
}

type CreateRequest struct {
	PeriodStart    string          `json:"period_start"`
	PeriodEnd      string          `json:"period_end"`
	TaxableSales   decimal.Decimal `json:"taxable_sales"`
	ZeroRatedSales decimal.Decimal `json:"zero_rated_sales"`
	ExemptSales    decimal.Decimal `json:"exempt_sales"`
	InputVat       decimal.Decimal `json:"input_vat"`
	Adjustments    decimal.Decimal `json:"adjustments"`
	Credits        decimal.Decimal `json:"credits"`
	Penalties      decimal.Decimal `json:"penalties"`
	Attachments    []string        `json:"attachments"`
}

// UpdateRequest is a partial update; nil fields keep their stored value.
type UpdateRequest struct {
	ID             string           `json:"id"`
	PeriodStart    *string          `json:"period_start,omitempty"`
	PeriodEnd      *string          `json:"period_end,omitempty"`
	TaxableSales   *decimal.Decimal `json:"taxable_sales,omitempty"`
	ZeroRatedSales *decimal.Decimal `json:"zero_rated_sales,omitempty"`
	ExemptSales    *decimal.Decimal `json:"exempt_sales,omitempty"`
	// OutputVat is accepted but always replaced by the recomputed value.
	OutputVat   *decimal.Decimal `json:"output_vat,omitempty"`
	InputVat    *decimal.Decimal `json:"input_vat,omitempty"`
	Adjustments *decimal.Decimal `json:"adjustments,omitempty"`
	Credits     *decimal.Decimal `json:"credits,omitempty"`
	Penalties   *decimal.Decimal `json:"penalties,omitempty"`
	Attachments *[]string        `json:"attachments,omitempty"`
}

type FileRequest struct {
	ID        string     `json:"id"`
	Reference string     `json:"reference"`
	FiledBy   string     `json:"filed_by"`
	FiledAt   *time.Time `json:"filed_at,omitempty"`
}

type ListRequest struct {
	Status string
}

type FilingResponse struct {
	Reference string    `json:"reference"`
	FiledAt   time.Time `json:"filed_at"`
	FiledBy   string    `json:"filed_by,omitempty"`
}

type Response struct {
	ID             string          `json:"id"`
	PeriodStart    string          `json:"period_start"`
	PeriodEnd      string          `json:"period_end"`
	Status         Status          `json:"status"`
	TaxableSales   decimal.Decimal `json:"taxable_sales"`
	ZeroRatedSales decimal.Decimal `json:"zero_rated_sales"`
	ExemptSales    decimal.Decimal `json:"exempt_sales"`
	VatRate        decimal.Decimal `json:"vat_rate"`
	OutputVat      decimal.Decimal `json:"output_vat"`
	InputVat       decimal.Decimal `json:"input_vat"`
	Adjustments    decimal.Decimal `json:"adjustments"`
	Credits        decimal.Decimal `json:"credits"`
	Penalties      decimal.Decimal `json:"penalties"`
	NetVat         decimal.Decimal `json:"net_vat"`
	Attachments    []string        `json:"attachments"`
	Filing         *FilingResponse `json:"filing,omitempty"`
	Revision       int64           `json:"revision"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type VersionResponse struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Snapshot  Snapshot  `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityResponse struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
}

// Variance compares matched transactions to the declared figures. It is
// informational: reconciliation never checks amounts.
type Variance struct {
	MatchedSales        decimal.Decimal `json:"matched_sales"`
	MatchedOutputVat    decimal.Decimal `json:"matched_output_vat"`
	MatchedInputVat     decimal.Decimal `json:"matched_input_vat"`
	OutputVatDelta      decimal.Decimal `json:"output_vat_delta"`
	InputVatDelta       decimal.Decimal `json:"input_vat_delta"`
	Balanced            bool            `json:"balanced"`
	MatchedTransactions int             `json:"matched_transactions"`
}

type ReconcileResult struct {
	ReturnID       string   `json:"return_id"`
	MatchedCount   int      `json:"matched_count"`
	TransactionIDs []string `json:"transaction_ids"`
	Variance       Variance `json:"variance"`
}

// Document is a rendered export artifact.
type Document struct {
	Format      string
	ContentType string
	Filename    string
	Body        []byte
}
