package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
	Match(ctx context.Context, req MatchRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
}

// ReturnActivity lets imports and manual matches write to a return's activity log.
type ReturnActivity interface {
	EnsureReturn(ctx context.Context, returnID snowflake.ID) error
	AppendActivity(ctx context.Context, returnID snowflake.ID, activityType string, message string) error
	// MatchTransaction claims txID for returnID under the return engine's write lock.
	// It reports false when the transaction was already matched.
	MatchTransaction(ctx context.Context, returnID, txID snowflake.ID) (bool, error)
}

// ImportRow is one raw ledger row; every field arrives as text.
type ImportRow struct {
	Date          string `json:"date"`
	Type          string `json:"type"`
	VendorID      string `json:"vendor_id"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	VatAmount     string `json:"vat_amount"`
	Category      string `json:"category"`
	VatCategory   string `json:"vat_category"`
}

type RowStatus string

const (
	RowImported  RowStatus = "imported"
	RowDefaulted RowStatus = "defaulted"
	RowRejected  RowStatus = "rejected"
)

type RowResult struct {
	Row           int       `json:"row"`
	Status        RowStatus `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
}

type ImportRequest struct {
	// ReturnID optionally scopes warnings to a return's activity log.
	ReturnID string      `json:"return_id"`
	Source   string      `json:"source"`
	Rows     []ImportRow `json:"rows"`
}

type ImportResult struct {
	// BatchID ties the audit entries and log lines of one import together.
	BatchID      string      `json:"batch_id"`
	Imported     int         `json:"imported"`
	Defaulted    int         `json:"defaulted"`
	Rejected     int         `json:"rejected"`
	Rows         []RowResult `json:"rows"`
	Transactions []Response  `json:"transactions"`
}

type MatchRequest struct {
	ID       string `json:"id"`
	ReturnID string `json:"return_id"`
}

type ListRequest struct {
	Matched  *bool
	Type     string
	ReturnID string
	From     string
	To       string
}

type Response struct {
	ID              string          `json:"id"`
	Date            string          `json:"date"`
	Type            Type            `json:"type"`
	VendorID        string          `json:"vendor_id,omitempty"`
	InvoiceNumber   string          `json:"invoice_number"`
	Amount          decimal.Decimal `json:"amount"`
	VatAmount       decimal.Decimal `json:"vat_amount"`
	Category        string          `json:"category"`
	VatCategory     VatCategory     `json:"vat_category"`
	Matched         bool            `json:"matched"`
	MatchedReturnID string          `json:"matched_return_id,omitempty"`
	MatchedAt       *time.Time      `json:"matched_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func ToResponse(t *Transaction) Response {
	resp := Response{
		ID:            t.ID.String(),
		Date:          t.Date.UTC().Format("2006-01-02"),
		Type:          t.Type,
		InvoiceNumber: t.InvoiceNumber,
		Amount:        t.Amount,
		VatAmount:     t.VatAmount,
		Category:      t.Category,
		VatCategory:   t.VatCategory,
		Matched:       t.Matched,
		MatchedAt:     t.MatchedAt,
		CreatedAt:     t.CreatedAt,
	}
	if t.VendorID != nil {
		resp.VendorID = t.VendorID.String()
	}
	if t.MatchedReturnID != nil {
		resp.MatchedReturnID = t.MatchedReturnID.String()
	}
	return resp
}
