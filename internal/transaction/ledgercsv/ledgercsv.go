// Package ledgercsv reads ledger exports into raw import rows.
package ledgercsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/vatdesk/internal/transaction/domain"
)

var ErrMissingColumn = errors.New("missing_column")

// Columns lists the recognised header names. Unknown headers are ignored.
var Columns = []string{"date", "type", "vendor_id", "invoice_number", "amount", "vat_amount", "category", "vat_category"}

var requiredColumns = []string{"date", "type"}

// Read parses a header row followed by data rows. Blank lines are skipped;
// short rows leave the missing trailing fields empty.
func Read(r io.Reader) ([]domain.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	rows := []domain.ImportRow{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, domain.ImportRow{
			Date:          field("date"),
			Type:          field("type"),
			VendorID:      field("vendor_id"),
			InvoiceNumber: field("invoice_number"),
			Amount:        field("amount"),
			VatAmount:     field("vat_amount"),
			Category:      field("category"),
			VatCategory:   field("vat_category"),
		})
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
