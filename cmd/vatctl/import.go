package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"github.com/smallbiznis/vatdesk/internal/transaction/ledgercsv"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import ledger transactions from a CSV file",
	Long: `Import ledger transactions from a CSV file with a header row.
Recognised columns: date, type, vendor_id, invoice_number, amount,
vat_amount, category, vat_category. date and type are required.

Malformed amounts are imported as 0 and reported; rows with an invalid
date or type are rejected.`,
	Example: `  vatctl import ledger.csv
  vatctl import ledger.csv --return 1790000000000000000`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("return", "", "VAT return id that receives import warnings in its activity log")
}

func runImport(cmd *cobra.Command, args []string) error {
	returnID, _ := cmd.Flags().GetString("return")

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	rows, err := ledgercsv.Read(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	var svc txdomain.Service
	return runApp(cmd.Context(), func() error {
		result, err := svc.Import(cliContext(cmd.Context()), txdomain.ImportRequest{
			ReturnID: strings.TrimSpace(returnID),
			Source:   filepath.Base(args[0]),
			Rows:     rows,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "batch %s: imported %d, defaulted %d, rejected %d\n", result.BatchID, result.Imported, result.Defaulted, result.Rejected)
		for _, row := range result.Rows {
			if row.Status == txdomain.RowImported {
				continue
			}
			fmt.Fprintf(out, "  row %d %s: %s\n", row.Row, row.Status, strings.Join(row.Warnings, "; "))
		}
		return nil
	}, &svc)
}
