package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/smallbiznis/vatdesk/internal/export"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export <return-id>",
	Short:   "Render a return and its matched transactions as CSV or PDF",
	Example: `  vatctl export 1790000000000000000 --format pdf --out january.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", export.FormatCSV, "csv or pdf")
	exportCmd.Flags().String("out", "", "output file (default: the generated file name)")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	var svc vatdomain.Service
	return runApp(cmd.Context(), func() error {
		doc, err := svc.Export(cmd.Context(), args[0], format)
		if err != nil {
			return err
		}
		if strings.TrimSpace(outPath) == "" {
			outPath = doc.Filename
		}
		if err := os.WriteFile(outPath, doc.Body, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(doc.Body))
		return nil
	}, &svc)
}
