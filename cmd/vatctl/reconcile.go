package main

import (
	"fmt"

	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <return-id>",
	Short: "Match unmatched transactions dated inside a return's period",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	var svc vatdomain.Service
	return runApp(cmd.Context(), func() error {
		result, err := svc.AutoReconcile(cliContext(cmd.Context()), args[0])
		if err != nil {
			return err
		}

		v := result.Variance
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "matched %d transactions to return %s\n", result.MatchedCount, result.ReturnID)
		fmt.Fprintf(out, "matched output vat %s (delta %s), input vat %s (delta %s)\n",
			v.MatchedOutputVat.StringFixed(2), v.OutputVatDelta.StringFixed(2),
			v.MatchedInputVat.StringFixed(2), v.InputVatDelta.StringFixed(2))
		if !v.Balanced {
			fmt.Fprintln(out, "declared figures do not match the ledger")
		}
		return nil
	}, &svc)
}
