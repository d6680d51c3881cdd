package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/seed"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load demo vendors, returns and transactions from a JSON file",
	Long: `Load demo data from a JSON file. Nothing is written when the database
already holds any VAT return.`,
	Example: `  vatctl seed config/seed.example.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ds, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	var (
		conn *gorm.DB
		node *snowflake.Node
		clk  clock.Clock
		tax  *config.TaxConfigHolder
	)
	return runApp(cmd.Context(), func() error {
		summary, err := seed.Apply(cliContext(cmd.Context()), conn, ds, seed.Options{
			Node:    node,
			VatRate: tax.VatRate(),
			Now:     clk.Now(),
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if summary.Skipped {
			fmt.Fprintln(out, "database already seeded, nothing written")
			return nil
		}
		fmt.Fprintf(out, "seeded %d vendors, %d returns, %d transactions\n",
			summary.Vendors, summary.Returns, summary.Transactions)
		return nil
	}, &conn, &node, &clk, &tax)
}
