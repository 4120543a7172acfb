package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [out.xlsx]",
	Short: "Write stored invoices to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var exportFrom, exportTo string

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first order date, YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last order date, YYYY-MM-DD")
}

func runExport(cmd *cobra.Command, args []string) error {
	for _, d := range []string{exportFrom, exportTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q, use YYYY-MM-DD", d)
		}
	}

	app, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	data, err := app.Export.ExportInvoicesXLSX(cmd.Context(), export.Window{From: exportFrom, To: exportTo})
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", args[0], len(data))
	return nil
}
