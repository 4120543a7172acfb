package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored invoices, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [order-id]",
	Short: "Print one invoice with its line items",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [order-id]",
	Short: "Delete an invoice and its line items",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	listPage    int
	listPerPage int
)

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listPerPage, "per-page", 20, "invoices per page")
}

func runList(cmd *cobra.Command, _ []string) error {
	app, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	page, err := app.Invoices.ListInvoices(cmd.Context(), listPage, listPerPage)
	if err != nil {
		return err
	}
	return printJSON(page)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	app, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	rec, err := app.Invoices.GetInvoice(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	app, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	if err := app.Invoices.DeleteInvoice(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("deleted invoice %d\n", id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return id, nil
}
