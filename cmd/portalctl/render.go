package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

// yen formats an amount in whole yen, e.g. ¥1,200
func yen(d decimal.Decimal) string {
	return money.New(d.Round(0).IntPart(), money.JPY).Display()
}

func percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderClients(w io.Writer, clients []portal.ClientSummary) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCREATED")
	for _, c := range clients {
		email := c.Email
		if email == "" {
			email = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, email, c.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func renderStatus(w io.Writer, year int, rows []portal.StatusRow) error {
	tw := newTable(w)
	header := "CLIENT"
	for _, term := range checklist.Terms() {
		header += fmt.Sprintf("\t%d TERM%d CLIENT\tOFFICE", year, term)
	}
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		line := row.Client.Name
		for _, term := range checklist.Terms() {
			st := row.Terms[term]
			line += fmt.Sprintf("\t%s\t%s", st.ClientStatus, st.OfficeStatus)
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func renderReconciliation(w io.Writer, view *portal.View) error {
	fmt.Fprintf(w, "%s %d term%d (%s / %s)\n", view.ClientName, view.Scope.Year, view.Scope.Term,
		view.Status.ClientStatus, view.Status.OfficeStatus)

	tw := newTable(w)
	fmt.Fprintln(tw, "MONTH\tNET SALES\tLEDGER SALES\tDIFF\tRATIO\tPURCHASE\tLEDGER PURCHASE\tPURCHASE CHECK\tALERT")
	for _, row := range view.Reconciliation {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Month,
			yen(row.Result.SalesNet),
			yen(decimal.NewFromFloat(row.Ledger.Sales)),
			yen(row.Result.SalesDiff),
			ratioText(row),
			yen(row.Vendor.Purchase),
			yen(decimal.NewFromFloat(row.Ledger.Purchase)),
			row.Result.PurchaseLabel(),
			alertText(row.Alert),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(view.BlockedMonths) > 0 {
		fmt.Fprintf(w, "justification required before submitting: months %v\n", view.BlockedMonths)
	}
	return nil
}

func ratioText(row variance.MonthlyReconciliation) string {
	if row.LedgerSalesMissing {
		return "—"
	}
	return percent(row.Result.SalesDiffRatio)
}

func alertText(alert bool) string {
	if alert {
		return "!"
	}
	return ""
}
