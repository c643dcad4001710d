package variance

import (
	"github.com/shopspring/decimal"
)

// AggregateMonth sums every entry that belongs to month.
func AggregateMonth(entries []MonthlyShopEntry, month int) MonthlyTotal {
	total := MonthlyTotal{Sales: decimal.Zero, Purchase: decimal.Zero, Fee: decimal.Zero}
	for _, e := range entries {
		if e.Month != month {
			continue
		}
		total.Sales = total.Sales.Add(decimal.NewFromFloat(e.Sales))
		total.Purchase = total.Purchase.Add(decimal.NewFromFloat(e.Purchase))
		total.Fee = total.Fee.Add(decimal.NewFromFloat(e.Fee))
	}
	return total
}

// ComputeVariance compares vendor totals with the ledger for the same month.
func ComputeVariance(vendor MonthlyTotal, ledger LedgerMonthlyEntry) Result {
	ledgerSales := decimal.NewFromFloat(ledger.Sales)
	ledgerPurchase := decimal.NewFromFloat(ledger.Purchase)

	salesNet := vendor.Sales.Sub(vendor.Fee)
	salesDiff := salesNet.Sub(ledgerSales).Abs()
	purchaseDiff := vendor.Purchase.Sub(ledgerPurchase).Abs()

	res := Result{
		SalesNet:          salesNet,
		SalesDiff:         salesDiff,
		SalesDiffRatio:    ratio(salesDiff, ledgerSales),
		PurchaseDiff:      purchaseDiff,
		PurchaseDiffRatio: ratio(purchaseDiff, ledgerPurchase),
	}
	if ledgerPurchase.IsPositive() {
		ok := res.PurchaseDiffRatio.LessThanOrEqual(Threshold)
		res.PurchaseOK = &ok
	}
	return res
}

// ReconcileMonths builds the reconciliation row for each of months.
func ReconcileMonths(entries []MonthlyShopEntry, ledger map[int]LedgerMonthlyEntry, months []int) []MonthlyReconciliation {
	rows := make([]MonthlyReconciliation, 0, len(months))
	for _, m := range months {
		l, ok := ledger[m]
		if !ok {
			l = LedgerMonthlyEntry{Month: m}
		}
		vendor := AggregateMonth(entries, m)
		res := ComputeVariance(vendor, l)
		rows = append(rows, MonthlyReconciliation{
			Month:              m,
			Vendor:             vendor,
			Ledger:             l,
			Result:             res,
			Alert:              res.Alert(),
			LedgerSalesMissing: l.Sales <= 0,
		})
	}
	return rows
}

// AlertMonths lists the months of rows that are in alert.
func AlertMonths(rows []MonthlyReconciliation) []int {
	var months []int
	for _, r := range rows {
		if r.Alert {
			months = append(months, r.Month)
		}
	}
	return months
}

func ratio(diff, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return diff.Div(base)
}
