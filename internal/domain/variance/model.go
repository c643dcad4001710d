package variance

import (
	"github.com/shopspring/decimal"
)

// Threshold is the largest variance ratio that is still acceptable.
var Threshold = decimal.NewFromFloat(0.10)

// ShopMonth identifies one shop's figures for one calendar month.
type ShopMonth struct {
	Month int    `json:"month"`
	Shop  string `json:"shop"`
}

// Figures are the amounts a client reports for a shop in a month.
type Figures struct {
	Sales    float64 `json:"sales"`
	Purchase float64 `json:"purchase"`
	Fee      float64 `json:"fee"`
}

// MonthlyShopEntry is a vendor-side record for one (month, shop) pair.
type MonthlyShopEntry struct {
	ShopMonth
	Figures
}

// MonthlyTotal is the sum of all shop entries for a month.
type MonthlyTotal struct {
	Sales    decimal.Decimal `json:"sales"`
	Purchase decimal.Decimal `json:"purchase"`
	Fee      decimal.Decimal `json:"fee"`
}

// LedgerMonthlyEntry is the accounting-software side for a month.
type LedgerMonthlyEntry struct {
	Month    int     `json:"month"`
	Sales    float64 `json:"sales"`
	Purchase float64 `json:"purchase"`
}

// Result is the reconciliation of one month.
type Result struct {
	SalesNet          decimal.Decimal `json:"salesNet"`
	SalesDiff         decimal.Decimal `json:"salesDiff"`
	SalesDiffRatio    decimal.Decimal `json:"salesDiffRatio"`
	PurchaseDiff      decimal.Decimal `json:"purchaseDiff"`
	PurchaseDiffRatio decimal.Decimal `json:"purchaseDiffRatio"`
	// PurchaseOK is nil when the ledger has no purchase amount to compare against.
	PurchaseOK *bool `json:"purchaseOk"`
}

// SalesAlert reports whether net sales deviate from the ledger by more than Threshold.
func (r Result) SalesAlert() bool {
	return r.SalesDiffRatio.GreaterThan(Threshold)
}

// Alert reports whether the month needs a written justification.
func (r Result) Alert() bool {
	return r.SalesAlert() || (r.PurchaseOK != nil && !*r.PurchaseOK)
}

// PurchaseLabel renders PurchaseOK the way the checklist shows it.
func (r Result) PurchaseLabel() string {
	switch {
	case r.PurchaseOK == nil:
		return "—"
	case *r.PurchaseOK:
		return "OK"
	default:
		return "要確認"
	}
}

// MonthlyReconciliation is one row of the sales-check view.
type MonthlyReconciliation struct {
	Month  int                `json:"month"`
	Vendor MonthlyTotal       `json:"vendor"`
	Ledger LedgerMonthlyEntry `json:"ledger"`
	Result Result             `json:"result"`
	Alert  bool               `json:"alert"`
	// LedgerSalesMissing marks rows whose sales ratio is 0 only because the ledger is empty.
	LedgerSalesMissing bool `json:"ledgerSalesMissing"`
}
