package checklist

import (
	"strconv"

	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

// Record is the stored shape of a task, shared by every storage backend.
type Record struct {
	No           string   `json:"no" dynamodbav:"no"`
	Name         string   `json:"name" dynamodbav:"name"`
	ClientInput  string   `json:"clientInput" dynamodbav:"clientInput"`
	OfficeStatus string   `json:"officeStatus" dynamodbav:"officeStatus"`
	Memo         string   `json:"memo,omitempty" dynamodbav:"memo,omitempty"`
	Manual       string   `json:"manual,omitempty" dynamodbav:"manual,omitempty"`
	Type         string   `json:"type,omitempty" dynamodbav:"type,omitempty"`
	IsCustom     bool     `json:"isCustom,omitempty" dynamodbav:"isCustom,omitempty"`
	Details      *Details `json:"details,omitempty" dynamodbav:"details,omitempty"`
}

// Details holds the figures of sales tasks keyed by month number.
type Details struct {
	MonthlyData   map[string]map[string]ShopFigures `json:"monthlyData,omitempty" dynamodbav:"monthlyData,omitempty"`
	MfData        map[string]LedgerFigures          `json:"mfData,omitempty" dynamodbav:"mfData,omitempty"`
	Justification string                            `json:"justification,omitempty" dynamodbav:"justification,omitempty"`
}

// ShopFigures is the stored form of variance.Figures.
type ShopFigures struct {
	Sales    float64 `json:"sales" dynamodbav:"sales"`
	Purchase float64 `json:"purchase" dynamodbav:"purchase"`
	Fee      float64 `json:"fee" dynamodbav:"fee"`
}

// LedgerFigures is the stored form of a ledger month.
type LedgerFigures struct {
	Sales    float64 `json:"sales" dynamodbav:"sales"`
	Purchase float64 `json:"purchase" dynamodbav:"purchase"`
}

// ToRecord converts a task to its stored shape.
func ToRecord(t Task) Record {
	r := Record{
		No:           t.ID,
		Name:         t.Name,
		ClientInput:  t.ClientInput,
		OfficeStatus: string(t.OfficeStatus),
		Memo:         t.Memo,
		Manual:       t.Manual,
		Type:         string(t.Kind()),
		IsCustom:     t.Custom,
	}

	switch p := t.Payload.(type) {
	case SalesInput:
		d := &Details{MonthlyData: map[string]map[string]ShopFigures{}}
		for k, f := range p.Entries {
			month := strconv.Itoa(k.Month)
			if d.MonthlyData[month] == nil {
				d.MonthlyData[month] = map[string]ShopFigures{}
			}
			d.MonthlyData[month][k.Shop] = ShopFigures(f)
		}
		r.Details = d
	case SalesCheck:
		d := &Details{MfData: map[string]LedgerFigures{}, Justification: p.Justification}
		for m, l := range p.Ledger {
			d.MfData[strconv.Itoa(m)] = LedgerFigures{Sales: l.Sales, Purchase: l.Purchase}
		}
		r.Details = d
	}
	return r
}

// FromRecord converts a stored task back to the domain form.
// Month keys that are not numbers are skipped.
func FromRecord(r Record) Task {
	t := Task{
		ID:           r.No,
		Name:         r.Name,
		Manual:       r.Manual,
		Custom:       r.IsCustom,
		ClientInput:  r.ClientInput,
		OfficeStatus: TaskStatus(r.OfficeStatus),
		Memo:         r.Memo,
	}
	if !t.OfficeStatus.Valid() {
		t.OfficeStatus = TaskPending
	}

	switch Kind(r.Type) {
	case KindSalesInput:
		p := SalesInput{Entries: map[variance.ShopMonth]variance.Figures{}}
		if r.Details != nil {
			for month, shops := range r.Details.MonthlyData {
				m, err := strconv.Atoi(month)
				if err != nil {
					continue
				}
				for shop, f := range shops {
					p.Entries[variance.ShopMonth{Month: m, Shop: shop}] = variance.Figures(f)
				}
			}
		}
		t.Payload = p
	case KindSalesCheck:
		p := SalesCheck{Ledger: map[int]variance.LedgerMonthlyEntry{}}
		if r.Details != nil {
			p.Justification = r.Details.Justification
			for month, l := range r.Details.MfData {
				m, err := strconv.Atoi(month)
				if err != nil {
					continue
				}
				p.Ledger[m] = variance.LedgerMonthlyEntry{Month: m, Sales: l.Sales, Purchase: l.Purchase}
			}
		}
		t.Payload = p
	case KindTextarea:
		t.Payload = Textarea{}
	default:
		t.Payload = Plain{}
	}
	return t
}

// ToRecords converts a task list to its stored shape.
func ToRecords(tasks []Task) []Record {
	out := make([]Record, len(tasks))
	for i, t := range tasks {
		out[i] = ToRecord(t)
	}
	return out
}

// FromRecords converts stored tasks back to the domain form.
func FromRecords(records []Record) []Task {
	out := make([]Task, len(records))
	for i, r := range records {
		out[i] = FromRecord(r)
	}
	return out
}
