package checklist

import (
	"sort"
	"strings"

	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

// TaskStatus is the office review state of a single task.
type TaskStatus string

const (
	TaskPending     TaskStatus = "未"
	TaskOK          TaskStatus = "OK"
	TaskNeedsReview TaskStatus = "要確認"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskOK || s == TaskNeedsReview
}

// ClientStatus is the client's progress on a period.
type ClientStatus string

const (
	ClientNotStarted ClientStatus = "未着手"
	ClientInProgress ClientStatus = "進行中"
	ClientComplete   ClientStatus = "完了"
)

// OfficeStatus is the office's review progress on a period.
type OfficeStatus string

const (
	OfficeUnchecked OfficeStatus = "未チェック"
	OfficeChecking  OfficeStatus = "チェック中"
	OfficeApproved  OfficeStatus = "承認完了"
)

// PeriodStatus is the pair of statuses stored for one (year, term).
type PeriodStatus struct {
	ClientStatus ClientStatus `json:"clientStatus" dynamodbav:"clientStatus"`
	OfficeStatus OfficeStatus `json:"officeStatus" dynamodbav:"officeStatus"`
}

// DefaultPeriodStatus is what a period reports before anything was saved.
func DefaultPeriodStatus() PeriodStatus {
	return PeriodStatus{ClientStatus: ClientNotStarted, OfficeStatus: OfficeUnchecked}
}

// Kind selects the input variant of a task.
type Kind string

const (
	KindPlain      Kind = ""
	KindTextarea   Kind = "textarea"
	KindSalesInput Kind = "sales_input"
	KindSalesCheck Kind = "sales_check"
)

func (k Kind) String() string {
	if k == KindPlain {
		return "plain"
	}
	return string(k)
}

// DerivedInput reports whether clientInput is filled by the system for this kind.
func (k Kind) DerivedInput() bool {
	return k == KindSalesInput || k == KindSalesCheck
}

// Payload holds the kind specific data of a task.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// Plain is a task with a single free-text answer.
type Plain struct{}

func (Plain) Kind() Kind     { return KindPlain }
func (Plain) clone() Payload { return Plain{} }

// Textarea is a task with a multi-line answer.
type Textarea struct{}

func (Textarea) Kind() Kind     { return KindTextarea }
func (Textarea) clone() Payload { return Textarea{} }

// SalesInput carries the per shop figures a client reports for each month.
type SalesInput struct {
	Entries map[variance.ShopMonth]variance.Figures
}

func (SalesInput) Kind() Kind { return KindSalesInput }

func (p SalesInput) clone() Payload {
	out := SalesInput{Entries: make(map[variance.ShopMonth]variance.Figures, len(p.Entries))}
	for k, v := range p.Entries {
		out.Entries[k] = v
	}
	return out
}

// List returns the entries ordered by month and then by shop catalog order.
func (p SalesInput) List() []variance.MonthlyShopEntry {
	list := make([]variance.MonthlyShopEntry, 0, len(p.Entries))
	for k, v := range p.Entries {
		list = append(list, variance.MonthlyShopEntry{ShopMonth: k, Figures: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Month != list[j].Month {
			return list[i].Month < list[j].Month
		}
		return shopOrder(list[i].Shop) < shopOrder(list[j].Shop)
	})
	return list
}

// SalesCheck carries the ledger figures and the client's reason for any variance.
type SalesCheck struct {
	Ledger        map[int]variance.LedgerMonthlyEntry
	Justification string
}

func (SalesCheck) Kind() Kind { return KindSalesCheck }

func (p SalesCheck) clone() Payload {
	out := SalesCheck{
		Ledger:        make(map[int]variance.LedgerMonthlyEntry, len(p.Ledger)),
		Justification: p.Justification,
	}
	for k, v := range p.Ledger {
		out.Ledger[k] = v
	}
	return out
}

// Justified reports whether a non blank reason was entered.
func (p SalesCheck) Justified() bool {
	return strings.TrimSpace(p.Justification) != ""
}

// NewPayload returns the empty payload of kind k.
func NewPayload(k Kind) Payload {
	switch k {
	case KindTextarea:
		return Textarea{}
	case KindSalesInput:
		return SalesInput{Entries: map[variance.ShopMonth]variance.Figures{}}
	case KindSalesCheck:
		return SalesCheck{Ledger: map[int]variance.LedgerMonthlyEntry{}}
	default:
		return Plain{}
	}
}

// Task is one row of a period checklist.
type Task struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Manual       string     `json:"manual,omitempty"`
	Custom       bool       `json:"isCustom,omitempty"`
	ClientInput  string     `json:"clientInput"`
	OfficeStatus TaskStatus `json:"officeStatus"`
	Memo         string     `json:"memo,omitempty"`
	Payload      Payload    `json:"-"`
}

// Kind returns the variant of the task payload.
func (t Task) Kind() Kind {
	if t.Payload == nil {
		return KindPlain
	}
	return t.Payload.Kind()
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	if t.Payload != nil {
		t.Payload = t.Payload.clone()
	}
	return t
}

// CloneAll deep copies a task list.
func CloneAll(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// IsCustomID reports whether id names a row added by staff.
func IsCustomID(id string) bool {
	return strings.HasPrefix(id, CustomPrefix)
}

// FindTask returns the index of the task with id, or -1.
func FindTask(tasks []Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
