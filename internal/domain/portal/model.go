package portal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

// Role is the capability set of the caller.
type Role string

const (
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Actor is the verified caller of a portal operation.
type Actor struct {
	Subject  string `json:"subject"`
	Role     Role   `json:"role"`
	ClientID string `json:"clientId,omitempty"`
}

// IsStaff reports whether the actor may review and administer clients.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

// CanAccess reports whether the actor may open the checklist of clientID.
func (a Actor) CanAccess(clientID string) bool {
	if a.IsStaff() {
		return true
	}
	return a.Role == RoleClient && a.ClientID != "" && a.ClientID == clientID
}

// Scope identifies one checklist: a client, a fiscal year and a term.
type Scope struct {
	ClientID string `json:"clientId"`
	Year     int    `json:"year"`
	Term     int    `json:"term"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%d/term%d", s.ClientID, s.Year, s.Term)
}

// Period is the (year, term) part of a scope.
type Period struct {
	Year int
	Term int
}

// ClientSummary is the list view of a client.
type ClientSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClientRecord is the whole stored document of a client.
type ClientRecord struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	// Statuses is keyed by year, then by "term<N>".
	Statuses map[int]map[string]checklist.PeriodStatus
	Tasks    map[Period][]checklist.Record
}

// NewClientRecord returns an empty record.
func NewClientRecord(id, name string, createdAt time.Time) *ClientRecord {
	return &ClientRecord{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
		Statuses:  map[int]map[string]checklist.PeriodStatus{},
		Tasks:     map[Period][]checklist.Record{},
	}
}

// Summary returns the list view of the record.
func (c *ClientRecord) Summary() ClientSummary {
	return ClientSummary{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
}

// PeriodStatus returns the stored statuses for a period, with defaults for missing values.
func (c *ClientRecord) PeriodStatus(year, term int) checklist.PeriodStatus {
	st := checklist.DefaultPeriodStatus()
	if saved, ok := c.Statuses[year][TermField(term)]; ok {
		if saved.ClientStatus != "" {
			st.ClientStatus = saved.ClientStatus
		}
		if saved.OfficeStatus != "" {
			st.OfficeStatus = saved.OfficeStatus
		}
	}
	return st
}

// SavedTasks returns the stored task list of a period.
func (c *ClientRecord) SavedTasks(year, term int) ([]checklist.Record, bool) {
	records, ok := c.Tasks[Period{Year: year, Term: term}]
	return records, ok
}

// SaveState is the autosave state of a session.
type SaveState string

const (
	SaveSaved   SaveState = "saved"
	SaveChanged SaveState = "changed"
	SaveSaving  SaveState = "saving"
	SaveError   SaveState = "error"
)

// View is what a session shows for the loaded scope.
type View struct {
	Scope          Scope                            `json:"scope"`
	ClientName     string                           `json:"clientName"`
	Months         []int                            `json:"months"`
	Tasks          []checklist.Record               `json:"tasks"`
	Status         checklist.PeriodStatus           `json:"status"`
	Summary        checklist.Summary                `json:"summary"`
	SaveState      SaveState                        `json:"saveState"`
	LastError      string                           `json:"lastError,omitempty"`
	Reconciliation []variance.MonthlyReconciliation `json:"reconciliation,omitempty"`
	// BlockedMonths are months in alert that still need a justification before submitting.
	BlockedMonths []int `json:"blockedMonths,omitempty"`
}

// StatusRow is one client's line in the yearly status matrix.
type StatusRow struct {
	Client ClientSummary                  `json:"client"`
	Terms  map[int]checklist.PeriodStatus `json:"terms"`
}

// Key helpers for the stored document layout.

// YearKey is the root attribute holding the period statuses of year.
func YearKey(year int) string { return "year_" + strconv.Itoa(year) }

// TermField is the key of a term inside a year attribute.
func TermField(term int) string { return "term" + strconv.Itoa(term) }

// TasksKey is the root attribute holding the task list of a period.
func TasksKey(year, term int) string {
	return fmt.Sprintf("year_%d_term%d_tasks", year, term)
}

// ClientStatusKey is the dotted path of a period's client status.
func ClientStatusKey(year, term int) string {
	return fmt.Sprintf("year_%d.term%d.clientStatus", year, term)
}

// OfficeStatusKey is the dotted path of a period's office status.
func OfficeStatusKey(year, term int) string {
	return fmt.Sprintf("year_%d.term%d.officeStatus", year, term)
}

// ParseYearKey parses "year_<Y>".
func ParseYearKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "year_")
	if !ok {
		return 0, false
	}
	year, err := strconv.Atoi(rest)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

// ParseTasksKey parses "year_<Y>_term<T>_tasks".
func ParseTasksKey(key string) (Period, bool) {
	var p Period
	n, err := fmt.Sscanf(key, "year_%d_term%d_tasks", &p.Year, &p.Term)
	if err != nil || n != 2 || p.Year <= 0 || TasksKey(p.Year, p.Term) != key {
		return Period{}, false
	}
	return p, true
}

// ParseTermField parses "term<N>".
func ParseTermField(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "term")
	if !ok {
		return 0, false
	}
	term, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return term, true
}
