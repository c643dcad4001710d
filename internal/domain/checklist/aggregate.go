package checklist

import (
	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

// Summary counts tasks by review state.
type Summary struct {
	Total        int          `json:"total"`
	Approved     int          `json:"approved"`
	NeedsReview  int          `json:"needsReview"`
	Pending      int          `json:"pending"`
	OfficeStatus OfficeStatus `json:"officeStatus"`
}

// DeriveOfficeStatus rolls the task states up to the period state.
// An empty list is unchecked.
func DeriveOfficeStatus(tasks []Task) OfficeStatus {
	return Summarize(tasks).OfficeStatus
}

// Summarize counts tasks and derives the office status in one pass.
func Summarize(tasks []Task) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.OfficeStatus {
		case TaskOK:
			s.Approved++
		case TaskNeedsReview:
			s.NeedsReview++
		default:
			s.Pending++
		}
	}

	switch {
	case s.Total > 0 && s.Approved == s.Total:
		s.OfficeStatus = OfficeApproved
	case s.Approved > 0 || s.NeedsReview > 0:
		s.OfficeStatus = OfficeChecking
	default:
		s.OfficeStatus = OfficeUnchecked
	}
	return s
}

// CanClientComplete reports whether the client may mark task as done.
// A sales check task with any month in alert needs a justification first.
func CanClientComplete(task Task, results []variance.Result) bool {
	check, ok := task.Payload.(SalesCheck)
	if !ok {
		return true
	}
	if check.Justified() {
		return true
	}
	for _, r := range results {
		if r.Alert() {
			return false
		}
	}
	return true
}

// NextClientStatus is the client status after a client side edit.
func NextClientStatus(current ClientStatus) ClientStatus {
	if current == "" || current == ClientNotStarted || current == ClientComplete {
		return ClientInProgress
	}
	return current
}

// MergeTemplateWithSaved overlays saved state on the current template.
// Template rows keep their name, manual and kind; saved custom rows follow in saved order.
func MergeTemplateWithSaved(template, saved []Task) []Task {
	byID := make(map[string]Task, len(saved))
	for _, s := range saved {
		if _, dup := byID[s.ID]; !dup {
			byID[s.ID] = s
		}
	}

	merged := make([]Task, 0, len(template)+len(saved))
	for _, tmpl := range template {
		t := tmpl.Clone()
		if s, ok := byID[tmpl.ID]; ok {
			t.ClientInput = s.ClientInput
			t.OfficeStatus = s.OfficeStatus
			if !t.OfficeStatus.Valid() {
				t.OfficeStatus = TaskPending
			}
			t.Memo = s.Memo
			if s.Payload != nil && s.Payload.Kind() == t.Kind() {
				t.Payload = s.Payload.clone()
			}
		}
		merged = append(merged, t)
	}

	for _, s := range saved {
		if IsCustomID(s.ID) {
			c := s.Clone()
			c.Custom = true
			merged = append(merged, c)
		}
	}
	return merged
}
