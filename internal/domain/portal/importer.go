package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hirosato/checklist-portal/backend/internal/common/utils"
	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

const importedSalesInput = "詳細データ入力済 (移行データ)"

// LegacyExport is the document produced by the spreadsheet migration.
type LegacyExport struct {
	SalesData  []LegacySale               `json:"sales_data"`
	TermInputs map[string]LegacyTermInput `json:"term_inputs"`
}

// LegacySale is one shop's figures for one month.
type LegacySale struct {
	Month    int     `json:"month"`
	Shop     string  `json:"shop"`
	Sales    float64 `json:"sales"`
	Purchase float64 `json:"purchase"`
	Fee      float64 `json:"fee"`
}

// LegacyTermInput carries the free-text answers of a term.
type LegacyTermInput struct {
	Points string `json:"points"`
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

// ImportResult reports which stored attributes an import changed.
type ImportResult struct {
	ClientID    string   `json:"clientId"`
	Year        int      `json:"year"`
	UpdatedKeys []string `json:"updatedKeys"`
	Message     string   `json:"message"`
}

// ParseLegacyExport decodes and checks a migration document.
func ParseLegacyExport(data []byte) (*LegacyExport, error) {
	var export LegacyExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, commonErrors.NewInvalidInputError("invalid import document", err)
	}
	for i, sale := range export.SalesData {
		if err := utils.ValidateMonth(sale.Month); err != nil {
			return nil, commonErrors.NewValidationError(fmt.Sprintf("sales_data[%d]: month must be between 1 and 12", i))
		}
		if strings.TrimSpace(sale.Shop) == "" {
			return nil, commonErrors.NewValidationError(fmt.Sprintf("sales_data[%d]: shop is required", i))
		}
	}
	return &export, nil
}

// ImportLegacy merges a migration document into the saved checklists of year.
// Only terms that already have a saved task list receive figures and answers;
// term statuses are written regardless.
func (s *Service) ImportLegacy(ctx context.Context, actor Actor, clientID string, year int, data []byte) (*ImportResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := utils.ValidateRequiredString(clientID, "clientId"); err != nil {
		return nil, err
	}
	if err := utils.ValidateYear(year); err != nil {
		return nil, err
	}
	export, err := ParseLegacyExport(data)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	fields := BuildImportFields(rec, year, export)
	result := &ImportResult{ClientID: clientID, Year: year, UpdatedKeys: fields.sortedKeys()}
	if len(fields) == 0 {
		result.Message = "no updates"
		return result, nil
	}

	if err := s.repo.UpdateClient(ctx, clientID, fields); err != nil {
		return nil, err
	}
	result.Message = fmt.Sprintf("imported %d fields", len(fields))
	s.logger.InfoContext(ctx, "legacy data imported", "clientId", clientID, "year", year, "fields", len(fields))
	return result, nil
}

// BuildImportFields computes the update an import applies to rec.
func BuildImportFields(rec *ClientRecord, year int, export *LegacyExport) Fields {
	grouped := map[int]map[string]variance.Figures{}
	for _, sale := range export.SalesData {
		if grouped[sale.Month] == nil {
			grouped[sale.Month] = map[string]variance.Figures{}
		}
		grouped[sale.Month][sale.Shop] = variance.Figures{
			Sales:    nonNegative(sale.Sales),
			Purchase: nonNegative(sale.Purchase),
			Fee:      nonNegative(sale.Fee),
		}
	}

	fields := Fields{}
	for _, term := range checklist.Terms() {
		input, hasInput := export.TermInputs[TermField(term)]
		if hasInput && input.Status != "" {
			fields[ClientStatusKey(year, term)] = checklist.ClientStatus(input.Status)
		}

		saved, ok := rec.SavedTasks(year, term)
		if !ok {
			continue
		}
		tasks := checklist.FromRecords(saved)
		modified := false

		if len(grouped) > 0 {
			if idx := checklist.FindTask(tasks, checklist.SalesInputTaskID); idx >= 0 {
				tasks[idx] = mergeSales(tasks[idx], grouped)
				modified = true
			}
		}
		if hasInput && input.Points != "" {
			if idx := checklist.FindTask(tasks, checklist.PointsTaskID); idx >= 0 {
				tasks[idx].ClientInput = input.Points
				modified = true
			}
		}
		if hasInput && input.Notes != "" {
			if idx := checklist.FindTask(tasks, checklist.NotesTaskID); idx >= 0 {
				tasks[idx].ClientInput = input.Notes
				modified = true
			}
		}

		if modified {
			fields[TasksKey(year, term)] = checklist.ToRecords(tasks)
		}
	}
	return fields
}

// mergeSales replaces whole months of the sales input task with the imported figures.
func mergeSales(t checklist.Task, grouped map[int]map[string]variance.Figures) checklist.Task {
	input, ok := t.Payload.(checklist.SalesInput)
	if !ok {
		input = checklist.SalesInput{}
	}
	entries := map[variance.ShopMonth]variance.Figures{}
	for k, f := range input.Entries {
		if _, replaced := grouped[k.Month]; !replaced {
			entries[k] = f
		}
	}
	for month, shops := range grouped {
		for shop, f := range shops {
			entries[variance.ShopMonth{Month: month, Shop: shop}] = f
		}
	}
	t.Payload = checklist.SalesInput{Entries: entries}
	t.ClientInput = importedSalesInput
	return t
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func (f Fields) sortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
