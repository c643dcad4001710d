package portal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
)

// Root attributes every backend stores next to the dynamic period keys.
const (
	AttrID        = "id"
	AttrName      = "name"
	AttrEmail     = "email"
	AttrCreatedAt = "createdAt"
)

// Fields is a partial update keyed by root attribute or by dotted path.
// Values are strings, status values or []checklist.Record for task keys.
type Fields map[string]any

// ScopeFields builds the update written on every checklist save.
func ScopeFields(year, term int, tasks []checklist.Task, clientStatus checklist.ClientStatus) Fields {
	return Fields{
		TasksKey(year, term):        checklist.ToRecords(tasks),
		OfficeStatusKey(year, term): checklist.DeriveOfficeStatus(tasks),
		ClientStatusKey(year, term): clientStatus,
	}
}

// RootKeys returns the root attributes touched by the update, sorted.
func (f Fields) RootKeys() []string {
	seen := map[string]bool{}
	for k := range f {
		root, _, _ := strings.Cut(k, ".")
		seen[root] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply writes the update into the record.
func (c *ClientRecord) Apply(f Fields) error {
	for key, value := range f {
		if err := c.applyOne(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *ClientRecord) applyOne(key string, value any) error {
	switch key {
	case AttrName:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		c.Name = s
		return nil
	case AttrEmail:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		c.Email = s
		return nil
	}

	if p, ok := ParseTasksKey(key); ok {
		records, ok := value.([]checklist.Record)
		if !ok {
			return commonErrors.NewValidationError(fmt.Sprintf("field %s expects a task list", key))
		}
		if c.Tasks == nil {
			c.Tasks = map[Period][]checklist.Record{}
		}
		c.Tasks[p] = append([]checklist.Record(nil), records...)
		return nil
	}

	parts := strings.Split(key, ".")
	if len(parts) != 3 {
		return commonErrors.NewValidationError(fmt.Sprintf("unknown field %s", key))
	}
	year, ok := ParseYearKey(parts[0])
	if !ok {
		return commonErrors.NewValidationError(fmt.Sprintf("unknown field %s", key))
	}
	if _, ok := ParseTermField(parts[1]); !ok {
		return commonErrors.NewValidationError(fmt.Sprintf("unknown field %s", key))
	}
	s, err := asString(key, value)
	if err != nil {
		return err
	}

	if c.Statuses == nil {
		c.Statuses = map[int]map[string]checklist.PeriodStatus{}
	}
	if c.Statuses[year] == nil {
		c.Statuses[year] = map[string]checklist.PeriodStatus{}
	}
	st := c.Statuses[year][parts[1]]
	switch parts[2] {
	case "clientStatus":
		st.ClientStatus = checklist.ClientStatus(s)
	case "officeStatus":
		st.OfficeStatus = checklist.OfficeStatus(s)
	default:
		return commonErrors.NewValidationError(fmt.Sprintf("unknown field %s", key))
	}
	c.Statuses[year][parts[1]] = st
	return nil
}

func asString(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case checklist.ClientStatus:
		return string(v), nil
	case checklist.OfficeStatus:
		return string(v), nil
	default:
		return "", commonErrors.NewValidationError(fmt.Sprintf("field %s expects a string", key))
	}
}

// RootValue returns the stored value of a root attribute.
func (c *ClientRecord) RootValue(key string) (any, bool) {
	switch key {
	case AttrID:
		return c.ID, true
	case AttrName:
		return c.Name, true
	case AttrEmail:
		return c.Email, true
	case AttrCreatedAt:
		return c.CreatedAt, true
	}
	if p, ok := ParseTasksKey(key); ok {
		records, ok := c.Tasks[p]
		if !ok {
			return nil, false
		}
		if records == nil {
			records = []checklist.Record{}
		}
		return records, true
	}
	if year, ok := ParseYearKey(key); ok {
		terms, ok := c.Statuses[year]
		return terms, ok
	}
	return nil, false
}

// RootAttributes returns every stored root attribute of the record.
func (c *ClientRecord) RootAttributes() map[string]any {
	attrs := map[string]any{
		AttrID:        c.ID,
		AttrName:      c.Name,
		AttrEmail:     c.Email,
		AttrCreatedAt: c.CreatedAt,
	}
	for year, terms := range c.Statuses {
		attrs[YearKey(year)] = terms
	}
	for p, records := range c.Tasks {
		if records == nil {
			records = []checklist.Record{}
		}
		attrs[TasksKey(p.Year, p.Term)] = records
	}
	return attrs
}

// Decoder fills target with the stored value of a root attribute.
type Decoder func(key string, target any) error

// DecodeRecord rebuilds a record from its root attribute names.
// Attributes that are not part of the document layout are ignored.
func DecodeRecord(keys []string, decode Decoder) (*ClientRecord, error) {
	c := NewClientRecord("", "", time.Time{})
	for _, key := range keys {
		var err error
		switch key {
		case AttrID:
			err = decode(key, &c.ID)
		case AttrName:
			err = decode(key, &c.Name)
		case AttrEmail:
			err = decode(key, &c.Email)
		case AttrCreatedAt:
			err = decode(key, &c.CreatedAt)
		default:
			if p, ok := ParseTasksKey(key); ok {
				var records []checklist.Record
				err = decode(key, &records)
				c.Tasks[p] = records
			} else if year, ok := ParseYearKey(key); ok {
				terms := map[string]checklist.PeriodStatus{}
				err = decode(key, &terms)
				c.Statuses[year] = terms
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
	}
	return c, nil
}
