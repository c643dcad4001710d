package portal

import (
	"context"
	"sort"
	"sync"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
)

// fakeRepository keeps client documents in memory and can be told to fail writes.
type fakeRepository struct {
	mu        sync.Mutex
	clients   map[string]*ClientRecord
	updates   []Fields
	failWrite error
	failGet   error
}

func newFakeRepository(records ...*ClientRecord) *fakeRepository {
	r := &fakeRepository{clients: map[string]*ClientRecord{}}
	for _, rec := range records {
		r.clients[rec.ID] = rec
	}
	return r
}

func (r *fakeRepository) GetClient(ctx context.Context, id string) (*ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	rec, ok := r.clients[id]
	if !ok {
		return nil, commonErrors.NewNotFoundError("client not found")
	}
	return cloneRecord(rec), nil
}

func (r *fakeRepository) UpdateClient(ctx context.Context, id string, fields Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	rec, ok := r.clients[id]
	if !ok {
		return commonErrors.NewNotFoundError("client not found")
	}
	r.updates = append(r.updates, fields)
	return rec.Apply(fields)
}

func (r *fakeRepository) CreateClient(ctx context.Context, record *ClientRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[record.ID]; ok {
		return "", commonErrors.NewConflictError("client already exists")
	}
	r.clients[record.ID] = record
	return record.ID, nil
}

func (r *fakeRepository) ListClients(ctx context.Context) ([]ClientSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClientSummary, 0, len(r.clients))
	for _, rec := range r.clients {
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepository) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *fakeRepository) setFailWrite(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWrite = err
}

func (r *fakeRepository) record(id string) *ClientRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.clients[id]
	if !ok {
		return nil
	}
	return cloneRecord(rec)
}

func cloneRecord(rec *ClientRecord) *ClientRecord {
	cp := NewClientRecord(rec.ID, rec.Name, rec.CreatedAt)
	cp.Email = rec.Email
	for year, terms := range rec.Statuses {
		cp.Statuses[year] = map[string]checklist.PeriodStatus{}
		for k, v := range terms {
			cp.Statuses[year][k] = v
		}
	}
	for p, records := range rec.Tasks {
		cp.Tasks[p] = append([]checklist.Record(nil), records...)
	}
	return cp
}
