package portal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hirosato/checklist-portal/backend/internal/common/utils"
	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/variance"
)

const (
	// DefaultAutosaveDelay is the quiet period before edits are written.
	DefaultAutosaveDelay = 2 * time.Second

	saveTimeout = 10 * time.Second

	salesEnteredInput = "詳細データ入力済"
)

// TaskField names an editable attribute of a task.
type TaskField string

const (
	FieldClientInput   TaskField = "clientInput"
	FieldOfficeStatus  TaskField = "officeStatus"
	FieldMemo          TaskField = "memo"
	FieldName          TaskField = "name"
	FieldJustification TaskField = "justification"
)

// AmountField names a figure of a shop or ledger entry.
type AmountField string

const (
	AmountSales    AmountField = "sales"
	AmountPurchase AmountField = "purchase"
	AmountFee      AmountField = "fee"
)

// SaveStatus is the autosave state reported to the caller.
type SaveStatus struct {
	State     SaveState `json:"state"`
	LastError string    `json:"lastError,omitempty"`
}

type snapshot struct {
	gen          uint64
	scope        Scope
	tasks        []checklist.Task
	clientStatus checklist.ClientStatus
}

// Session is one actor editing one checklist scope at a time.
// Edits are written after a quiet period; switching scope writes pending edits first.
type Session struct {
	repo   Repository
	logger *slog.Logger
	actor  Actor
	delay  time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	gen        uint64
	loaded     bool
	scope      Scope
	clientName string
	tasks      []checklist.Task
	status     checklist.PeriodStatus
	state      SaveState
	lastErr    error

	// writeMu orders writes; written is the generation of the newest stored snapshot.
	writeMu sync.Mutex
	written uint64
}

// NewSession creates a session for actor. A non positive delay uses DefaultAutosaveDelay.
func NewSession(repo Repository, logger *slog.Logger, actor Actor, delay time.Duration) *Session {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Session{
		repo:   repo,
		logger: logger.With("component", "session", "subject", actor.Subject),
		actor:  actor,
		delay:  delay,
		state:  SaveSaved,
	}
}

// Actor returns the caller the session was opened for.
func (s *Session) Actor() Actor { return s.actor }

// LoadScope switches the session to scope, writing any pending edits of the previous scope first.
// A client without a stored document yields the template only.
func (s *Session) LoadScope(ctx context.Context, scope Scope) (*View, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if !s.actor.CanAccess(scope.ClientID) {
		return nil, commonErrors.NewAuthorizationError("not allowed to open this client")
	}

	if err := s.Flush(ctx); err != nil {
		s.logger.Warn("pending edits were not saved before switching scope", "error", err)
	}

	status := checklist.DefaultPeriodStatus()
	name := ""
	var saved []checklist.Record
	hasSaved := false

	rec, err := s.repo.GetClient(ctx, scope.ClientID)
	switch {
	case err == nil:
		name = rec.Name
		status = rec.PeriodStatus(scope.Year, scope.Term)
		saved, hasSaved = rec.SavedTasks(scope.Year, scope.Term)
	case commonErrors.HasCode(err, commonErrors.CodeNotFound):
		s.logger.Info("client document not found, showing template", "scope", scope.String())
	default:
		return nil, err
	}

	tasks := checklist.Template(scope.Term)
	if hasSaved {
		tasks = checklist.MergeTemplateWithSaved(tasks, checklist.FromRecords(saved))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.scope = scope
	s.clientName = name
	s.tasks = tasks
	s.status = status
	s.loaded = true
	if s.state != SaveError {
		s.state = SaveSaved
	}
	return s.viewLocked(), nil
}

// EditTask changes one attribute of the task at index.
func (s *Session) EditTask(index int, field TaskField, value string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskLocked(index)
	if err != nil {
		return nil, err
	}

	clientSide := false
	switch field {
	case FieldClientInput:
		if t.Kind().DerivedInput() {
			return nil, commonErrors.NewValidationError(fmt.Sprintf("clientInput of %s tasks is derived", t.Kind()))
		}
		t.ClientInput = value
		clientSide = true
	case FieldJustification:
		check, ok := t.Payload.(checklist.SalesCheck)
		if !ok {
			return nil, commonErrors.NewValidationError("justification only applies to sales check tasks")
		}
		check.Justification = value
		t.Payload = check
		clientSide = true
	case FieldOfficeStatus:
		if !s.actor.IsStaff() {
			return nil, commonErrors.NewAuthorizationError("only staff can review tasks")
		}
		st := checklist.TaskStatus(value)
		if !st.Valid() {
			return nil, commonErrors.NewValidationError(fmt.Sprintf("invalid office status %q", value))
		}
		t.OfficeStatus = st
	case FieldMemo:
		if !s.actor.IsStaff() {
			return nil, commonErrors.NewAuthorizationError("only staff can write memos")
		}
		t.Memo = value
	case FieldName:
		if !s.actor.IsStaff() {
			return nil, commonErrors.NewAuthorizationError("only staff can rename tasks")
		}
		if !t.Custom {
			return nil, commonErrors.NewValidationError("only custom tasks can be renamed")
		}
		t.Name = value
	default:
		return nil, commonErrors.NewValidationError(fmt.Sprintf("unknown task field %q", field))
	}

	s.tasks[index] = t
	s.touchLocked(clientSide)
	return s.viewLocked(), nil
}

// EditShopEntry sets one figure of a shop for a month on a sales input task.
// Unparseable and negative values are stored as 0.
func (s *Session) EditShopEntry(taskIndex, month int, shop string, field AmountField, raw string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskLocked(taskIndex)
	if err != nil {
		return nil, err
	}
	input, ok := t.Payload.(checklist.SalesInput)
	if !ok {
		return nil, commonErrors.NewValidationError("task does not take shop figures")
	}
	if err := s.checkMonthLocked(month); err != nil {
		return nil, err
	}
	if !checklist.ValidShop(shop) {
		return nil, commonErrors.NewValidationError(fmt.Sprintf("unknown shop %q", shop))
	}

	amount := ParseAmount(raw)
	key := variance.ShopMonth{Month: month, Shop: shop}
	if input.Entries == nil {
		input.Entries = map[variance.ShopMonth]variance.Figures{}
	}
	f := input.Entries[key]
	switch field {
	case AmountSales:
		f.Sales = amount
	case AmountPurchase:
		f.Purchase = amount
	case AmountFee:
		f.Fee = amount
	default:
		return nil, commonErrors.NewValidationError(fmt.Sprintf("unknown shop field %q", field))
	}
	input.Entries[key] = f
	t.Payload = input
	t.ClientInput = salesEnteredInput

	s.tasks[taskIndex] = t
	s.touchLocked(true)
	return s.viewLocked(), nil
}

// EditLedgerEntry sets one ledger figure for a month on a sales check task.
// Unparseable and negative values are stored as 0.
func (s *Session) EditLedgerEntry(taskIndex, month int, field AmountField, raw string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskLocked(taskIndex)
	if err != nil {
		return nil, err
	}
	check, ok := t.Payload.(checklist.SalesCheck)
	if !ok {
		return nil, commonErrors.NewValidationError("task does not take ledger figures")
	}
	if err := s.checkMonthLocked(month); err != nil {
		return nil, err
	}

	amount := ParseAmount(raw)
	if check.Ledger == nil {
		check.Ledger = map[int]variance.LedgerMonthlyEntry{}
	}
	l := check.Ledger[month]
	l.Month = month
	switch field {
	case AmountSales:
		l.Sales = amount
	case AmountPurchase:
		l.Purchase = amount
	default:
		return nil, commonErrors.NewValidationError(fmt.Sprintf("unknown ledger field %q", field))
	}
	check.Ledger[month] = l
	t.Payload = check

	s.tasks[taskIndex] = t
	s.touchLocked(true)
	return s.viewLocked(), nil
}

// AddCustomTask appends a staff defined row. Only the year end term takes custom rows.
func (s *Session) AddCustomTask() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.actor.IsStaff() {
		return nil, commonErrors.NewAuthorizationError("only staff can add tasks")
	}
	if !s.loaded {
		return nil, commonErrors.NewValidationError("no scope loaded")
	}
	if s.scope.Term != checklist.YearEndTerm {
		return nil, commonErrors.NewValidationError(fmt.Sprintf("custom tasks are only available on term %d", checklist.YearEndTerm))
	}

	s.tasks = append(s.tasks, checklist.NewCustomTask())
	s.touchLocked(false)
	return s.viewLocked(), nil
}

// DeleteCustomTask removes the staff defined row at index.
func (s *Session) DeleteCustomTask(index int) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.actor.IsStaff() {
		return nil, commonErrors.NewAuthorizationError("only staff can delete tasks")
	}
	t, err := s.taskLocked(index)
	if err != nil {
		return nil, err
	}
	if !t.Custom {
		return nil, commonErrors.NewValidationError("only custom tasks can be deleted")
	}

	s.tasks = slices.Delete(s.tasks, index, index+1)
	s.touchLocked(false)
	return s.viewLocked(), nil
}

// Submit marks the period complete for the client and writes it immediately.
// It fails while any month in alert lacks a justification.
func (s *Session) Submit(ctx context.Context) (*View, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, commonErrors.NewValidationError("no scope loaded")
	}
	if months := s.blockedMonthsLocked(); len(months) > 0 {
		s.mu.Unlock()
		return nil, commonErrors.NewJustificationRequiredError("enter a reason for the months with a large variance").
			WithDetail("months", months)
	}
	s.status.ClientStatus = checklist.ClientComplete
	s.gen++
	s.stopTimerLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persist(ctx, snap); err != nil {
		return nil, err
	}
	return s.View(), nil
}

// Reconcile returns the variance rows of the loaded scope.
func (s *Session) Reconcile() ([]variance.MonthlyReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, commonErrors.NewValidationError("no scope loaded")
	}
	return s.reconcileLocked(), nil
}

// Current returns the loaded scope, if any.
func (s *Session) Current() (Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope, s.loaded
}

// View returns the current state of the loaded scope.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Tasks returns a copy of the loaded task list.
func (s *Session) Tasks() []checklist.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return checklist.CloneAll(s.tasks)
}

// State returns the autosave state.
func (s *Session) State() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveStatusLocked()
}

// Flush writes pending edits now instead of waiting for the quiet period.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.persist(ctx, snap)
}

// Close flushes pending edits.
func (s *Session) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func (s *Session) taskLocked(index int) (checklist.Task, error) {
	if !s.loaded {
		return checklist.Task{}, commonErrors.NewValidationError("no scope loaded")
	}
	if index < 0 || index >= len(s.tasks) {
		return checklist.Task{}, commonErrors.NewValidationError(fmt.Sprintf("task index %d out of range", index))
	}
	return s.tasks[index], nil
}

func (s *Session) checkMonthLocked(month int) error {
	if !slices.Contains(checklist.TermMonths(s.scope.Term), month) {
		return commonErrors.NewValidationError(fmt.Sprintf("month %d is not part of term %d", month, s.scope.Term))
	}
	return nil
}

// touchLocked records an edit and restarts the quiet period.
func (s *Session) touchLocked(clientSide bool) {
	if clientSide {
		s.status.ClientStatus = checklist.NextClientStatus(s.status.ClientStatus)
	}
	s.state = SaveChanged
	s.gen++
	s.stopTimerLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.timer == nil || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	_ = s.persist(ctx, snap)
}

func (s *Session) snapshotLocked() snapshot {
	s.state = SaveSaving
	return snapshot{
		gen:          s.gen,
		scope:        s.scope,
		tasks:        checklist.CloneAll(s.tasks),
		clientStatus: s.status.ClientStatus,
	}
}

// persist writes a snapshot. Failures are recorded and not retried.
// A snapshot older than one already stored is dropped so it cannot overwrite newer edits.
func (s *Session) persist(ctx context.Context, snap snapshot) error {
	fields := ScopeFields(snap.scope.Year, snap.scope.Term, snap.tasks, snap.clientStatus)

	s.writeMu.Lock()
	if snap.gen < s.written {
		s.writeMu.Unlock()
		s.logger.Debug("stale checklist snapshot skipped", "scope", snap.scope.String(), "generation", snap.gen)
		return nil
	}
	err := s.repo.UpdateClient(ctx, snap.scope.ClientID, fields)
	if err == nil {
		s.written = snap.gen
	}
	s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = SaveError
		s.lastErr = err
		s.logger.Error("failed to save checklist", "scope", snap.scope.String(), "error", err)
		return err
	}

	if snap.scope == s.scope {
		s.status.OfficeStatus = checklist.DeriveOfficeStatus(snap.tasks)
	}
	if s.state == SaveSaving || s.state == SaveError {
		s.state = SaveSaved
		s.lastErr = nil
	}
	s.logger.Debug("checklist saved", "scope", snap.scope.String(), "tasks", len(snap.tasks))
	return nil
}

func (s *Session) saveStatusLocked() SaveStatus {
	st := SaveStatus{State: s.state}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Session) salesEntriesLocked() []variance.MonthlyShopEntry {
	idx := checklist.FindTask(s.tasks, checklist.SalesInputTaskID)
	if idx < 0 {
		return nil
	}
	input, ok := s.tasks[idx].Payload.(checklist.SalesInput)
	if !ok {
		return nil
	}
	return input.List()
}

func (s *Session) reconcileLocked() []variance.MonthlyReconciliation {
	idx := checklist.FindTask(s.tasks, checklist.SalesCheckTaskID)
	if idx < 0 {
		return nil
	}
	check, ok := s.tasks[idx].Payload.(checklist.SalesCheck)
	if !ok {
		return nil
	}
	return variance.ReconcileMonths(s.salesEntriesLocked(), check.Ledger, checklist.TermMonths(s.scope.Term))
}

func (s *Session) blockedMonthsLocked() []int {
	rows := s.reconcileLocked()
	idx := checklist.FindTask(s.tasks, checklist.SalesCheckTaskID)
	if idx < 0 {
		return nil
	}
	results := make([]variance.Result, len(rows))
	for i, r := range rows {
		results[i] = r.Result
	}
	if checklist.CanClientComplete(s.tasks[idx], results) {
		return nil
	}
	return variance.AlertMonths(rows)
}

func (s *Session) viewLocked() *View {
	st := s.saveStatusLocked()
	v := &View{
		Scope:      s.scope,
		ClientName: s.clientName,
		Months:     checklist.TermMonths(s.scope.Term),
		Tasks:      checklist.ToRecords(s.tasks),
		Status:     s.status,
		Summary:    checklist.Summarize(s.tasks),
		SaveState:  st.State,
		LastError:  st.LastError,
	}
	if s.loaded {
		v.Reconciliation = s.reconcileLocked()
		v.BlockedMonths = s.blockedMonthsLocked()
	}
	return v
}

func validateScope(scope Scope) error {
	if err := utils.ValidateRequiredString(scope.ClientID, "clientId"); err != nil {
		return err
	}
	if err := utils.ValidateYear(scope.Year); err != nil {
		return err
	}
	if !checklist.ValidTerm(scope.Term) {
		return commonErrors.NewValidationError(fmt.Sprintf("invalid term %d", scope.Term))
	}
	return nil
}

// ParseAmount reads a figure typed by a user. Anything that is not a finite non negative number is 0.
func ParseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
