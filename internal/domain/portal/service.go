package portal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hirosato/checklist-portal/backend/internal/common/utils"
	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
)

const matrixConcurrency = 8

// Service handles the staff dashboard and opens editing sessions.
type Service struct {
	repo          Repository
	logger        *slog.Logger
	autosaveDelay time.Duration
	now           func() time.Time
}

// NewService creates a new portal service
func NewService(repo Repository, logger *slog.Logger, autosaveDelay time.Duration) *Service {
	return &Service{
		repo:          repo,
		logger:        logger,
		autosaveDelay: autosaveDelay,
		now:           time.Now,
	}
}

// OpenSession starts an editing session for actor.
func (s *Service) OpenSession(actor Actor) *Session {
	return NewSession(s.repo, s.logger, actor, s.autosaveDelay)
}

// ListClients returns every client
func (s *Service) ListClients(ctx context.Context, actor Actor) ([]ClientSummary, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.repo.ListClients(ctx)
}

// CreateClient registers a client with an empty email
func (s *Service) CreateClient(ctx context.Context, actor Actor, name string) (*ClientSummary, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := utils.ValidateRequiredString(name, "client name"); err != nil {
		return nil, err
	}

	rec := NewClientRecord(uuid.New().String(), name, s.now().UTC())
	id, err := s.repo.CreateClient(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id

	s.logger.InfoContext(ctx, "client created", "clientId", id)
	summary := rec.Summary()
	return &summary, nil
}

// UpdateEmail sets or clears the contact address of a client
func (s *Service) UpdateEmail(ctx context.Context, actor Actor, clientID, email string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := utils.ValidateRequiredString(clientID, "clientId"); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return err
		}
	}
	return s.repo.UpdateClient(ctx, clientID, Fields{AttrEmail: email})
}

// StatusMatrix returns the period statuses of every client for year.
func (s *Service) StatusMatrix(ctx context.Context, actor Actor, year int) ([]StatusRow, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := utils.ValidateYear(year); err != nil {
		return nil, err
	}

	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]StatusRow, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(matrixConcurrency)
	for i, c := range clients {
		g.Go(func() error {
			rec, err := s.repo.GetClient(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("failed to load client %s: %w", c.ID, err)
			}
			row := StatusRow{Client: c, Terms: map[int]checklist.PeriodStatus{}}
			for _, term := range checklist.Terms() {
				row.Terms[term] = rec.PeriodStatus(year, term)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func requireStaff(actor Actor) error {
	if !actor.IsStaff() {
		return commonErrors.NewAuthorizationError("staff only")
	}
	return nil
}
