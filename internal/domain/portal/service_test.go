package portal

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
)

func TestServiceClients(t *testing.T) {
	t.Run("create and list clients", func(t *testing.T) {
		// Setup
		repo := newFakeRepository()
		svc := NewService(repo, slog.Default(), time.Hour)

		// Act
		created, err := svc.CreateClient(context.Background(), staff, "  鈴木物産 ")
		require.NoError(t, err)
		list, err := svc.ListClients(context.Background(), staff)

		// Assert
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, created.ID, list[0].ID)
		assert.Equal(t, "鈴木物産", list[0].Name)
		assert.Empty(t, list[0].Email)
		assert.False(t, list[0].CreatedAt.IsZero())
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		svc := NewService(newFakeRepository(), slog.Default(), time.Hour)

		_, err := svc.CreateClient(context.Background(), staff, "   ")
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeValidation))
	})

	t.Run("dashboard is staff only", func(t *testing.T) {
		svc := NewService(seededRepo(), slog.Default(), time.Hour)

		_, err := svc.ListClients(context.Background(), client)
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeAuthorization))

		_, err = svc.CreateClient(context.Background(), client, "x")
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeAuthorization))

		_, err = svc.StatusMatrix(context.Background(), client, 2026)
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeAuthorization))
	})

	t.Run("update email validates and clears", func(t *testing.T) {
		// Setup
		repo := seededRepo()
		svc := NewService(repo, slog.Default(), time.Hour)

		// Act & Assert
		require.NoError(t, svc.UpdateEmail(context.Background(), staff, "c1", "owner@example.com"))
		assert.Equal(t, "owner@example.com", repo.record("c1").Email)

		err := svc.UpdateEmail(context.Background(), staff, "c1", "not-an-email")
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeValidation))

		require.NoError(t, svc.UpdateEmail(context.Background(), staff, "c1", ""))
		assert.Empty(t, repo.record("c1").Email)

		err = svc.UpdateEmail(context.Background(), staff, "missing", "a@example.com")
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeNotFound))
	})
}

func TestServiceStatusMatrix(t *testing.T) {
	t.Run("defaults for periods without data", func(t *testing.T) {
		// Setup
		done := NewClientRecord("c2", "佐藤", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, done.Apply(Fields{
			ClientStatusKey(2026, 2): checklist.ClientComplete,
			OfficeStatusKey(2026, 2): checklist.OfficeApproved,
		}))
		repo := newFakeRepository(NewClientRecord("c1", "山田", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), done)
		svc := NewService(repo, slog.Default(), time.Hour)

		// Act
		rows, err := svc.StatusMatrix(context.Background(), staff, 2026)

		// Assert
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "c1", rows[0].Client.ID)
		for _, term := range []int{1, 2, 3} {
			assert.Equal(t, checklist.DefaultPeriodStatus(), rows[0].Terms[term])
		}
		assert.Equal(t, checklist.ClientComplete, rows[1].Terms[2].ClientStatus)
		assert.Equal(t, checklist.OfficeApproved, rows[1].Terms[2].OfficeStatus)
		assert.Equal(t, checklist.DefaultPeriodStatus(), rows[1].Terms[1])
	})

	t.Run("store failure fails the matrix", func(t *testing.T) {
		// Setup
		repo := seededRepo()
		repo.failGet = errors.New("boom")
		svc := NewService(repo, slog.Default(), time.Hour)

		// Act
		_, err := svc.StatusMatrix(context.Background(), staff, 2026)

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestServiceOpenSession(t *testing.T) {
	svc := NewService(seededRepo(), slog.Default(), 0)

	s := svc.OpenSession(client)

	assert.Equal(t, client, s.Actor())
	assert.Equal(t, DefaultAutosaveDelay, s.delay)
}
