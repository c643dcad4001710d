package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

// sortableTime keeps created_at ordered under string comparison.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// ClientRepository implements portal.Repository on a local SQLite file.
// Profile fields are columns; period statuses and task lists live in a JSON document.
type ClientRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewClientRepository opens (and migrates) the database at dbPath
func NewClientRepository(dbPath string, logger *slog.Logger) (*ClientRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps read-apply-write updates serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &ClientRepository{db: db, logger: logger}, nil
}

// Close releases the database handle
func (r *ClientRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateClient inserts a new client row
func (r *ClientRepository) CreateClient(ctx context.Context, record *portal.ClientRecord) (string, error) {
	doc, err := encodeDocument(record)
	if err != nil {
		return "", commonErrors.NewInternalError("failed to marshal client", err)
	}

	now := time.Now().UTC().Format(sortableTime)
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, email, created_at, updated_at, document) VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.Name, record.Email, record.CreatedAt.UTC().Format(sortableTime), now, doc)
	if err != nil {
		var se *moderncsqlite.Error
		if errors.As(err, &se) && (se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return "", commonErrors.NewConflictError("client already exists")
		}
		return "", commonErrors.NewInternalError("failed to create client", err)
	}

	r.logger.InfoContext(ctx, "client saved to SQLite", "clientId", record.ID)
	return record.ID, nil
}

// GetClient reads a client row and its document
func (r *ClientRepository) GetClient(ctx context.Context, id string) (*portal.ClientRecord, error) {
	return getClient(ctx, r.db, id)
}

func getClient(ctx context.Context, q queryer, id string) (*portal.ClientRecord, error) {
	var name, email, createdAt, doc string
	err := q.QueryRowContext(ctx,
		`SELECT name, email, created_at, document FROM clients WHERE id = ?`, id).
		Scan(&name, &email, &createdAt, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, commonErrors.NewNotFoundError("client not found")
	}
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to get client", err)
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal client", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	rec, err := portal.DecodeRecord(keys, func(key string, target any) error {
		return json.Unmarshal(raw[key], target)
	})
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal client", err)
	}

	rec.ID = id
	rec.Name = name
	rec.Email = email
	if rec.CreatedAt, err = time.Parse(sortableTime, createdAt); err != nil {
		return nil, commonErrors.NewInternalError("failed to parse created_at", err)
	}
	return rec, nil
}

// UpdateClient applies a partial update inside one transaction
func (r *ClientRepository) UpdateClient(ctx context.Context, id string, fields portal.Fields) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return commonErrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	rec, err := getClient(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := rec.Apply(fields); err != nil {
		return err
	}

	doc, err := encodeDocument(rec)
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal client", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE clients SET name = ?, email = ?, updated_at = ?, document = ? WHERE id = ?`,
		rec.Name, rec.Email, time.Now().UTC().Format(sortableTime), doc, id)
	if err != nil {
		return commonErrors.NewInternalError("failed to update client", err)
	}

	if err := tx.Commit(); err != nil {
		return commonErrors.NewInternalError("failed to commit client update", err)
	}
	r.logger.DebugContext(ctx, "client updated", "clientId", id, "fields", len(fields))
	return nil
}

// ListClients returns every client, oldest first
func (r *ClientRepository) ListClients(ctx context.Context) ([]portal.ClientSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM clients ORDER BY created_at, id`)
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to list clients", err)
	}
	defer rows.Close()

	summaries := []portal.ClientSummary{}
	for rows.Next() {
		var s portal.ClientSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &createdAt); err != nil {
			return nil, commonErrors.NewInternalError("failed to scan client", err)
		}
		if s.CreatedAt, err = time.Parse(sortableTime, createdAt); err != nil {
			return nil, commonErrors.NewInternalError("failed to parse created_at", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, commonErrors.NewInternalError("failed to list clients", err)
	}
	return summaries, nil
}

// encodeDocument serializes the period attributes; profile fields are columns.
func encodeDocument(rec *portal.ClientRecord) (string, error) {
	attrs := rec.RootAttributes()
	for _, k := range []string{portal.AttrID, portal.AttrName, portal.AttrEmail, portal.AttrCreatedAt} {
		delete(attrs, k)
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
