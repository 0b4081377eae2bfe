/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements charges.SchemeStore and charges.Store using SQLite. The same
  schema ports to PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  charges.SchemeStore: Charge scheme records (create/read/update/delete)
  charges.Store:       Assessment log (append-only)

APPEND-ONLY ENFORCEMENT:
  The assessments table is never updated or deleted from. Idempotency keys
  are enforced by a unique index, so concurrent retries cannot both write.

KEY TABLES:
  charge_schemes: Scheme config as JSON, versioned, keyed by org/branch
  assessments:    Immutable record of each computed charge

DECIMALS:
  Monetary values are stored as TEXT in their exact decimal representation,
  never as REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; SQLite allows a single writer.

USAGE:
  store, err := sqlite.New("./data/charges.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - charges/store.go: Interface definitions
  - charges/store/memory.go: In-memory implementation for testing
  - factory/scheme.go: JSON format of the config column
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/charge-engine/charges"
	"github.com/warp/charge-engine/factory"
)

// Store implements the charge storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	schemes *factory.SchemeFactory

	// Now defaults to time.Now().UTC().
	Now func() time.Time
}

var (
	_ charges.Store       = (*Store)(nil)
	_ charges.SchemeStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.HasPrefix(dbPath, ":memory:") {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, schemes: factory.NewSchemeFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Charge schemes
	CREATE TABLE IF NOT EXISTS charge_schemes (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_org_branch
		ON charge_schemes(organization_id, branch_id);

	-- Assessments (append-only)
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		scheme_id TEXT NOT NULL,
		scheme_version INTEGER NOT NULL,
		organization_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		scheme_json TEXT NOT NULL,
		principal TEXT NOT NULL,
		terms INTEGER NOT NULL,
		is_add_on INTEGER NOT NULL,
		amount TEXT NOT NULL,
		exact_amount TEXT NOT NULL,
		paths_json TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_loan
		ON assessments(loan_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_assessments_scheme
		ON assessments(scheme_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all data. Used by tests and the dev reset endpoint.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"assessments", "charge_schemes"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SCHEME STORE
// =============================================================================

// CreateScheme inserts a new scheme at version 1. A taken ID is reported as
// ErrSchemeExists by the primary key, so concurrent creates cannot both win.
func (s *Store) CreateScheme(ctx context.Context, r charges.SchemeRecord) (charges.SchemeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := s.schemes.Marshal(r)
	if err != nil {
		return charges.SchemeRecord{}, err
	}

	query := `
		INSERT INTO charge_schemes (id, organization_id, branch_id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`

	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx, query,
		string(r.ID), string(r.OrganizationID), string(r.BranchID), r.Name, config, now, now,
	); err != nil {
		if isPrimaryKeyError(err) {
			return charges.SchemeRecord{}, charges.ErrSchemeExists
		}
		return charges.SchemeRecord{}, fmt.Errorf("failed to create scheme %s: %w", r.ID, err)
	}

	return s.getScheme(ctx, r.ID)
}

// SaveScheme inserts or updates a scheme. Updates bump the version.
func (s *Store) SaveScheme(ctx context.Context, r charges.SchemeRecord) (charges.SchemeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := s.schemes.Marshal(r)
	if err != nil {
		return charges.SchemeRecord{}, err
	}

	query := `
		INSERT INTO charge_schemes (id, organization_id, branch_id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			branch_id = excluded.branch_id,
			name = excluded.name,
			config_json = excluded.config_json,
			version = charge_schemes.version + 1,
			updated_at = excluded.updated_at
	`

	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx, query,
		string(r.ID), string(r.OrganizationID), string(r.BranchID), r.Name, config, now, now,
	); err != nil {
		return charges.SchemeRecord{}, fmt.Errorf("failed to save scheme %s: %w", r.ID, err)
	}

	return s.getScheme(ctx, r.ID)
}

// GetScheme retrieves a scheme by ID.
func (s *Store) GetScheme(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getScheme(ctx, id)
}

func (s *Store) getScheme(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, config_json, version, created_at, updated_at FROM charge_schemes WHERE id = ?",
		string(id),
	)
	rec, err := s.scanScheme(row)
	if err == sql.ErrNoRows {
		return charges.SchemeRecord{}, charges.ErrSchemeNotFound
	}
	return rec, err
}

// ListSchemes returns schemes matching the filter, ordered by name.
func (s *Store) ListSchemes(ctx context.Context, filter charges.SchemeFilter) ([]charges.SchemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, config_json, version, created_at, updated_at FROM charge_schemes WHERE 1=1"
	var args []any
	if filter.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, string(filter.OrganizationID))
	}
	if filter.BranchID != "" {
		query += " AND branch_id = ?"
		args = append(args, string(filter.BranchID))
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []charges.SchemeRecord
	for rows.Next() {
		rec, err := s.scanScheme(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// DeleteScheme removes a scheme. Assessments keep their own copy of it.
func (s *Store) DeleteScheme(ctx context.Context, id charges.SchemeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM charge_schemes WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return charges.ErrSchemeNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanScheme(row scanner) (charges.SchemeRecord, error) {
	var id, config, createdAt, updatedAt string
	var version int
	if err := row.Scan(&id, &config, &version, &createdAt, &updatedAt); err != nil {
		return charges.SchemeRecord{}, err
	}

	rec, err := s.schemes.ParseScheme(config)
	if err != nil {
		return charges.SchemeRecord{}, fmt.Errorf("scheme %s has invalid config: %w", id, err)
	}
	rec.Version = version
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// =============================================================================
// ASSESSMENT STORE (append-only)
// =============================================================================

// Append persists an assessment. Returns ErrDuplicateIdempotencyKey if the
// key exists.
func (s *Store) Append(ctx context.Context, a charges.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schemeJSON, err := s.schemes.Marshal(charges.SchemeRecord{ID: a.SchemeID, Scheme: a.Scheme})
	if err != nil {
		return err
	}
	pathsJSON, err := json.Marshal(a.Paths)
	if err != nil {
		return fmt.Errorf("failed to marshal paths: %w", err)
	}

	query := `
		INSERT INTO assessments (id, loan_id, scheme_id, scheme_version, organization_id, branch_id,
			scheme_json, principal, terms, is_add_on, amount, exact_amount, paths_json,
			idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		string(a.ID), string(a.LoanID), string(a.SchemeID), a.SchemeVersion,
		string(a.OrganizationID), string(a.BranchID), schemeJSON,
		a.Loan.Applied1.String(), a.Loan.Terms, a.Loan.IsAddOn,
		a.Amount.String(), a.Exact.String(), string(pathsJSON),
		nullString(a.IdempotencyKey), nullString(a.CreatedBy), formatTime(a.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return charges.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to append assessment: %w", err)
	}
	return nil
}

// Exists checks if an idempotency key was already used.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM assessments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

const assessmentColumns = `id, loan_id, scheme_id, scheme_version, organization_id, branch_id,
	scheme_json, principal, terms, is_add_on, amount, exact_amount, paths_json,
	idempotency_key, created_by, created_at`

// Get returns one assessment.
func (s *Store) Get(ctx context.Context, id charges.AssessmentID) (charges.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+assessmentColumns+" FROM assessments WHERE id = ?", string(id))
	if err != nil {
		return charges.Assessment{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return charges.Assessment{}, err
		}
		return charges.Assessment{}, charges.ErrAssessmentNotFound
	}
	return s.scanAssessment(rows)
}

// ListByLoan returns a loan's assessments ordered by creation time.
func (s *Store) ListByLoan(ctx context.Context, loanID charges.LoanID) ([]charges.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+assessmentColumns+" FROM assessments WHERE loan_id = ? ORDER BY created_at, id",
		string(loanID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []charges.Assessment
	for rows.Next() {
		a, err := s.scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) scanAssessment(rows *sql.Rows) (charges.Assessment, error) {
	var (
		a                                 charges.Assessment
		id, loanID, schemeID, org, branch string
		schemeJSON, principal             string
		amount, exact, pathsJSON          string
		idemKey, createdBy                sql.NullString
		createdAt                         string
	)

	err := rows.Scan(&id, &loanID, &schemeID, &a.SchemeVersion, &org, &branch,
		&schemeJSON, &principal, &a.Loan.Terms, &a.Loan.IsAddOn,
		&amount, &exact, &pathsJSON, &idemKey, &createdBy, &createdAt)
	if err != nil {
		return a, err
	}

	rec, err := s.schemes.ParseScheme(schemeJSON)
	if err != nil {
		return a, fmt.Errorf("assessment %s has invalid scheme: %w", id, err)
	}
	if err := json.Unmarshal([]byte(pathsJSON), &a.Paths); err != nil {
		return a, fmt.Errorf("assessment %s has invalid paths: %w", id, err)
	}

	a.ID = charges.AssessmentID(id)
	a.LoanID = charges.LoanID(loanID)
	a.SchemeID = charges.SchemeID(schemeID)
	a.OrganizationID = charges.OrganizationID(org)
	a.BranchID = charges.BranchID(branch)
	a.Scheme = rec.Scheme
	a.Loan.Applied1 = parseDecimal(principal)
	a.Amount = parseDecimal(amount)
	a.Exact = parseDecimal(exact)
	a.IdempotencyKey = idemKey.String
	a.CreatedBy = createdBy.String
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// formatTime uses a fixed-width layout so TEXT ordering matches time ordering.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isPrimaryKeyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
