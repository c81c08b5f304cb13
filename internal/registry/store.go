package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/wifiattend/internal/infrastructure/database"
)

// tableName is the single registry table.
const tableName = "bssids"

// schemaStatements are idempotent and safe to run before every mutation.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bssids (
		facility_id TEXT NULL,
		bssid       TEXT NOT NULL CHECK (bssid <> ''),
		UNIQUE (facility_id, bssid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bssids_bssid ON bssids (bssid)`,
	`CREATE INDEX IF NOT EXISTS idx_bssids_facility ON bssids (facility_id)`,
}

// Store defines the persistence operations behind Service.
//
// Implementations do not enforce the conflict policy; Service does, while
// holding its write lock and inside WithTx.
type Store interface {
	// EnsureSchema creates the table and indexes if they are missing.
	EnsureSchema(ctx context.Context) error

	// SchemaExists reports whether the table exists.
	SchemaExists(ctx context.Context) (bool, error)

	// FindByBSSID returns the record for bssid regardless of facility,
	// preferring a claimed row. Returns nil, nil when there is none.
	FindByBSSID(ctx context.Context, bssid string) (*Record, error)

	// Insert writes a new record.
	Insert(ctx context.Context, rec Record) error

	// UpdateFacility claims the unclaimed record for bssid.
	// Returns sql.ErrNoRows if there is no unclaimed record.
	UpdateFacility(ctx context.Context, bssid, facilityID string) error

	// DeleteMatching removes records for bssid. A nil facilityID matches
	// any facility. Returns the number of rows removed.
	DeleteMatching(ctx context.Context, bssid string, facilityID *string) (int64, error)

	// DeleteByFacility removes every record for facilityID in one statement.
	DeleteByFacility(ctx context.Context, facilityID string) (int64, error)

	// FetchAll returns every record. A missing table yields no records.
	FetchAll(ctx context.Context) ([]Record, error)

	// FetchByFacility returns the sorted distinct BSSIDs for facilityID;
	// nil selects unclaimed records. A missing table yields no BSSIDs.
	FetchByFacility(ctx context.Context, facilityID *string) ([]string, error)

	// DropAll drops the table.
	DropAll(ctx context.Context) error

	// WithTx runs fn against a Store bound to one transaction, committing
	// if fn returns nil and rolling back otherwise. Nested calls reuse the
	// outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// SQLStore implements Store over database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *database.DB
	q       database.Querier
	dialect database.Dialect
	inTx    bool
}

// NewSQLStore creates a store on db.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		q:       db,
		dialect: db.Dialect(),
	}
}

// EnsureSchema implements Store.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// SchemaExists implements Store.
func (s *SQLStore) SchemaExists(ctx context.Context) (bool, error) {
	return s.dialect.TableExists(ctx, s.q, tableName)
}

// FindByBSSID implements Store.
func (s *SQLStore) FindByBSSID(ctx context.Context, bssid string) (*Record, error) {
	query := s.dialect.Rebind(`
		SELECT facility_id, bssid FROM bssids
		WHERE bssid = ?
		ORDER BY CASE WHEN facility_id IS NULL THEN 1 ELSE 0 END
		LIMIT 1`)

	var (
		facility sql.NullString
		rec      Record
	)
	err := s.q.QueryRowContext(ctx, query, bssid).Scan(&facility, &rec.BSSID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error here
	}
	if err != nil {
		return nil, fmt.Errorf("querying bssid: %w", err)
	}

	rec.FacilityID = fromNullString(facility)
	return &rec, nil
}

// Insert implements Store.
func (s *SQLStore) Insert(ctx context.Context, rec Record) error {
	query := s.dialect.Rebind(`INSERT INTO bssids (facility_id, bssid) VALUES (?, ?)`)
	if _, err := s.q.ExecContext(ctx, query, nullStr(rec.FacilityID), rec.BSSID); err != nil {
		return fmt.Errorf("inserting bssid: %w", err)
	}
	return nil
}

// UpdateFacility implements Store.
func (s *SQLStore) UpdateFacility(ctx context.Context, bssid, facilityID string) error {
	query := s.dialect.Rebind(`UPDATE bssids SET facility_id = ? WHERE bssid = ? AND facility_id IS NULL`)
	result, err := s.q.ExecContext(ctx, query, facilityID, bssid)
	if err != nil {
		return fmt.Errorf("claiming bssid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming bssid: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("claiming bssid: %w", sql.ErrNoRows)
	}
	return nil
}

// DeleteMatching implements Store.
func (s *SQLStore) DeleteMatching(ctx context.Context, bssid string, facilityID *string) (int64, error) {
	query := `DELETE FROM bssids WHERE bssid = ?`
	args := []any{bssid}
	if facilityID != nil {
		query += ` AND facility_id = ?`
		args = append(args, *facilityID)
	}
	return s.execCount(ctx, "deleting bssid", query, args...)
}

// DeleteByFacility implements Store.
func (s *SQLStore) DeleteByFacility(ctx context.Context, facilityID string) (int64, error) {
	return s.execCount(ctx, "deleting facility", `DELETE FROM bssids WHERE facility_id = ?`, facilityID)
}

// FetchAll implements Store.
func (s *SQLStore) FetchAll(ctx context.Context) ([]Record, error) {
	exists, err := s.SchemaExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Record{}, nil
	}

	rows, err := s.q.QueryContext(ctx, `SELECT facility_id, bssid FROM bssids ORDER BY bssid`)
	if err != nil {
		return nil, fmt.Errorf("querying bssids: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			facility sql.NullString
			rec      Record
		)
		if err := rows.Scan(&facility, &rec.BSSID); err != nil {
			return nil, fmt.Errorf("scanning bssid: %w", err)
		}
		rec.FacilityID = fromNullString(facility)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bssids: %w", err)
	}
	return records, nil
}

// FetchByFacility implements Store.
func (s *SQLStore) FetchByFacility(ctx context.Context, facilityID *string) ([]string, error) {
	exists, err := s.SchemaExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []string{}, nil
	}

	query := `SELECT DISTINCT bssid FROM bssids WHERE facility_id IS NULL ORDER BY bssid`
	var args []any
	if facilityID != nil {
		query = s.dialect.Rebind(`SELECT DISTINCT bssid FROM bssids WHERE facility_id = ? ORDER BY bssid`)
		args = append(args, *facilityID)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facility bssids: %w", err)
	}
	defer rows.Close()

	bssids := []string{}
	for rows.Next() {
		var bssid string
		if err := rows.Scan(&bssid); err != nil {
			return nil, fmt.Errorf("scanning bssid: %w", err)
		}
		bssids = append(bssids, bssid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facility bssids: %w", err)
	}
	return bssids, nil
}

// DropAll implements Store.
func (s *SQLStore) DropAll(ctx context.Context) error {
	if _, err := s.q.ExecContext(ctx, `DROP TABLE bssids`); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}
	return nil
}

// WithTx implements Store.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	if err := fn(&SQLStore{db: s.db, q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) execCount(ctx context.Context, action, query string, args ...any) (int64, error) {
	result, err := s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", action, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", action, err)
	}
	return n, nil
}

// nullStr converts an optional string to a SQL NULL-able value.
func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
