package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keepit/internal/store"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DBType represents the type of database
type DBType string

const (
	SQLite   DBType = "sqlite3"
	Postgres DBType = "postgres"
)

// SQLStore implements the Store interface for SQL databases
type SQLStore struct {
	db     *sql.DB
	dbType DBType
	log    zerolog.Logger
	now    func() time.Time
}

var _ store.Store = (*SQLStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// New creates a new SQLStore with the given driver and connection string
func New(driver, connStr string) (*SQLStore, error) {
	dbType := DBType(driver)
	if dbType != SQLite && dbType != Postgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, err
	}

	if dbType == SQLite {
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{
		db:     db,
		dbType: dbType,
		log:    zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// SetLogger replaces the logger used for transaction diagnostics.
func (s *SQLStore) SetLogger(l zerolog.Logger) {
	s.log = l
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dbType == SQLite {
		return query
	}
	var result strings.Builder
	argNum := 1
	for _, c := range query {
		if c == '?' {
			result.WriteByte('$')
			result.WriteString(strconv.Itoa(argNum))
			argNum++
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

func (s *SQLStore) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	res, err := q.ExecContext(ctx, s.rebind(query), args...)
	return res, mapErr(err)
}

func (s *SQLStore) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

// insert runs an INSERT and returns the generated id.
func (s *SQLStore) insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	if s.dbType == Postgres {
		var id int64
		err := q.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, mapErr(err)
	}
	res, err := q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

// execOne runs a statement that must affect exactly one row.
func (s *SQLStore) execOne(ctx context.Context, q querier, query string, args ...any) error {
	res, err := s.exec(ctx, q, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) count(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, q, query, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

// ids runs a single-column query and returns the collected values with
// the rows already closed, so the caller may issue further statements.
func (s *SQLStore) ids(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// withTx runs fn inside a transaction and commits only if fn succeeds.
func (s *SQLStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("sql tx begin failed")
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn().Err(rbErr).Str("op", op).Msg("sql tx rollback failed")
		}
		s.log.Debug().Err(err).Str("op", op).Dur("duration", time.Since(start)).Msg("sql tx rolled back")
		return err
	}
	if err := tx.Commit(); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("sql tx commit failed")
		return mapErr(err)
	}
	s.log.Debug().Str("op", op).Dur("duration", time.Since(start)).Msg("sql tx committed")
	return nil
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
