// Package postgres stores records in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	dbpg "github.com/adeilh/rakh-records/db/sql/postgres"
	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordstore"
)

// Schema creates the records table.
const Schema = `CREATE TABLE IF NOT EXISTS records (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL,
	position  TEXT NOT NULL DEFAULT '',
	salary    DOUBLE PRECISION NOT NULL DEFAULT 0,
	hire_date DATE NOT NULL
)`

// Migrate creates the records table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	return dbpg.ApplyMigrations(ctx, db, Schema)
}

// Store implements recordstore.Client.
type Store struct {
	db *sql.DB
}

var _ recordstore.Client = (*Store)(nil)

// New wraps an existing *sql.DB connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ReadByID(ctx context.Context, id int64) (record.Record, error) {
	const query = `SELECT id, name, position, salary, hire_date FROM records WHERE id = $1`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record.Record{}, recordstore.ErrNotFound
		}
		return record.Record{}, translateError(err)
	}
	return r, nil
}

func (s *Store) ReadAll(ctx context.Context) ([]record.Record, error) {
	const query = `SELECT id, name, position, salary, hire_date FROM records ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, translateError(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, f record.Fields) (int64, error) {
	const query = `INSERT INTO records (name, position, salary, hire_date) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, query, f.Name, f.Position, f.Salary, f.HireDate).Scan(&id)
	if err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, id int64, f record.Fields) (bool, error) {
	const query = `UPDATE records SET name = $2, position = $3, salary = $4, hire_date = $5 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, f.Name, f.Position, f.Salary, f.HireDate)
	if err != nil {
		return false, translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return false, translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (record.Record, error) {
	var (
		r        record.Record
		hireDate time.Time
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Position, &r.Salary, &hireDate); err != nil {
		return record.Record{}, err
	}
	r.HireDate = hireDate.Format(record.DateLayout)
	return r, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "22007", "22008", "22P02":
			return fmt.Errorf("%w: %s", record.ErrInvalidFields, pqErr.Message)
		}
	}
	return fmt.Errorf("postgres: %w", err)
}
