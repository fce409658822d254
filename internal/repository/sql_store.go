package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

const recordsTable = "records"

// SQLStore implements Store on a single SQLite table through ent's SQL
// driver and query builder. Each row holds one record as a JSON body.
type SQLStore struct {
	drv *entsql.Driver

	mu  sync.Mutex // serialises writes and guards seq
	seq int64
}

// OpenSQLite opens (creating if needed) a SQLite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLStore(ctx, entsql.OpenDB(dialect.SQLite, db))
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open driver and ensures the table exists.
func NewSQLStore(ctx context.Context, drv *entsql.Driver) (*SQLStore, error) {
	s := &SQLStore{drv: drv}
	if err := s.CreateTable(ctx); err != nil {
		return nil, fmt.Errorf("creating %s table: %w", recordsTable, err)
	}
	seq, err := s.maxSeq(ctx)
	if err != nil {
		return nil, err
	}
	s.seq = seq
	return s, nil
}

// CreateTable creates the records table and its ordering index.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS records (
			entity TEXT NOT NULL,
			id     TEXT NOT NULL,
			seq    INTEGER NOT NULL,
			body   TEXT NOT NULL,
			PRIMARY KEY (entity, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_entity_seq ON records (entity, seq)`,
	} {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (s *SQLStore) maxSeq(ctx context.Context) (int64, error) {
	query, args := s.builder().
		Select(entsql.Max("seq")).
		From(entsql.Table(recordsTable)).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("reading max seq: %w", err)
	}
	defer rows.Close()
	var seq sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&seq); err != nil {
			return 0, fmt.Errorf("scanning max seq: %w", err)
		}
	}
	return seq.Int64, rows.Err()
}

func (s *SQLStore) List(ctx context.Context, entity string) ([]record.Record, error) {
	query, args := s.builder().
		Select("body").
		From(entsql.Table(recordsTable)).
		Where(entsql.EQ("entity", entity)).
		OrderBy("seq").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("listing %s: %w", entity, err)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", entity, err)
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", entity, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, entity, id string) (record.Record, error) {
	query, args := s.builder().
		Select("body").
		From(entsql.Table(recordsTable)).
		Where(entsql.And(entsql.EQ("entity", entity), entsql.EQ("id", id))).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", entity, id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var body string
	if err := rows.Scan(&body); err != nil {
		return nil, fmt.Errorf("scanning %s %s: %w", entity, id, err)
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", entity, id, err)
	}
	return rec, nil
}

func (s *SQLStore) Insert(ctx context.Context, entity string, rec record.Record) (record.Record, error) {
	id := rec.ID()
	if id == "" {
		id = NewID()
	}
	stored := prepare(rec, id)
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", entity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.Get(ctx, entity, id); err == nil {
		return nil, ErrDuplicate
	} else if err != ErrNotFound {
		return nil, err
	}

	query, args := s.builder().
		Insert(recordsTable).
		Columns("entity", "id", "seq", "body").
		Values(entity, id, s.seq+1, string(body)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return nil, fmt.Errorf("inserting %s: %w", entity, err)
	}
	s.seq++
	return stored, nil
}

func (s *SQLStore) Replace(ctx context.Context, entity, id string, rec record.Record) (record.Record, error) {
	stored := prepare(rec, id)
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", entity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	query, args := s.builder().
		Update(recordsTable).
		Set("body", string(body)).
		Where(entsql.And(entsql.EQ("entity", entity), entsql.EQ("id", id))).
		Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", entity, id, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return stored, nil
}

func (s *SQLStore) Delete(ctx context.Context, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	query, args := s.builder().
		Delete(recordsTable).
		Where(entsql.And(entsql.EQ("entity", entity), entsql.EQ("id", id))).
		Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", entity, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// exec runs a statement and returns the affected row count.
func (s *SQLStore) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.drv.Close()
}
