package kvstore

import (
	"context"
	"database/sql"
	"fmt"

	// Reference driver registrations: the configured driver name picks one,
	// so SQLite, Postgres and MySQL all satisfy the same Store contract.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQL is a database/sql-backed Store for the seven tables the core owns.
// It expects one physical table per logical table, each with columns
// (pk TEXT, id TEXT, blob BLOB/BYTEA, PRIMARY KEY(pk, id)).
type SQL struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens a SQL-backed Store. driver is "sqlite3", "postgres" or
// "mysql"; dsn is passed to sql.Open unchanged.
func OpenSQL(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("kvstore: ping %s: %w", driver, err)
	}
	return &SQL{db: db, driver: driver}, nil
}

// EnsureTable creates the physical table backing a logical table if it does
// not already exist. Callers are expected to call this once per table at
// startup for every table they intend to use.
func (s *SQL) EnsureTable(ctx context.Context, table string) error {
	blobType := "BLOB"
	keyType := "TEXT"
	switch s.driver {
	case "postgres":
		blobType = "BYTEA"
	case "mysql":
		// MySQL can't index bare TEXT columns.
		keyType = "VARCHAR(255)"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		pk %s NOT NULL,
		id %s NOT NULL,
		blob %s NOT NULL,
		PRIMARY KEY (pk, id)
	)`, s.quoteIdent(table), keyType, keyType, blobType)
	_, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("kvstore: ensure table %s: %w", table, err)
	}
	return nil
}

func (s *SQL) quoteIdent(name string) string {
	if s.driver == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// Insert implements Store.
func (s *SQL) Insert(ctx context.Context, table, pk, id string, blob []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (pk, id, blob) VALUES (?, ?, ?)`, s.quoteIdent(table))
	_, err := s.db.ExecContext(ctx, s.rebind(q), pk, id, blob)
	if err != nil {
		return fmt.Errorf("kvstore: insert %s/%s: %w", table, id, err)
	}
	return nil
}

// Update implements Store.
func (s *SQL) Update(ctx context.Context, table, pk, id string, blob []byte) error {
	q := fmt.Sprintf(`UPDATE %s SET blob = ? WHERE pk = ? AND id = ?`, s.quoteIdent(table))
	res, err := s.db.ExecContext(ctx, s.rebind(q), blob, pk, id)
	if err != nil {
		return fmt.Errorf("kvstore: update %s/%s: %w", table, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("kvstore: %s/%s not found", table, id)
	}
	return nil
}

// GetByID implements Store.
func (s *SQL) GetByID(ctx context.Context, table, pk, id string) ([]byte, bool, error) {
	q := fmt.Sprintf(`SELECT blob FROM %s WHERE pk = ? AND id = ?`, s.quoteIdent(table))
	row := s.db.QueryRowContext(ctx, s.rebind(q), pk, id)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kvstore: get %s/%s: %w", table, id, err)
	}
	return blob, true, nil
}

// GetAll implements Store.
func (s *SQL) GetAll(ctx context.Context, table string, limit, offset int) ([][]byte, error) {
	q := fmt.Sprintf(`SELECT blob FROM %s ORDER BY id LIMIT ? OFFSET ?`, s.quoteIdent(table))
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get all %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("kvstore: scan %s: %w", table, err)
		}
		out = append(out, blob)
	}
	return out, rows.Err()
}

// Delete implements Store.
func (s *SQL) Delete(ctx context.Context, table, pk, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE pk = ? AND id = ?`, s.quoteIdent(table))
	_, err := s.db.ExecContext(ctx, s.rebind(q), pk, id)
	if err != nil {
		return fmt.Errorf("kvstore: delete %s/%s: %w", table, id, err)
	}
	return nil
}

// Count implements Store.
func (s *SQL) Count(ctx context.Context, table string) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.quoteIdent(table))
	row := s.db.QueryRowContext(ctx, q)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("kvstore: count %s: %w", table, err)
	}
	return n, nil
}

// rebind rewrites "?" placeholders to "$1", "$2", ... for drivers (lib/pq)
// that don't accept positional "?" binding.
func (s *SQL) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, '$')
			out = append(out, []byte(fmt.Sprintf("%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Close closes the underlying database handle.
func (s *SQL) Close() error { return s.db.Close() }
