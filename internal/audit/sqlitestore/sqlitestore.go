// Package sqlitestore keeps the audit trail in a SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stockquote/internal/audit"
)

type Store struct {
	db *sql.DB
}

// New migrates the schema on db and returns a store using it. The caller
// owns db.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			ts INTEGER NOT NULL,
			server TEXT NOT NULL,
			transaction_num TEXT NOT NULL,
			command TEXT,
			user_name TEXT,
			symbol TEXT,
			filename TEXT,
			funds TEXT,
			price TEXT,
			quote_time INTEGER,
			crypto_key TEXT,
			action TEXT,
			message TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_name);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_log(type);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit_log: %w", err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	var quoteTime int64
	if !e.QuoteTime.IsZero() {
		quoteTime = e.QuoteTime.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_log
		(type, ts, server, transaction_num, command, user_name, symbol, filename, funds, price, quote_time, crypto_key, action, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Type), e.Timestamp.UnixMilli(), e.Server, e.TransactionNum,
		string(e.Command), e.User, e.Symbol, e.Filename,
		e.Funds, e.Price, quoteTime, e.CryptoKey, e.Action, e.Message,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns matching entries oldest first.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.User != "" {
		where = append(where, "user_name = ?")
		args = append(args, f.User)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	q := `SELECT id, type, ts, server, transaction_num, command, user_name, symbol, filename,
		funds, price, quote_time, crypto_key, action, message FROM audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e             audit.Entry
			typ, cmd      string
			ts, quoteTime int64
		)
		if err := rows.Scan(&e.ID, &typ, &ts, &e.Server, &e.TransactionNum, &cmd, &e.User, &e.Symbol, &e.Filename,
			&e.Funds, &e.Price, &quoteTime, &e.CryptoKey, &e.Action, &e.Message); err != nil {
			return nil, fmt.Errorf("scan audit_log: %w", err)
		}
		e.Type = audit.LogType(typ)
		e.Command = audit.CommandType(cmd)
		e.Timestamp = time.UnixMilli(ts).UTC()
		if quoteTime != 0 {
			e.QuoteTime = time.UnixMilli(quoteTime).UTC()
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit_log: %w", err)
	}
	return out, nil
}
