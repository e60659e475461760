package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUndefinedTableCode = "42P01"

// ErrRelationMissing reports that a table or view referenced by a query does not exist.
var ErrRelationMissing = errors.New("relation does not exist")

// Querier is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scanner abstracts *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

type ScanFunc[T any] func(Scanner) (T, error)

// QueryMany runs query and scans every row. Returns an empty, non-nil slice when no rows match.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// mapError translates missing-relation errors from either postgres or sqlite into
// ErrRelationMissing while keeping the original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTableCode {
		return errors.Join(ErrRelationMissing, err)
	}
	if strings.Contains(err.Error(), "no such table") {
		return errors.Join(ErrRelationMissing, err)
	}
	return err
}
