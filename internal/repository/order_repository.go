package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/godilite/customer-intel/internal/repository/models"
	dbbuilder "github.com/godilite/customer-intel/pkg/database"
)

const (
	orderBatchSize    = 100
	orderInsertLayout = "2006-01-02 15:04:05"
)

// OrderRepository loads raw order lines into fact_orders.
type OrderRepository struct {
	db DB
}

func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ReplaceOrders clears fact_orders and loads lines in a single transaction.
// progress, if set, is called with the number of lines written after each batch.
func (r *OrderRepository) ReplaceOrders(ctx context.Context, lines []models.OrderLine, progress func(n int)) (int64, error) {
	return dbbuilder.WithTx(ctx, r.db, func(tx *sql.Tx) (int64, error) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fact_orders"); err != nil {
			return 0, fmt.Errorf("clear fact_orders: %w", mapError(err))
		}

		var total int64
		for start := 0; start < len(lines); start += orderBatchSize {
			end := min(start+orderBatchSize, len(lines))
			stmt, args := insertOrdersStatement(lines[start:end])

			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return 0, fmt.Errorf("insert orders [%d:%d]: %w", start, end, err)
			}
			n, _ := res.RowsAffected()
			total += n

			if progress != nil {
				progress(end - start)
			}
		}
		return total, nil
	})
}

func insertOrdersStatement(batch []models.OrderLine) (string, []any) {
	const cols = 8

	var sb strings.Builder
	sb.WriteString("INSERT INTO fact_orders (invoice_no, invoice_date, customer_id, country, stock_code, description, quantity, unit_price) VALUES ")

	args := make([]any, 0, len(batch)*cols)
	for i, l := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= cols; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+c)
		}
		sb.WriteString(")")
		args = append(args,
			l.InvoiceNo,
			l.InvoiceDate.UTC().Format(orderInsertLayout),
			l.CustomerID,
			l.Country,
			l.StockCode,
			l.Description,
			l.Quantity,
			l.UnitPrice,
		)
	}
	return sb.String(), args
}
