package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/godilite/customer-intel/internal/repository/models"
	dbbuilder "github.com/godilite/customer-intel/pkg/database"
)

// insertBatchSize keeps each multi-row INSERT under sqlite's 999 bound-parameter limit.
const insertBatchSize = 300

// DB is the subset of *sql.DB the prediction repository needs.
type DB interface {
	Querier
	dbbuilder.Beginner
}

// PredictionRepository owns the customer_predictions table.
type PredictionRepository struct {
	db DB
}

func NewPredictionRepository(db DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// GetCustomerAggregates reads the RFM inputs for every customer with an id.
func (r *PredictionRepository) GetCustomerAggregates(ctx context.Context) ([]models.CustomerAggregate, error) {
	const q = `
		SELECT
			customer_id,
			recency_days,
			frequency_orders,
			monetary_revenue
		FROM vw_customer_master
		WHERE customer_id IS NOT NULL
	`

	rows, err := QueryMany(ctx, r.db, q, nil, func(s Scanner) (models.CustomerAggregate, error) {
		var a models.CustomerAggregate
		if err := s.Scan(&a.CustomerID, &a.RecencyDays, &a.FrequencyOrders, &a.MonetaryRevenue); err != nil {
			return a, fmt.Errorf("scan GetCustomerAggregates row: %w", err)
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query GetCustomerAggregates: %w", err)
	}
	return rows, nil
}

// ReplacePredictions deletes every existing prediction and inserts preds in one
// transaction. On any failure the previous prediction set is left intact.
func (r *PredictionRepository) ReplacePredictions(ctx context.Context, preds []models.CustomerPrediction) (int64, error) {
	return dbbuilder.WithTx(ctx, r.db, func(tx *sql.Tx) (int64, error) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM customer_predictions"); err != nil {
			return 0, fmt.Errorf("delete predictions: %w", mapError(err))
		}

		var inserted int64
		for start := 0; start < len(preds); start += insertBatchSize {
			end := min(start+insertBatchSize, len(preds))
			stmt, args := insertPredictionsStatement(preds[start:end])

			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return 0, fmt.Errorf("insert predictions [%d:%d]: %w", start, end, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return 0, fmt.Errorf("insert predictions rows affected: %w", err)
			}
			inserted += n
		}

		if inserted != int64(len(preds)) {
			return 0, fmt.Errorf("inserted %d predictions, expected %d", inserted, len(preds))
		}
		return inserted, nil
	})
}

func insertPredictionsStatement(batch []models.CustomerPrediction) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO customer_predictions (customer_id, churn_prob, clv) VALUES ")

	args := make([]any, 0, len(batch)*3)
	for i, p := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, p.CustomerID, p.ChurnProb, p.CLV)
	}
	return sb.String(), args
}
