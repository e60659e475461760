package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository"
	"github.com/godilite/customer-intel/internal/repository/models"
	"github.com/godilite/customer-intel/pkg/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Up(db, "sqlite3"))
	return db
}

func countPredictions(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM customer_predictions").Scan(&n))
	return n
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func seedOrders(t *testing.T, db *sql.DB) {
	t.Helper()

	lines := []models.OrderLine{
		// C1: two orders, one in Nov one in Dec, last order on anchor day
		{InvoiceNo: "500001", InvoiceDate: day(2011, 11, 2), CustomerID: "C1", Country: "Germany", StockCode: "A", Description: "mug", Quantity: 2, UnitPrice: 5},
		{InvoiceNo: "500002", InvoiceDate: day(2011, 12, 9), CustomerID: "C1", Country: "Germany", StockCode: "B", Description: "lamp", Quantity: 1, UnitPrice: 45},
		// C2: single order 99 days before the anchor
		{InvoiceNo: "500003", InvoiceDate: day(2011, 9, 1), CustomerID: " C2 ", Country: "France", StockCode: "A", Description: "mug", Quantity: 10, UnitPrice: 5},
		// C3: two orders in the same month
		{InvoiceNo: "500004", InvoiceDate: day(2011, 12, 1), CustomerID: "C3", Country: "France", StockCode: "C", Description: "card", Quantity: 4, UnitPrice: 2.5},
		{InvoiceNo: "500005", InvoiceDate: day(2011, 12, 5), CustomerID: "C3", Country: "France", StockCode: "C", Description: "card", Quantity: 2, UnitPrice: 2.5},
		// returns and zero prices are ignored by the views
		{InvoiceNo: "C500006", InvoiceDate: day(2011, 12, 6), CustomerID: "C3", Country: "France", StockCode: "C", Description: "card", Quantity: -1, UnitPrice: 2.5},
	}

	n, err := repository.NewOrderRepository(db).ReplaceOrders(context.Background(), lines, nil)
	require.NoError(t, err)
	require.EqualValues(t, len(lines), n)
}

func TestOrderRepository_ReplaceOrdersReportsProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewOrderRepository(db)

	lines := make([]models.OrderLine, 250)
	for i := range lines {
		lines[i] = models.OrderLine{InvoiceNo: "1", InvoiceDate: day(2011, 1, 1), CustomerID: "X", Quantity: 1, UnitPrice: 1}
	}

	var progressed []int
	n, err := repo.ReplaceOrders(context.Background(), lines, func(k int) { progressed = append(progressed, k) })
	require.NoError(t, err)
	assert.EqualValues(t, 250, n)
	assert.Equal(t, []int{100, 100, 50}, progressed)

	// a second load replaces the first
	n, err = repo.ReplaceOrders(context.Background(), lines[:10], nil)
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fact_orders").Scan(&count))
	assert.Equal(t, 10, count)
}

func TestPredictionRepository_Integration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	seedOrders(t, db)

	repo := repository.NewPredictionRepository(db)

	aggs, err := repo.GetCustomerAggregates(ctx)
	require.NoError(t, err)
	require.Len(t, aggs, 3)

	byID := map[string]models.CustomerAggregate{}
	for _, a := range aggs {
		byID[a.CustomerID] = a
	}
	require.Contains(t, byID, "C2", "customer ids are trimmed")

	assert.Equal(t, 0.0, byID["C1"].RecencyDays.Float64)
	assert.Equal(t, 2.0, byID["C1"].FrequencyOrders.Float64)
	assert.InDelta(t, 55.0, byID["C1"].MonetaryRevenue.Float64, 1e-9)
	assert.Equal(t, 99.0, byID["C2"].RecencyDays.Float64)
	assert.InDelta(t, 15.0, byID["C3"].MonetaryRevenue.Float64, 1e-9)

	t.Run("replace is all or nothing", func(t *testing.T) {
		n, err := repo.ReplacePredictions(ctx, []models.CustomerPrediction{
			{CustomerID: "C1", ChurnProb: 0.05, CLV: 120},
			{CustomerID: "C2", ChurnProb: 0.6, CLV: 55},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		// second row violates the churn CHECK constraint
		_, err = repo.ReplacePredictions(ctx, []models.CustomerPrediction{
			{CustomerID: "C1", ChurnProb: 0.5, CLV: 100},
			{CustomerID: "C3", ChurnProb: 1.5, CLV: 100},
		})
		require.Error(t, err)

		count := countPredictions(t, db)
		assert.EqualValues(t, 2, count)

		var churn float64
		require.NoError(t, db.QueryRow("SELECT churn_prob FROM customer_predictions WHERE customer_id = 'C1'").Scan(&churn))
		assert.Equal(t, 0.05, churn)
	})

	t.Run("batches larger than one insert", func(t *testing.T) {
		preds := make([]models.CustomerPrediction, 701)
		for i := range preds {
			preds[i] = models.CustomerPrediction{CustomerID: fmt.Sprintf("P%05d", i), ChurnProb: 0.5, CLV: 60}
		}
		n, err := repo.ReplacePredictions(ctx, preds)
		require.NoError(t, err)
		assert.EqualValues(t, 701, n)
	})

	t.Run("empty set clears the table", func(t *testing.T) {
		n, err := repo.ReplacePredictions(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		count := countPredictions(t, db)
		assert.Zero(t, count)
	})
}

func TestCustomerRepository_Integration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.NewCustomerRepository(db)

	t.Run("empty store", func(t *testing.T) {
		bounds, err := repo.DateBounds(ctx)
		require.NoError(t, err)
		assert.True(t, bounds.Min.IsZero())
		assert.True(t, bounds.Max.IsZero())

		count, err := repo.PredictionCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		q, err := query.CustomerQuery(query.DefaultSelection(bounds, day(2011, 12, 31)))
		require.NoError(t, err)
		rows, err := repo.Customers(ctx, q)
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	seedOrders(t, db)
	_, err := repository.NewPredictionRepository(db).ReplacePredictions(ctx, []models.CustomerPrediction{
		{CustomerID: "C1", ChurnProb: 0.05, CLV: 300},
		{CustomerID: "C2", ChurnProb: 0.8, CLV: 200},
		{CustomerID: "C3", ChurnProb: 0.5, CLV: 100},
	})
	require.NoError(t, err)

	bounds, err := repo.DateBounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2011-09-01", bounds.Min.String())
	assert.Equal(t, "2011-12-09", bounds.Max.String())

	all := query.DefaultSelection(bounds, time.Now())

	t.Run("distinct values", func(t *testing.T) {
		countries, err := repo.Distinct(ctx, "country")
		require.NoError(t, err)
		assert.Equal(t, []string{"France", "Germany"}, countries)

		segments, err := repo.Distinct(ctx, "segment")
		require.NoError(t, err)
		assert.Equal(t, []string{"At Risk", "Recent"}, segments)

		_, err = repo.Distinct(ctx, "description")
		assert.ErrorIs(t, err, query.ErrInvalidFilter)
	})

	t.Run("monthly metrics", func(t *testing.T) {
		q, err := query.MonthlyQuery(query.FilterSelection{
			StartDate: time.Date(2011, 11, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   bounds.Max.Time,
		})
		require.NoError(t, err)

		rows, err := repo.MonthlyMetrics(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "2011-11-01", rows[0].Month.String())
		assert.EqualValues(t, 1, rows[0].ActiveCustomers)

		dec := rows[1]
		assert.Equal(t, "2011-12-01", dec.Month.String())
		assert.EqualValues(t, 2, dec.ActiveCustomers)
		assert.EqualValues(t, 3, dec.Orders)
		assert.InDelta(t, 60.0, dec.Revenue, 1e-9)
		assert.InDelta(t, 0.5, dec.RepeatRate, 1e-9)
	})

	t.Run("segment kpis", func(t *testing.T) {
		q, err := query.SegmentQuery(all)
		require.NoError(t, err)

		rows, err := repo.SegmentKPIs(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Recent", rows[0].Segment)
		assert.EqualValues(t, 2, rows[0].Customers)
		assert.InDelta(t, 70.0, rows[0].Revenue, 1e-9)
	})

	t.Run("risk rows ranked by priority", func(t *testing.T) {
		f := all
		f.ChurnMin = 0.1
		q, err := query.RiskQuery(f)
		require.NoError(t, err)

		rows, err := repo.RiskRows(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "C2", rows[0].CustomerID)
		assert.InDelta(t, 160.0, rows[0].PriorityScore, 1e-9)
		assert.Equal(t, "C3", rows[1].CustomerID)

		f.Country = "Germany"
		q, err = query.RiskQuery(f)
		require.NoError(t, err)
		rows, err = repo.RiskRows(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("top at risk view", func(t *testing.T) {
		rows, err := repo.RiskRows(ctx, query.TopAtRiskQuery(2))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "C2", rows[0].CustomerID)
		assert.Equal(t, "C3", rows[1].CustomerID)
	})

	t.Run("customer list and lookup", func(t *testing.T) {
		q, err := query.CustomerQuery(all)
		require.NoError(t, err)

		rows, err := repo.Customers(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "C1", rows[0].CustomerID)

		c, err := repo.CustomerByID(ctx, "C3")
		require.NoError(t, err)
		assert.Equal(t, "France", c.Country.String)
		assert.InDelta(t, 7.5, c.AvgOrderValue.Float64, 1e-9)
		assert.Equal(t, "2011-12-01", c.FirstOrderDate.String())
		assert.Equal(t, 0.5, c.ChurnProb.Float64)

		_, err = repo.CustomerByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("prediction count", func(t *testing.T) {
		count, err := repo.PredictionCount(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})
}

func TestCustomerRepository_MissingRelation(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	repo := repository.NewCustomerRepository(db)

	count, err := repo.PredictionCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = repo.CustomerByID(context.Background(), "C1")
	assert.ErrorIs(t, err, repository.ErrRelationMissing)
}
