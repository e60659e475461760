package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/godilite/customer-intel/internal/repository"
	"github.com/godilite/customer-intel/internal/repository/models"
	dbbuilder "github.com/godilite/customer-intel/pkg/database"
	"github.com/godilite/customer-intel/pkg/migrations"
)

func setupRealDB(tb testing.TB, customers int) *sql.DB {
	tb.Helper()

	db, err := dbbuilder.New(context.Background(),
		dbbuilder.WithDriver(dbbuilder.DriverSQLite),
		dbbuilder.WithDataSource(":memory:"),
		dbbuilder.WithMaxOpenConns(1),
	)
	if err != nil {
		tb.Fatalf("failed to create db pool via builder: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := migrations.Up(db, dbbuilder.DriverSQLite); err != nil {
		tb.Fatalf("failed to migrate: %v", err)
	}

	lines := make([]models.OrderLine, 0, customers*2)
	for i := range customers {
		for j := range 2 {
			lines = append(lines, models.OrderLine{
				InvoiceNo:   fmt.Sprintf("%06d", i*2+j),
				InvoiceDate: dayOf(2011, 1+i%12, 1+j*10),
				CustomerID:  fmt.Sprintf("%05d", i),
				Country:     "United Kingdom",
				StockCode:   "85123A",
				Quantity:    1 + i%7,
				UnitPrice:   2.55,
			})
		}
	}
	if _, err := repository.NewOrderRepository(db).ReplaceOrders(context.Background(), lines, nil); err != nil {
		tb.Fatalf("failed to seed db: %v", err)
	}
	return db
}

func dayOf(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 9, 30, 0, 0, time.UTC)
}

func BenchmarkScore(b *testing.B) {
	aggs := make([]models.CustomerAggregate, 5000)
	for i := range aggs {
		aggs[i] = agg(fmt.Sprintf("%05d", i), float64(i%400), float64(i%30), float64(i)*3.5)
	}

	b.ReportAllocs()

	for b.Loop() {
		_ = Score(aggs)
	}
}

func BenchmarkScoringRun(b *testing.B) {
	db := setupRealDB(b, 500)
	svc := NewScoringService(repository.NewPredictionRepository(db), zap.NewNop())

	b.ReportAllocs()

	for b.Loop() {
		if _, err := svc.Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
