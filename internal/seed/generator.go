// Package seed generates a deterministic Online Retail style order history for
// local runs and end-to-end tests.
package seed

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/godilite/customer-intel/internal/repository/models"
)

var Countries = []string{
	"United Kingdom", "Netherlands", "EIRE", "Germany", "France", "Sweden",
	"Switzerland", "Spain", "Poland", "Italy", "Belgium", "Norway", "Finland",
	"Cyprus", "Japan", "USA", "Australia", "Canada",
}

type Config struct {
	Customers          int
	Invoices           int
	SKUs               int
	MaxLinesPerInvoice int
	MaxQuantity        int
	Start              time.Time
	End                time.Time
	Seed               uint64
}

func DefaultConfig() Config {
	return Config{
		Customers:          500,
		Invoices:           5000,
		SKUs:               100,
		MaxLinesPerInvoice: 5,
		MaxQuantity:        20,
		Start:              time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:                time.Date(2011, 12, 31, 0, 0, 0, 0, time.UTC),
		Seed:               42,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Customers < 1 {
		errs = append(errs, fmt.Errorf("customers must be positive, got %d", c.Customers))
	}
	if c.Invoices < 1 {
		errs = append(errs, fmt.Errorf("invoices must be positive, got %d", c.Invoices))
	}
	if c.SKUs < 1 {
		errs = append(errs, fmt.Errorf("skus must be positive, got %d", c.SKUs))
	}
	if c.MaxLinesPerInvoice < 1 || c.MaxQuantity < 1 {
		errs = append(errs, errors.New("line and quantity limits must be positive"))
	}
	if c.End.Before(c.Start) {
		errs = append(errs, errors.New("end date is before start date"))
	}
	return errors.Join(errs...)
}

// Generate returns the order lines for cfg. The same config always yields the same lines.
func Generate(cfg Config) ([]models.OrderLine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}

	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	days := int(cfg.End.Sub(cfg.Start).Hours()/24) + 1

	lines := make([]models.OrderLine, 0, cfg.Invoices*(cfg.MaxLinesPerInvoice+1)/2)
	for inv := range cfg.Invoices {
		invoiceNo := fmt.Sprintf("INV%07d", inv)
		date := cfg.Start.AddDate(0, 0, r.IntN(days))
		customerID := fmt.Sprintf("C%06d", 1+r.IntN(cfg.Customers))
		country := Countries[r.IntN(len(Countries))]

		for range 1 + r.IntN(cfg.MaxLinesPerInvoice) {
			sku := 1 + r.IntN(cfg.SKUs)
			lines = append(lines, models.OrderLine{
				InvoiceNo:   invoiceNo,
				InvoiceDate: date,
				CustomerID:  customerID,
				Country:     country,
				StockCode:   fmt.Sprintf("SKU%05d", sku),
				Description: fmt.Sprintf("Product %d", sku),
				Quantity:    1 + r.IntN(cfg.MaxQuantity),
				UnitPrice:   math.Round((1+r.Float64()*99)*100) / 100,
			})
		}
	}
	return lines, nil
}
