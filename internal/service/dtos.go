package service

import "time"

// RunSummary describes one completed scoring run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Customers int           `json:"customers"`
	Inserted  int64         `json:"inserted"`
	AvgChurn  float64       `json:"avg_churn"`
	AvgCLV    float64       `json:"avg_clv"`
	MinCLV    float64       `json:"min_clv"`
	MaxCLV    float64       `json:"max_clv"`
	Duration  time.Duration `json:"duration"`
}

type FilterOptions struct {
	MinDate   string   `json:"min_date"`
	MaxDate   string   `json:"max_date"`
	Countries []string `json:"countries"`
	Segments  []string `json:"segments"`
}

type MonthlyPoint struct {
	Month           string  `json:"month"`
	ActiveCustomers int64   `json:"active_customers"`
	Orders          int64   `json:"orders"`
	Revenue         float64 `json:"revenue"`
	RepeatRate      float64 `json:"repeat_rate"`
}

type Overview struct {
	Months           []MonthlyPoint `json:"months"`
	TotalRevenue     float64        `json:"total_revenue"`
	TotalOrders      int64          `json:"total_orders"`
	AvgMonthlyActive int64          `json:"avg_monthly_active"`
	Empty            bool           `json:"empty"`
	Message          string         `json:"message,omitempty"`
}

type SegmentPoint struct {
	Segment   string  `json:"segment"`
	Revenue   float64 `json:"revenue"`
	Customers int64   `json:"customers"`
}

type Segments struct {
	Segments []SegmentPoint `json:"segments"`
	Empty    bool           `json:"empty"`
	Message  string         `json:"message,omitempty"`
}

type RiskCustomer struct {
	CustomerID      string  `json:"customer_id"`
	Country         string  `json:"country"`
	Segment         string  `json:"segment"`
	MonetaryRevenue float64 `json:"monetary_revenue"`
	ChurnProb       float64 `json:"churn_prob"`
	CLV             float64 `json:"clv"`
	PriorityScore   float64 `json:"priority_score"`
}

// RiskValue holds every customer matching the risk filter plus the top of that list.
type RiskValue struct {
	PredictionsAvailable bool           `json:"predictions_available"`
	Customers            []RiskCustomer `json:"customers"`
	Top                  []RiskCustomer `json:"top"`
	Empty                bool           `json:"empty"`
	Message              string         `json:"message,omitempty"`
}

type Customer struct {
	CustomerID      string   `json:"customer_id"`
	Country         string   `json:"country"`
	Segment         string   `json:"segment"`
	RecencyDays     float64  `json:"recency_days"`
	FrequencyOrders float64  `json:"frequency_orders"`
	MonetaryRevenue float64  `json:"monetary_revenue"`
	AvgOrderValue   float64  `json:"avg_order_value"`
	FirstOrderDate  string   `json:"first_order_date,omitempty"`
	LastOrderDate   string   `json:"last_order_date,omitempty"`
	ChurnProb       *float64 `json:"churn_prob,omitempty"`
	CLV             *float64 `json:"clv,omitempty"`
}

type CustomerList struct {
	Customers []Customer `json:"customers"`
	Empty     bool       `json:"empty"`
	Message   string     `json:"message,omitempty"`
}
