package domain

import "github.com/shopspring/decimal"

// PaymentStats aggregates payments created within a reporting period.
type PaymentStats struct {
	Pending         int64           `json:"pending"`
	Completed       int64           `json:"completed"`
	Failed          int64           `json:"failed"`
	CompletedVolume decimal.Decimal `json:"completed_volume"` // SOL
}

// SweepStats aggregates sweep attempts within a reporting period.
type SweepStats struct {
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	SweptLamports int64 `json:"swept_lamports"`
}

// LedgerStats is the operator report for one period.
type LedgerStats struct {
	Period   string       `json:"period"`
	Payments PaymentStats `json:"payments"`
	Sweeps   SweepStats   `json:"sweeps"`
}
