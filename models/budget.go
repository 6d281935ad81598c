package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget allocation for one account in one fiscal year.
// At most one row per (COAID, FiscalYear) is allowed; the service enforces it.
type Budget struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	COAID           uint            `json:"coa_id" gorm:"column:coa_id;not null;index:idx_budget_coa_year"`
	FiscalYear      int             `json:"fiscal_year" gorm:"not null;index:idx_budget_coa_year"`
	Quarter         *int            `json:"quarter,omitempty"`
	Month           *int            `json:"month,omitempty"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount" gorm:"type:decimal(18,2);not null;default:0"`
	UtilizedAmount  decimal.Decimal `json:"utilized_amount" gorm:"type:decimal(18,2);not null;default:0"`
	Currency        string          `json:"currency" gorm:"size:3;default:PHP"`
	Notes           string          `json:"notes" gorm:"size:500"`
	CreatedBy       uint            `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	COA             *ChartOfAccount `json:"coa,omitempty" gorm:"foreignKey:COAID"`
}

// TableName table name
func (Budget) TableName() string {
	return "budgets"
}

// Remaining allocated minus utilized
func (b Budget) Remaining() decimal.Decimal {
	return b.AllocatedAmount.Sub(b.UtilizedAmount)
}
