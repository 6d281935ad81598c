package models

import (
	"strings"
	"time"
)

// Expense types applied to accounts
const (
	ExpenseTypeCAPEX = "CAPEX"
	ExpenseTypeOPEX  = "OPEX"
)

// ChartOfAccount cost-code registry entry
type ChartOfAccount struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	COACode     string    `json:"coa_code" gorm:"column:coa_code;size:50;not null;uniqueIndex"`
	AccountName string    `json:"account_name" gorm:"size:200;not null"`
	Description string    `json:"description" gorm:"size:500"`
	Category    string    `json:"category" gorm:"size:100;index"`
	Department  string    `json:"department" gorm:"size:100;index"`
	ExpenseType string    `json:"expense_type" gorm:"size:10;index"` // CAPEX / OPEX
	IsActive    bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName table name
func (ChartOfAccount) TableName() string {
	return "chart_of_accounts"
}

// NormalizeExpenseType upper-cases t and reports whether it is CAPEX or OPEX.
// An empty value is accepted and stays empty.
func NormalizeExpenseType(t string) (string, bool) {
	t = strings.ToUpper(strings.TrimSpace(t))
	switch t {
	case "", ExpenseTypeCAPEX, ExpenseTypeOPEX:
		return t, true
	}
	return t, false
}

// NormalizeCostCode trims and upper-cases a cost code for comparison.
// Stored codes keep their original case; this is only used for reconciliation.
func NormalizeCostCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
