package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PRF statuses
const (
	PRFStatusPending   = "Pending"
	PRFStatusApproved  = "Approved"
	PRFStatusRejected  = "Rejected"
	PRFStatusOnHold    = "On Hold"
	PRFStatusCompleted = "Completed"
	PRFStatusCancelled = "Cancelled"
)

// PRF priorities
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// SpendingStatuses are the statuses whose amounts count against a budget.
var SpendingStatuses = []string{PRFStatusApproved, PRFStatusCompleted}

var prfTransitions = map[string][]string{
	PRFStatusPending:  {PRFStatusApproved, PRFStatusRejected, PRFStatusOnHold, PRFStatusCancelled},
	PRFStatusOnHold:   {PRFStatusPending, PRFStatusApproved, PRFStatusRejected, PRFStatusCancelled},
	PRFStatusApproved: {PRFStatusCompleted, PRFStatusCancelled},
}

// ValidPRFStatus reports whether s is a known status.
func ValidPRFStatus(s string) bool {
	switch s {
	case PRFStatusPending, PRFStatusApproved, PRFStatusRejected, PRFStatusOnHold, PRFStatusCompleted, PRFStatusCancelled:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// CanTransition reports whether a PRF may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range prfTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsEditable PRFs can only be edited before a decision is made
func IsEditable(status string) bool {
	return status == PRFStatusPending || status == PRFStatusOnHold
}

// PRF purchase request form
type PRF struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	PRFNo            string          `json:"prf_no" gorm:"column:prf_no;size:50;not null;uniqueIndex"`
	DateRequested    time.Time       `json:"date_requested" gorm:"not null"`
	Department       string          `json:"department" gorm:"size:100;index"`
	RequestorName    string          `json:"requestor_name" gorm:"size:100"`
	RequestedBy      uint            `json:"requested_by" gorm:"index"`
	Vendor           string          `json:"vendor" gorm:"size:200"`
	Description      string          `json:"description" gorm:"size:1000"`
	PurchaseCostCode string          `json:"purchase_cost_code" gorm:"size:50;index"`
	BudgetYear       int             `json:"budget_year" gorm:"index"`
	RequestedAmount  decimal.Decimal `json:"requested_amount" gorm:"type:decimal(18,2);not null;default:0"`
	ApprovedAmount   decimal.Decimal `json:"approved_amount" gorm:"type:decimal(18,2);not null;default:0"`
	ActualAmount     decimal.Decimal `json:"actual_amount" gorm:"type:decimal(18,2);not null;default:0"`
	Status           string          `json:"status" gorm:"size:20;not null;default:Pending;index"`
	Priority         string          `json:"priority" gorm:"size:20;default:Medium"`
	ApprovedBy       *uint           `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	Notes            string          `json:"notes" gorm:"size:1000"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `json:"-" gorm:"index"`
	Items            []PRFItem       `json:"items,omitempty" gorm:"foreignKey:PRFID"`
}

// TableName table name
func (PRF) TableName() string {
	return "prfs"
}

// SpentAmount the amount charged against the budget: approved if set, else requested.
func (p PRF) SpentAmount() decimal.Decimal {
	if p.ApprovedAmount.IsPositive() {
		return p.ApprovedAmount
	}
	return p.RequestedAmount
}

// PRFItem line item of a PRF
type PRFItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	PRFID       uint            `json:"prf_id" gorm:"column:prf_id;index;not null"`
	ItemName    string          `json:"item_name" gorm:"size:200;not null"`
	Description string          `json:"description" gorm:"size:500"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(18,2);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,2);not null"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName table name
func (PRFItem) TableName() string {
	return "prf_items"
}

// ItemsTotal sums TotalPrice over items after recomputing each from quantity and unit price.
func ItemsTotal(items []PRFItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		items[i].TotalPrice = items[i].Quantity.Mul(items[i].UnitPrice).Round(2)
		total = total.Add(items[i].TotalPrice)
	}
	return total
}
