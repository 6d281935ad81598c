package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{PRFStatusPending, PRFStatusApproved, true},
		{PRFStatusPending, PRFStatusCompleted, false},
		{PRFStatusOnHold, PRFStatusPending, true},
		{PRFStatusApproved, PRFStatusCompleted, true},
		{PRFStatusApproved, PRFStatusRejected, false},
		{PRFStatusRejected, PRFStatusPending, false},
		{PRFStatusCompleted, PRFStatusCancelled, false},
		{PRFStatusCancelled, PRFStatusApproved, false},
		{"Unknown", PRFStatusApproved, false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestNormalizeExpenseType(t *testing.T) {
	v, ok := NormalizeExpenseType(" capex ")
	assert.True(t, ok)
	assert.Equal(t, ExpenseTypeCAPEX, v)

	v, ok = NormalizeExpenseType("")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = NormalizeExpenseType("misc")
	assert.False(t, ok)
}

func TestNormalizeCostCode(t *testing.T) {
	assert.Equal(t, "6100-IT", NormalizeCostCode("  6100-it "))
}

func TestPRF_SpentAmount(t *testing.T) {
	p := PRF{RequestedAmount: decimal.NewFromInt(500)}
	assert.True(t, decimal.NewFromInt(500).Equal(p.SpentAmount()))

	p.ApprovedAmount = decimal.NewFromInt(450)
	assert.True(t, decimal.NewFromInt(450).Equal(p.SpentAmount()))
}

func TestItemsTotal(t *testing.T) {
	items := []PRFItem{
		{ItemName: "Laptop", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("45000.50")},
		{ItemName: "Mouse", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("350")},
	}
	total := ItemsTotal(items)
	assert.Equal(t, "91051", total.String())
	assert.Equal(t, "90001", items[0].TotalPrice.String())
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidRole(RoleApprover))
	assert.False(t, ValidRole("root"))
	assert.True(t, ValidPRFStatus(PRFStatusOnHold))
	assert.False(t, ValidPRFStatus("pending"))
	assert.True(t, ValidPriority(PriorityCritical))
	assert.False(t, ValidPriority("Urgent"))
}
