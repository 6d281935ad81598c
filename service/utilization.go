package service

import (
	"context"
	"fmt"

	"prfmonitor/config"
	"prfmonitor/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Utilization bands
const (
	UtilizationUnder = "under"
	UtilizationNear  = "near"
	UtilizationOver  = "over"
)

var hundred = decimal.NewFromInt(100)

// spentExpr is the amount a spending PRF charges: approved if set, else requested.
const spentExpr = "COALESCE(SUM(CASE WHEN p.approved_amount > 0 THEN p.approved_amount ELSE p.requested_amount END), 0)"

// CostCodeUtilization one budget line with its spending.
type CostCodeUtilization struct {
	BudgetID       uint            `json:"budget_id"`
	COAID          uint            `json:"coa_id" gorm:"column:coa_id"`
	COACode        string          `json:"coa_code" gorm:"column:coa_code"`
	AccountName    string          `json:"account_name"`
	Category       string          `json:"category"`
	Department     string          `json:"department"`
	ExpenseType    string          `json:"expense_type"`
	FiscalYear     int             `json:"fiscal_year"`
	Allocated      decimal.Decimal `json:"allocated"`
	Spent          decimal.Decimal `json:"spent"`
	Remaining      decimal.Decimal `json:"remaining" gorm:"-"`
	UtilizationPct decimal.Decimal `json:"utilization_pct" gorm:"-"`
	Status         string          `json:"status" gorm:"-"`
}

// UtilizationPercent spent/allocated*100 rounded to 2 places; zero allocation yields zero.
func UtilizationPercent(spent, allocated decimal.Decimal) decimal.Decimal {
	if !allocated.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(allocated).Mul(hundred).Round(2)
}

// ClassifyUtilization maps a percentage onto under/near/over.
func ClassifyUtilization(pct, threshold decimal.Decimal) string {
	switch {
	case pct.GreaterThan(hundred):
		return UtilizationOver
	case pct.GreaterThanOrEqual(threshold):
		return UtilizationNear
	}
	return UtilizationUnder
}

// Finalize fills the derived fields from Allocated and Spent.
func (u *CostCodeUtilization) Finalize(threshold decimal.Decimal) {
	u.Remaining = u.Allocated.Sub(u.Spent)
	u.UtilizationPct = UtilizationPercent(u.Spent, u.Allocated)
	u.Status = ClassifyUtilization(u.UtilizationPct, threshold)
}

// BreakdownEntry totals for one category or expense type.
type BreakdownEntry struct {
	Key            string          `json:"key"`
	Lines          int             `json:"lines"`
	Allocated      decimal.Decimal `json:"allocated"`
	Spent          decimal.Decimal `json:"spent"`
	Remaining      decimal.Decimal `json:"remaining"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
}

// BudgetSummary totals over a set of utilization lines.
type BudgetSummary struct {
	FiscalYear     int              `json:"fiscal_year"`
	Lines          int              `json:"lines"`
	TotalAllocated decimal.Decimal  `json:"total_allocated"`
	TotalSpent     decimal.Decimal  `json:"total_spent"`
	TotalRemaining decimal.Decimal  `json:"total_remaining"`
	UtilizationPct decimal.Decimal  `json:"utilization_pct"`
	OverBudget     int              `json:"over_budget"`
	NearLimit      int              `json:"near_limit"`
	ByCategory     []BreakdownEntry `json:"by_category"`
	ByExpenseType  []BreakdownEntry `json:"by_expense_type"`
}

// Summarize aggregates utilization lines. Breakdown order follows first appearance.
func Summarize(year int, rows []CostCodeUtilization) BudgetSummary {
	s := BudgetSummary{FiscalYear: year, Lines: len(rows)}
	byCat := newBreakdown()
	byType := newBreakdown()
	for _, r := range rows {
		s.TotalAllocated = s.TotalAllocated.Add(r.Allocated)
		s.TotalSpent = s.TotalSpent.Add(r.Spent)
		switch r.Status {
		case UtilizationOver:
			s.OverBudget++
		case UtilizationNear:
			s.NearLimit++
		}
		byCat.add(keyOr(r.Category, "Uncategorized"), r)
		byType.add(keyOr(r.ExpenseType, "Unclassified"), r)
	}
	s.TotalRemaining = s.TotalAllocated.Sub(s.TotalSpent)
	s.UtilizationPct = UtilizationPercent(s.TotalSpent, s.TotalAllocated)
	s.ByCategory = byCat.entries()
	s.ByExpenseType = byType.entries()
	return s
}

func keyOr(k, fallback string) string {
	if k == "" {
		return fallback
	}
	return k
}

type breakdown struct {
	order []string
	m     map[string]*BreakdownEntry
}

func newBreakdown() *breakdown {
	return &breakdown{m: make(map[string]*BreakdownEntry)}
}

func (b *breakdown) add(key string, r CostCodeUtilization) {
	e, ok := b.m[key]
	if !ok {
		e = &BreakdownEntry{Key: key}
		b.m[key] = e
		b.order = append(b.order, key)
	}
	e.Lines++
	e.Allocated = e.Allocated.Add(r.Allocated)
	e.Spent = e.Spent.Add(r.Spent)
}

func (b *breakdown) entries() []BreakdownEntry {
	out := make([]BreakdownEntry, 0, len(b.order))
	for _, k := range b.order {
		e := *b.m[k]
		e.Remaining = e.Allocated.Sub(e.Spent)
		e.UtilizationPct = UtilizationPercent(e.Spent, e.Allocated)
		out = append(out, e)
	}
	return out
}

// UtilizationService budget-versus-PRF aggregation
type UtilizationService struct {
	db        *gorm.DB
	threshold decimal.Decimal
}

// NewUtilizationService creates the service.
func NewUtilizationService(db *gorm.DB, cfg config.BudgetConfig) *UtilizationService {
	return &UtilizationService{db: db, threshold: cfg.WarningThresholdDecimal()}
}

// keeperCond limits PRF spend to the lowest-id budget of each (coa_id, fiscal_year).
// Legacy duplicates show their allocation with zero spend, so totals count each PRF once.
const keeperCond = "b.id = (SELECT MIN(k.id) FROM budgets AS k WHERE k.coa_id = b.coa_id AND k.fiscal_year = b.fiscal_year)"

func (s *UtilizationService) baseQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("budgets AS b").
		Select("b.id AS budget_id, b.coa_id, c.coa_code, c.account_name, c.category, c.department, c.expense_type, " +
			"b.fiscal_year, b.allocated_amount AS allocated, " + spentExpr + " AS spent").
		Joins("JOIN chart_of_accounts AS c ON c.id = b.coa_id").
		Joins("LEFT JOIN prfs AS p ON p.purchase_cost_code = c.coa_code AND p.budget_year = b.fiscal_year "+
			"AND p.status IN ? AND p.deleted_at IS NULL AND "+keeperCond, models.SpendingStatuses)
}

const utilizationGroupBy = "b.id, b.coa_id, c.coa_code, c.account_name, c.category, c.department, c.expense_type, b.fiscal_year, b.allocated_amount"

// CostCodes returns one line per budget with a positive allocation in the fiscal year.
func (s *UtilizationService) CostCodes(ctx context.Context, year int) ([]CostCodeUtilization, error) {
	var rows []CostCodeUtilization
	err := s.baseQuery(ctx).
		Where("b.fiscal_year = ? AND b.allocated_amount > ?", year, 0).
		Group(utilizationGroupBy).
		Order("c.coa_code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("cost code utilization: %w", err)
	}
	for i := range rows {
		rows[i].Finalize(s.threshold)
	}
	return rows, nil
}

// Line returns the budget line for a cost code, or nil when the code has no budget that year.
func (s *UtilizationService) Line(ctx context.Context, costCode string, year int) (*CostCodeUtilization, error) {
	var rows []CostCodeUtilization
	err := s.baseQuery(ctx).
		Where("c.coa_code = ? AND b.fiscal_year = ?", costCode, year).
		Group(utilizationGroupBy).
		Order("b.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("budget line %s/%d: %w", costCode, year, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	// duplicates are folded into the keeper line, which carries all of the spend
	line := rows[0]
	for _, r := range rows[1:] {
		line.Allocated = line.Allocated.Add(r.Allocated)
		line.Spent = line.Spent.Add(r.Spent)
	}
	line.Finalize(s.threshold)
	return &line, nil
}

// Summary aggregates CostCodes for the year.
func (s *UtilizationService) Summary(ctx context.Context, year int) (BudgetSummary, error) {
	rows, err := s.CostCodes(ctx, year)
	if err != nil {
		return BudgetSummary{}, err
	}
	return Summarize(year, rows), nil
}

// Sync stores each line's spent amount in budgets.utilized_amount and returns the number of rows changed.
func (s *UtilizationService) Sync(ctx context.Context, year int) (int, error) {
	rows, err := s.CostCodes(ctx, year)
	if err != nil {
		return 0, err
	}
	changed := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			res := tx.Model(&models.Budget{}).
				Where("id = ? AND utilized_amount <> ?", r.BudgetID, r.Spent).
				Update("utilized_amount", r.Spent)
			if res.Error != nil {
				return res.Error
			}
			changed += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sync utilization: %w", err)
	}
	return changed, nil
}

// OverrunCheck result of testing an amount against a budget line.
type OverrunCheck struct {
	Overrun   bool            `json:"overrun"`
	NoBudget  bool            `json:"no_budget"`
	Remaining decimal.Decimal `json:"remaining"`
	Projected decimal.Decimal `json:"projected"`
	Warning   string          `json:"warning,omitempty"`
}

// CheckOverrun tests whether charging amount to line would exceed its allocation.
// A nil line means the code has no budget for the year, which counts as an overrun.
func CheckOverrun(line *CostCodeUtilization, amount decimal.Decimal) OverrunCheck {
	if line == nil {
		return OverrunCheck{
			Overrun:   true,
			NoBudget:  true,
			Projected: amount,
			Remaining: decimal.Zero,
			Warning:   "no budget allocated for this cost code and year",
		}
	}
	projected := line.Spent.Add(amount)
	c := OverrunCheck{
		Remaining: line.Allocated.Sub(line.Spent),
		Projected: projected,
	}
	if projected.GreaterThan(line.Allocated) {
		c.Overrun = true
		c.Warning = fmt.Sprintf("approval exceeds budget for %s by %s",
			line.COACode, projected.Sub(line.Allocated).StringFixed(2))
	}
	return c
}
