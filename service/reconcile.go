package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prfmonitor/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// CostCodeUsage PRF activity under one cost code string.
type CostCodeUsage struct {
	CostCode    string          `json:"cost_code"`
	PRFCount    int64           `json:"prf_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// MismatchedCode a PRF cost code that equals a COA code only after trimming and upper-casing.
type MismatchedCode struct {
	PRFCostCode string          `json:"prf_cost_code"`
	COACode     string          `json:"coa_code"`
	PRFCount    int64           `json:"prf_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// DuplicateBudgetGroup budgets sharing an account and fiscal year.
type DuplicateBudgetGroup struct {
	COAID      uint            `json:"coa_id"`
	COACode    string          `json:"coa_code"`
	FiscalYear int             `json:"fiscal_year"`
	Budgets    []models.Budget `json:"budgets"`
}

// DedupPlan what cleanup does to one duplicate group.
type DedupPlan struct {
	COAID           uint            `json:"coa_id"`
	FiscalYear      int             `json:"fiscal_year"`
	KeepID          uint            `json:"keep_id"`
	RemoveIDs       []uint          `json:"remove_ids"`
	KeptAllocated   decimal.Decimal `json:"kept_allocated"`
	MergedAllocated decimal.Decimal `json:"merged_allocated"`
}

// MissingBudget an account charged by PRFs in a year it has no budget for.
type MissingBudget struct {
	COAID       uint            `json:"coa_id" gorm:"column:coa_id"`
	COACode     string          `json:"coa_code" gorm:"column:coa_code"`
	AccountName string          `json:"account_name"`
	FiscalYear  int             `json:"fiscal_year"`
	PRFCount    int64           `json:"prf_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ReconciliationReport all findings for one fiscal year.
type ReconciliationReport struct {
	FiscalYear       int                    `json:"fiscal_year"`
	GeneratedAt      time.Time              `json:"generated_at"`
	Orphans          []CostCodeUsage        `json:"orphans"`
	Mismatches       []MismatchedCode       `json:"mismatches"`
	DuplicateBudgets []DuplicateBudgetGroup `json:"duplicate_budgets"`
	MissingBudgets   []MissingBudget        `json:"missing_budgets"`
	OverBudget       []CostCodeUtilization  `json:"over_budget"`
}

// IssueCount total number of findings.
func (r *ReconciliationReport) IssueCount() int {
	return len(r.Orphans) + len(r.Mismatches) + len(r.DuplicateBudgets) + len(r.MissingBudgets) + len(r.OverBudget)
}

// HasFindings reports whether anything needs attention.
func (r *ReconciliationReport) HasFindings() bool {
	return r.IssueCount() > 0
}

// ClassifyCostCodes splits PRF cost codes into orphans (no COA code at all) and
// mismatches (equal to a COA code only after normalization). Exact matches are dropped.
func ClassifyCostCodes(usages []CostCodeUsage, coaCodes []string) (orphans []CostCodeUsage, mismatches []MismatchedCode) {
	exact := make(map[string]bool, len(coaCodes))
	normalized := make(map[string]string, len(coaCodes))
	for _, c := range coaCodes {
		exact[c] = true
		n := models.NormalizeCostCode(c)
		if _, ok := normalized[n]; !ok {
			normalized[n] = c
		}
	}
	orphans = []CostCodeUsage{}
	mismatches = []MismatchedCode{}
	for _, u := range usages {
		if exact[u.CostCode] {
			continue
		}
		if coa, ok := normalized[models.NormalizeCostCode(u.CostCode)]; ok {
			mismatches = append(mismatches, MismatchedCode{
				PRFCostCode: u.CostCode,
				COACode:     coa,
				PRFCount:    u.PRFCount,
				TotalAmount: u.TotalAmount,
			})
			continue
		}
		orphans = append(orphans, u)
	}
	return orphans, mismatches
}

type budgetKey struct {
	coaID uint
	year  int
}

// GroupDuplicateBudgets groups budgets by (COAID, FiscalYear) and keeps groups with more than one row.
// Groups are ordered by account code then year; rows within a group by id.
func GroupDuplicateBudgets(budgets []models.Budget) []DuplicateBudgetGroup {
	groups := make(map[budgetKey][]models.Budget)
	for _, b := range budgets {
		k := budgetKey{b.COAID, b.FiscalYear}
		groups[k] = append(groups[k], b)
	}
	out := []DuplicateBudgetGroup{}
	for k, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		g := DuplicateBudgetGroup{COAID: k.coaID, FiscalYear: k.year, Budgets: rows}
		if rows[0].COA != nil {
			g.COACode = rows[0].COA.COACode
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].COACode != out[j].COACode {
			return out[i].COACode < out[j].COACode
		}
		if out[i].COAID != out[j].COAID {
			return out[i].COAID < out[j].COAID
		}
		return out[i].FiscalYear < out[j].FiscalYear
	})
	return out
}

// PlanBudgetDedup keeps the lowest id of each group. With merge the keeper's
// allocation becomes the sum of the group.
func PlanBudgetDedup(groups []DuplicateBudgetGroup, merge bool) []DedupPlan {
	plans := make([]DedupPlan, 0, len(groups))
	for _, g := range groups {
		if len(g.Budgets) < 2 {
			continue
		}
		rows := append([]models.Budget(nil), g.Budgets...)
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		keeper := rows[0]
		p := DedupPlan{
			COAID:           g.COAID,
			FiscalYear:      g.FiscalYear,
			KeepID:          keeper.ID,
			KeptAllocated:   keeper.AllocatedAmount,
			MergedAllocated: keeper.AllocatedAmount,
		}
		for _, r := range rows[1:] {
			p.RemoveIDs = append(p.RemoveIDs, r.ID)
			if merge {
				p.MergedAllocated = p.MergedAllocated.Add(r.AllocatedAmount)
			}
		}
		plans = append(plans, p)
	}
	return plans
}

// ReconcileService detects orphaned, duplicate and missing mappings between budgets, accounts and PRFs.
type ReconcileService struct {
	db          *gorm.DB
	utilization *UtilizationService
}

// NewReconcileService creates the service.
func NewReconcileService(db *gorm.DB, utilization *UtilizationService) *ReconcileService {
	return &ReconcileService{db: db, utilization: utilization}
}

// CostCodeUsage groups non-deleted PRFs by their cost code string. year 0 means all years.
func (s *ReconcileService) CostCodeUsage(ctx context.Context, year int) ([]CostCodeUsage, error) {
	q := s.db.WithContext(ctx).Model(&models.PRF{}).
		Select("purchase_cost_code AS cost_code, COUNT(*) AS prf_count, COALESCE(SUM(requested_amount), 0) AS total_amount").
		Where("purchase_cost_code IS NOT NULL AND purchase_cost_code <> ?", "")
	if year > 0 {
		q = q.Where("budget_year = ?", year)
	}
	var usages []CostCodeUsage
	if err := q.Group("purchase_cost_code").Order("purchase_cost_code").Scan(&usages).Error; err != nil {
		return nil, fmt.Errorf("cost code usage: %w", err)
	}
	return usages, nil
}

func (s *ReconcileService) coaCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := s.db.WithContext(ctx).Model(&models.ChartOfAccount{}).Pluck("coa_code", &codes).Error; err != nil {
		return nil, fmt.Errorf("load coa codes: %w", err)
	}
	return codes, nil
}

// CostCodeIssues returns orphaned and mismatched PRF cost codes.
func (s *ReconcileService) CostCodeIssues(ctx context.Context, year int) ([]CostCodeUsage, []MismatchedCode, error) {
	usages, err := s.CostCodeUsage(ctx, year)
	if err != nil {
		return nil, nil, err
	}
	codes, err := s.coaCodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	orphans, mismatches := ClassifyCostCodes(usages, codes)
	return orphans, mismatches, nil
}

// DuplicateBudgets finds (coa_id, fiscal_year) pairs holding more than one budget. year 0 means all years.
func (s *ReconcileService) DuplicateBudgets(ctx context.Context, year int) ([]DuplicateBudgetGroup, error) {
	type dupKey struct {
		COAID      uint `gorm:"column:coa_id"`
		FiscalYear int
	}
	q := s.db.WithContext(ctx).Model(&models.Budget{}).
		Select("coa_id, fiscal_year").
		Group("coa_id, fiscal_year").
		Having("COUNT(*) > ?", 1)
	if year > 0 {
		q = q.Where("fiscal_year = ?", year)
	}
	var keys []dupKey
	if err := q.Scan(&keys).Error; err != nil {
		return nil, fmt.Errorf("duplicate budget keys: %w", err)
	}
	if len(keys) == 0 {
		return []DuplicateBudgetGroup{}, nil
	}

	coaIDs := make([]uint, 0, len(keys))
	wanted := make(map[budgetKey]bool, len(keys))
	for _, k := range keys {
		coaIDs = append(coaIDs, k.COAID)
		wanted[budgetKey{k.COAID, k.FiscalYear}] = true
	}
	var budgets []models.Budget
	if err := s.db.WithContext(ctx).Preload("COA").
		Where("coa_id IN ?", coaIDs).
		Order("id").
		Find(&budgets).Error; err != nil {
		return nil, fmt.Errorf("load duplicate budgets: %w", err)
	}
	filtered := budgets[:0]
	for _, b := range budgets {
		if wanted[budgetKey{b.COAID, b.FiscalYear}] {
			filtered = append(filtered, b)
		}
	}
	return GroupDuplicateBudgets(filtered), nil
}

// CleanupDuplicates applies PlanBudgetDedup. With dryRun nothing is written.
func (s *ReconcileService) CleanupDuplicates(ctx context.Context, year int, merge, dryRun bool) ([]DedupPlan, error) {
	groups, err := s.DuplicateBudgets(ctx, year)
	if err != nil {
		return nil, err
	}
	plans := PlanBudgetDedup(groups, merge)
	if dryRun || len(plans) == 0 {
		return plans, nil
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range plans {
			if merge && !p.MergedAllocated.Equal(p.KeptAllocated) {
				if err := tx.Model(&models.Budget{}).Where("id = ?", p.KeepID).
					Update("allocated_amount", p.MergedAllocated).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ?", p.RemoveIDs).Delete(&models.Budget{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup duplicate budgets: %w", err)
	}
	return plans, nil
}

// MissingBudgets lists accounts that PRFs charge in year without a budget row for that year.
func (s *ReconcileService) MissingBudgets(ctx context.Context, year int) ([]MissingBudget, error) {
	var rows []MissingBudget
	err := s.db.WithContext(ctx).
		Table("prfs AS p").
		Select("c.id AS coa_id, c.coa_code, c.account_name, p.budget_year AS fiscal_year, "+
			"COUNT(p.id) AS prf_count, COALESCE(SUM(p.requested_amount), 0) AS total_amount").
		Joins("JOIN chart_of_accounts AS c ON c.coa_code = p.purchase_cost_code").
		Joins("LEFT JOIN budgets AS b ON b.coa_id = c.id AND b.fiscal_year = p.budget_year").
		Where("p.budget_year = ? AND p.deleted_at IS NULL AND b.id IS NULL", year).
		Where("p.status NOT IN ?", []string{models.PRFStatusRejected, models.PRFStatusCancelled}).
		Group("c.id, c.coa_code, c.account_name, p.budget_year").
		Order("c.coa_code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("missing budgets: %w", err)
	}
	if rows == nil {
		rows = []MissingBudget{}
	}
	return rows, nil
}

// OverBudget lines whose spending exceeds their allocation.
func (s *ReconcileService) OverBudget(ctx context.Context, year int) ([]CostCodeUtilization, error) {
	rows, err := s.utilization.CostCodes(ctx, year)
	if err != nil {
		return nil, err
	}
	over := []CostCodeUtilization{}
	for _, r := range rows {
		if r.Status == UtilizationOver {
			over = append(over, r)
		}
	}
	return over, nil
}

// Report runs every check for the fiscal year concurrently.
func (s *ReconcileService) Report(ctx context.Context, year int) (*ReconciliationReport, error) {
	report := &ReconciliationReport{FiscalYear: year, GeneratedAt: time.Now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orphans, mismatches, err := s.CostCodeIssues(gctx, year)
		if err != nil {
			return err
		}
		report.Orphans, report.Mismatches = orphans, mismatches
		return nil
	})
	g.Go(func() error {
		dups, err := s.DuplicateBudgets(gctx, year)
		if err != nil {
			return err
		}
		report.DuplicateBudgets = dups
		return nil
	})
	g.Go(func() error {
		missing, err := s.MissingBudgets(gctx, year)
		if err != nil {
			return err
		}
		report.MissingBudgets = missing
		return nil
	})
	g.Go(func() error {
		over, err := s.OverBudget(gctx, year)
		if err != nil {
			return err
		}
		report.OverBudget = over
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
