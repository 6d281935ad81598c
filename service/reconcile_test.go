package service

import (
	"context"
	"errors"
	"testing"

	"prfmonitor/config"
	"prfmonitor/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCostCodes(t *testing.T) {
	usages := []CostCodeUsage{
		{CostCode: "6100-IT", PRFCount: 4, TotalAmount: d("1000")},
		{CostCode: " 6200-ofs", PRFCount: 2, TotalAmount: d("250")},
		{CostCode: "9999-XX", PRFCount: 1, TotalAmount: d("75")},
	}
	orphans, mismatches := ClassifyCostCodes(usages, []string{"6100-IT", "6200-OFS"})

	require.Len(t, orphans, 1)
	assert.Equal(t, "9999-XX", orphans[0].CostCode)

	require.Len(t, mismatches, 1)
	assert.Equal(t, " 6200-ofs", mismatches[0].PRFCostCode)
	assert.Equal(t, "6200-OFS", mismatches[0].COACode)
	assert.Equal(t, int64(2), mismatches[0].PRFCount)
}

func TestClassifyCostCodes_Empty(t *testing.T) {
	orphans, mismatches := ClassifyCostCodes(nil, nil)
	assert.NotNil(t, orphans)
	assert.NotNil(t, mismatches)
	assert.Empty(t, orphans)
	assert.Empty(t, mismatches)
}

func TestGroupDuplicateBudgets(t *testing.T) {
	it := &models.ChartOfAccount{ID: 3, COACode: "6100-IT"}
	ofs := &models.ChartOfAccount{ID: 1, COACode: "6200-OFS"}
	budgets := []models.Budget{
		{ID: 9, COAID: 1, FiscalYear: 2026, COA: ofs},
		{ID: 4, COAID: 1, FiscalYear: 2026, COA: ofs},
		{ID: 5, COAID: 3, FiscalYear: 2026, COA: it},
		{ID: 2, COAID: 3, FiscalYear: 2026, COA: it},
		{ID: 6, COAID: 3, FiscalYear: 2025, COA: it},
	}
	groups := GroupDuplicateBudgets(budgets)

	require.Len(t, groups, 2)
	assert.Equal(t, "6100-IT", groups[0].COACode)
	assert.Equal(t, uint(2), groups[0].Budgets[0].ID)
	assert.Equal(t, uint(5), groups[0].Budgets[1].ID)
	assert.Equal(t, "6200-OFS", groups[1].COACode)
	assert.Equal(t, uint(4), groups[1].Budgets[0].ID)
}

func TestPlanBudgetDedup(t *testing.T) {
	groups := []DuplicateBudgetGroup{{
		COAID:      3,
		FiscalYear: 2026,
		Budgets: []models.Budget{
			{ID: 8, AllocatedAmount: d("200")},
			{ID: 2, AllocatedAmount: d("1000")},
			{ID: 5, AllocatedAmount: d("300")},
		},
	}}

	plans := PlanBudgetDedup(groups, false)
	require.Len(t, plans, 1)
	assert.Equal(t, uint(2), plans[0].KeepID)
	assert.Equal(t, []uint{5, 8}, plans[0].RemoveIDs)
	assert.Equal(t, "1000", plans[0].MergedAllocated.String())

	plans = PlanBudgetDedup(groups, true)
	assert.Equal(t, "1000", plans[0].KeptAllocated.String())
	assert.Equal(t, "1500", plans[0].MergedAllocated.String())

	// input order is left alone
	assert.Equal(t, uint(8), groups[0].Budgets[0].ID)
}

func TestReconciliationReport_IssueCount(t *testing.T) {
	r := &ReconciliationReport{}
	assert.False(t, r.HasFindings())

	r.Orphans = []CostCodeUsage{{CostCode: "X"}}
	r.MissingBudgets = []MissingBudget{{COACode: "Y"}, {COACode: "Z"}}
	assert.Equal(t, 3, r.IssueCount())
	assert.True(t, r.HasFindings())
}

func TestReconcileService_CostCodeIssues(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewReconcileService(db, NewUtilizationService(db, config.BudgetConfig{}))

	mock.ExpectQuery("SELECT purchase_cost_code AS cost_code.*FROM `prfs`.*GROUP BY `purchase_cost_code`").
		WithArgs("", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"cost_code", "prf_count", "total_amount"}).
			AddRow("6100-IT", 3, "900.00").
			AddRow("6100-it", 1, "50.00").
			AddRow("0000-NA", 2, "120.00"))
	mock.ExpectQuery("SELECT `coa_code` FROM `chart_of_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"coa_code"}).AddRow("6100-IT"))

	orphans, mismatches, err := svc.CostCodeIssues(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "0000-NA", orphans[0].CostCode)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "6100-it", mismatches[0].PRFCostCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileService_DuplicateBudgets_None(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewReconcileService(db, NewUtilizationService(db, config.BudgetConfig{}))

	mock.ExpectQuery("SELECT .*coa_id.*FROM `budgets`.*HAVING COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"coa_id", "fiscal_year"}))

	groups, err := svc.DuplicateBudgets(context.Background(), 2026)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileService_CleanupDuplicates_DryRun(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewReconcileService(db, NewUtilizationService(db, config.BudgetConfig{}))

	mock.ExpectQuery("SELECT .*coa_id.*FROM `budgets`.*GROUP BY").
		WillReturnRows(sqlmock.NewRows([]string{"coa_id", "fiscal_year"}).AddRow(3, 2026))
	mock.ExpectQuery("SELECT \\* FROM `budgets` WHERE coa_id IN").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_id", "fiscal_year", "allocated_amount", "utilized_amount"}).
			AddRow(2, 3, 2026, "1000.00", "0").
			AddRow(5, 3, 2026, "300.00", "0").
			AddRow(6, 3, 2025, "50.00", "0"))
	mock.ExpectQuery("SELECT \\* FROM `chart_of_accounts` WHERE `chart_of_accounts`.`id` = ").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_code", "account_name"}).AddRow(3, "6100-IT", "IT Supplies"))

	plans, err := svc.CleanupDuplicates(context.Background(), 2026, true, true)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, uint(2), plans[0].KeepID)
	assert.Equal(t, []uint{5}, plans[0].RemoveIDs)
	assert.Equal(t, "1300", plans[0].MergedAllocated.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileService_CleanupDuplicates_Merge(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewReconcileService(db, NewUtilizationService(db, config.BudgetConfig{}))

	mock.ExpectQuery("SELECT .*coa_id.*FROM `budgets`.*GROUP BY").
		WillReturnRows(sqlmock.NewRows([]string{"coa_id", "fiscal_year"}).AddRow(3, 2026))
	mock.ExpectQuery("SELECT \\* FROM `budgets` WHERE coa_id IN").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_id", "fiscal_year", "allocated_amount", "utilized_amount"}).
			AddRow(2, 3, 2026, "1000.00", "0").
			AddRow(5, 3, 2026, "300.00", "0").
			AddRow(8, 3, 2026, "200.00", "0"))
	mock.ExpectQuery("SELECT \\* FROM `chart_of_accounts` WHERE `chart_of_accounts`.`id` = ").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_code", "account_name"}).AddRow(3, "6100-IT", "IT Supplies"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `allocated_amount`=\\?,`updated_at`=\\? WHERE id = \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `budgets` WHERE id IN \\(\\?,\\?\\)").
		WithArgs(5, 8).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	plans, err := svc.CleanupDuplicates(context.Background(), 2026, true, false)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, uint(2), plans[0].KeepID)
	assert.Equal(t, []uint{5, 8}, plans[0].RemoveIDs)
	assert.Equal(t, "1500", plans[0].MergedAllocated.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileService_CleanupDuplicates_RollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewReconcileService(db, NewUtilizationService(db, config.BudgetConfig{}))

	mock.ExpectQuery("SELECT .*coa_id.*FROM `budgets`.*GROUP BY").
		WillReturnRows(sqlmock.NewRows([]string{"coa_id", "fiscal_year"}).AddRow(3, 2026))
	mock.ExpectQuery("SELECT \\* FROM `budgets` WHERE coa_id IN").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_id", "fiscal_year", "allocated_amount", "utilized_amount"}).
			AddRow(2, 3, 2026, "1000.00", "0").
			AddRow(5, 3, 2026, "300.00", "0"))
	mock.ExpectQuery("SELECT \\* FROM `chart_of_accounts`").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_code"}).AddRow(3, "6100-IT"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `budgets` WHERE id IN").
		WithArgs(5).
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := svc.CleanupDuplicates(context.Background(), 2026, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup duplicate budgets")
	require.NoError(t, mock.ExpectationsWereMet())
}
