package api

import (
	"testing"

	"prfmonitor/config"
	"prfmonitor/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconcileRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewReconcileHandler(cfg)
	r := gin.New()
	r.Use(withUser(1, models.RoleAdmin))
	r.GET("/api/reconciliation/orphans", h.Orphans)
	r.GET("/api/reconciliation/mismatches", h.Mismatches)
	r.GET("/api/reconciliation/duplicate-budgets", h.DuplicateBudgets)
	r.POST("/api/reconciliation/duplicate-budgets/cleanup", h.CleanupDuplicates)
	r.GET("/api/reconciliation/missing-budgets", h.MissingBudgets)
	return r
}

func expectCostCodeUsage(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT purchase_cost_code AS cost_code.*FROM `prfs`").
		WithArgs("").
		WillReturnRows(sqlmock.NewRows([]string{"cost_code", "prf_count", "total_amount"}).
			AddRow("0000-NA", 2, "120.00").
			AddRow("6100-IT", 3, "900.00").
			AddRow(" 6100-it", 1, "50.00"))
	mock.ExpectQuery("SELECT `coa_code` FROM `chart_of_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"coa_code"}).AddRow("6100-IT"))
}

func TestReconcileHandler_Orphans(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	expectCostCodeUsage(mock)

	w := doJSON(reconcileRouter(cfg), "GET", "/api/reconciliation/orphans", "")
	assert.Equal(t, 200, w.Code)
	rows := decode(t, w)["data"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "0000-NA", row["cost_code"])
	assert.Equal(t, float64(2), row["prf_count"])
	assert.Equal(t, "120", row["total_amount"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileHandler_Mismatches(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	expectCostCodeUsage(mock)

	w := doJSON(reconcileRouter(cfg), "GET", "/api/reconciliation/mismatches", "")
	assert.Equal(t, 200, w.Code)
	rows := decode(t, w)["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "6100-IT", rows[0].(map[string]interface{})["coa_code"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileHandler_Orphans_BadYear(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

	w := doJSON(reconcileRouter(cfg), "GET", "/api/reconciliation/orphans?budget_year=1899", "")
	assert.Equal(t, 400, w.Code)
}

func TestReconcileHandler_DuplicateBudgets_Empty(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .*coa_id.*FROM `budgets`.*HAVING COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"coa_id", "fiscal_year"}))

	w := doJSON(reconcileRouter(cfg), "GET", "/api/reconciliation/duplicate-budgets", "")
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, decode(t, w)["data"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileHandler_CleanupDryRun(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

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

	w := doJSON(reconcileRouter(cfg), "POST", "/api/reconciliation/duplicate-budgets/cleanup?fiscal_year=2026&merge=true&dry_run=true", "")
	assert.Equal(t, 200, w.Code)
	resp := decode(t, w)
	assert.Contains(t, resp["message"], "dry run")
	plans := resp["data"].([]interface{})
	require.Len(t, plans, 1)
	plan := plans[0].(map[string]interface{})
	assert.Equal(t, float64(2), plan["keep_id"])
	assert.Equal(t, "1300", plan["merged_allocated"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileHandler_Cleanup_BadFlag(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

	w := doJSON(reconcileRouter(cfg), "POST", "/api/reconciliation/duplicate-budgets/cleanup?merge=maybe", "")
	assert.Equal(t, 400, w.Code)
}

func TestReconcileHandler_MissingBudgets(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("FROM prfs AS p JOIN chart_of_accounts AS c").
		WillReturnRows(sqlmock.NewRows([]string{"coa_id", "coa_code", "account_name", "fiscal_year", "prf_count", "total_amount"}).
			AddRow(8, "7100-BLD", "Buildings", 2025, 2, "4500.00"))

	w := doJSON(reconcileRouter(cfg), "GET", "/api/reconciliation/missing-budgets?fiscal_year=2025", "")
	assert.Equal(t, 200, w.Code)
	rows := decode(t, w)["data"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "7100-BLD", row["coa_code"])
	assert.Equal(t, "4500", row["total_amount"])
	require.NoError(t, mock.ExpectationsWereMet())
}
