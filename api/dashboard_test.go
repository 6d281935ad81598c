package api

import (
	"testing"

	"prfmonitor/config"
	"prfmonitor/models"
	"prfmonitor/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopByUtilization(t *testing.T) {
	rows := []service.CostCodeUtilization{
		{COACode: "A", UtilizationPct: decimal.NewFromInt(10)},
		{COACode: "C", UtilizationPct: decimal.NewFromInt(95)},
		{COACode: "B", UtilizationPct: decimal.NewFromInt(95)},
		{COACode: "D", UtilizationPct: decimal.NewFromInt(120)},
	}
	top := TopByUtilization(rows, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "D", top[0].COACode)
	assert.Equal(t, "B", top[1].COACode)
	assert.Equal(t, "C", top[2].COACode)
	assert.Equal(t, "A", rows[0].COACode, "input must not be reordered")

	assert.Len(t, TopByUtilization(rows[:1], 5), 1)
}

func TestDashboardHandler_Stats(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS count.*FROM `prfs`").
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "requested", "approved"}).
			AddRow("Approved", 3, "1500.00", "1400.00").
			AddRow("Pending", 2, "300.00", "0"))
	mock.ExpectQuery("FROM budgets AS b").
		WithArgs("Approved", "Completed", 2026, 0).
		WillReturnRows(sqlmock.NewRows(utilizationColumns).
			AddRow(1, 3, "6100-IT", "IT Supplies", "IT", "IT", "OPEX", 2026, "1000.00", "1100.00").
			AddRow(2, 8, "7100-BLD", "Buildings", "Facilities", "", "CAPEX", 2026, "3000.00", "300.00"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(2, models.RoleViewer))
	r.GET("/api/dashboard/stats", NewDashboardHandler(cfg).Stats)

	w := doJSON(r, "GET", "/api/dashboard/stats?fiscal_year=2026", "")
	assert.Equal(t, 200, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(5), data["total_prfs"])
	assert.Len(t, data["prfs_by_status"], 2)
	assert.Equal(t, "4000", data["total_allocated"])
	assert.Equal(t, "1400", data["total_spent"])
	assert.Equal(t, float64(1), data["over_budget"])
	top := data["top_utilization"].([]interface{})
	require.Len(t, top, 2)
	assert.Equal(t, "6100-IT", top[0].(map[string]interface{})["coa_code"])
	require.NoError(t, mock.ExpectationsWereMet())
}
