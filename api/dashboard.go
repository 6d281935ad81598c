package api

import (
	"sort"

	"prfmonitor/config"
	"prfmonitor/database"
	"prfmonitor/models"
	"prfmonitor/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dashboardTopN = 5

// DashboardHandler overview statistics
type DashboardHandler struct {
	cfg *config.Config
}

// NewDashboardHandler creates the handler.
func NewDashboardHandler(cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{cfg: cfg}
}

// PRFStatusStat PRF count and amounts for one status
type PRFStatusStat struct {
	Status    string          `json:"status"`
	Count     int64           `json:"count"`
	Requested decimal.Decimal `json:"requested"`
	Approved  decimal.Decimal `json:"approved"`
}

// DashboardStats dashboard payload
type DashboardStats struct {
	FiscalYear     int                           `json:"fiscal_year"`
	TotalPRFs      int64                         `json:"total_prfs"`
	PRFsByStatus   []PRFStatusStat               `json:"prfs_by_status"`
	TotalAllocated decimal.Decimal               `json:"total_allocated"`
	TotalSpent     decimal.Decimal               `json:"total_spent"`
	TotalRemaining decimal.Decimal               `json:"total_remaining"`
	UtilizationPct decimal.Decimal               `json:"utilization_pct"`
	OverBudget     int                           `json:"over_budget"`
	NearLimit      int                           `json:"near_limit"`
	TopUtilization []service.CostCodeUtilization `json:"top_utilization"`
}

// TopByUtilization the n lines with the highest utilization, ties broken by code.
func TopByUtilization(rows []service.CostCodeUtilization, n int) []service.CostCodeUtilization {
	sorted := make([]service.CostCodeUtilization, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].UtilizationPct.Cmp(sorted[j].UtilizationPct); c != 0 {
			return c > 0
		}
		return sorted[i].COACode < sorted[j].COACode
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Stats dashboard statistics
// @Summary Dashboard statistics
// @Description PRF counts and amounts by status, budget totals, top cost codes by utilization
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year, defaults to the current year"
// @Success 200 {object} Response{data=DashboardStats}
// @Router /api/dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	year, ok := fiscalYear(c, "fiscal_year")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var byStatus []PRFStatusStat
	if err := database.DB.WithContext(ctx).Model(&models.PRF{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(requested_amount), 0) AS requested, COALESCE(SUM(approved_amount), 0) AS approved").
		Where("budget_year = ?", year).
		Group("status").
		Order("status").
		Scan(&byStatus).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	if byStatus == nil {
		byStatus = []PRFStatusStat{}
	}

	rows, err := service.NewUtilizationService(database.DB, h.cfg.Budget).CostCodes(ctx, year)
	if err != nil {
		ServiceError(c, err, "query failed")
		return
	}
	summary := service.Summarize(year, rows)

	stats := DashboardStats{
		FiscalYear:     year,
		PRFsByStatus:   byStatus,
		TotalAllocated: summary.TotalAllocated,
		TotalSpent:     summary.TotalSpent,
		TotalRemaining: summary.TotalRemaining,
		UtilizationPct: summary.UtilizationPct,
		OverBudget:     summary.OverBudget,
		NearLimit:      summary.NearLimit,
		TopUtilization: TopByUtilization(rows, dashboardTopN),
	}
	for _, s := range byStatus {
		stats.TotalPRFs += s.Count
	}
	Success(c, stats)
}
