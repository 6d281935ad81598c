package api

import (
	"strconv"

	"prfmonitor/config"
	"prfmonitor/database"
	"prfmonitor/logger"
	"prfmonitor/middleware"
	"prfmonitor/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReconcileHandler consistency checks between PRFs, budgets and the chart of accounts
type ReconcileHandler struct {
	cfg *config.Config
}

// NewReconcileHandler creates the handler.
func NewReconcileHandler(cfg *config.Config) *ReconcileHandler {
	return &ReconcileHandler{cfg: cfg}
}

func (h *ReconcileHandler) svc() *service.ReconcileService {
	return service.NewReconcileService(database.DB, service.NewUtilizationService(database.DB, h.cfg.Budget))
}

// optionalYear reads a year filter; absent means all years (0).
func optionalYear(c *gin.Context, name string) (int, bool) {
	if c.Query(name) == "" {
		return 0, true
	}
	return fiscalYear(c, name)
}

// Orphans PRF cost codes with no chart of accounts entry
// @Summary Orphaned PRF cost codes
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param budget_year query int false "budget year, all years when omitted"
// @Success 200 {object} Response{data=[]service.CostCodeUsage}
// @Router /api/reconciliation/orphans [get]
func (h *ReconcileHandler) Orphans(c *gin.Context) {
	year, ok := optionalYear(c, "budget_year")
	if !ok {
		return
	}
	orphans, _, err := h.svc().CostCodeIssues(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "reconciliation failed")
		return
	}
	if orphans == nil {
		orphans = []service.CostCodeUsage{}
	}
	Success(c, orphans)
}

// Mismatches PRF cost codes differing from a COA code only by case or whitespace
// @Summary Mismatched cost codes
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param budget_year query int false "budget year, all years when omitted"
// @Success 200 {object} Response{data=[]service.MismatchedCode}
// @Router /api/reconciliation/mismatches [get]
func (h *ReconcileHandler) Mismatches(c *gin.Context) {
	year, ok := optionalYear(c, "budget_year")
	if !ok {
		return
	}
	_, mismatches, err := h.svc().CostCodeIssues(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "reconciliation failed")
		return
	}
	if mismatches == nil {
		mismatches = []service.MismatchedCode{}
	}
	Success(c, mismatches)
}

// DuplicateBudgets budgets sharing an account and fiscal year
// @Summary Duplicate budgets
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year, all years when omitted"
// @Success 200 {object} Response{data=[]service.DuplicateBudgetGroup}
// @Router /api/reconciliation/duplicate-budgets [get]
func (h *ReconcileHandler) DuplicateBudgets(c *gin.Context) {
	year, ok := optionalYear(c, "fiscal_year")
	if !ok {
		return
	}
	groups, err := h.svc().DuplicateBudgets(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "reconciliation failed")
		return
	}
	Success(c, groups)
}

// CleanupDuplicates keeps the lowest id of each duplicate group
// @Summary Remove duplicate budgets
// @Description merge=true adds removed allocations into the kept budget. dry_run=true only returns the plan.
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year, all years when omitted"
// @Param merge query bool false "merge allocations"
// @Param dry_run query bool false "report only"
// @Success 200 {object} Response{data=[]service.DedupPlan}
// @Router /api/reconciliation/duplicate-budgets/cleanup [post]
func (h *ReconcileHandler) CleanupDuplicates(c *gin.Context) {
	year, ok := optionalYear(c, "fiscal_year")
	if !ok {
		return
	}
	merge, err1 := strconv.ParseBool(c.DefaultQuery("merge", "false"))
	dryRun, err2 := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	if err1 != nil || err2 != nil {
		BadRequest(c, "merge and dry_run must be true or false")
		return
	}

	plans, err := h.svc().CleanupDuplicates(c.Request.Context(), year, merge, dryRun)
	if err != nil {
		ServiceError(c, err, "cleanup failed")
		return
	}
	if !dryRun && len(plans) > 0 {
		logger.L.Info("duplicate budgets removed",
			zap.Int("groups", len(plans)),
			zap.Bool("merge", merge),
			zap.String("by", middleware.GetCurrentUsername(c)))
	}
	message := "duplicates removed"
	if dryRun {
		message = "dry run, nothing changed"
	}
	SuccessWithMessage(c, message, plans)
}

// MissingBudgets accounts charged by PRFs without a budget for the year
// @Summary Missing budgets
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year, defaults to the current year"
// @Success 200 {object} Response{data=[]service.MissingBudget}
// @Router /api/reconciliation/missing-budgets [get]
func (h *ReconcileHandler) MissingBudgets(c *gin.Context) {
	year, ok := fiscalYear(c, "fiscal_year")
	if !ok {
		return
	}
	rows, err := h.svc().MissingBudgets(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "reconciliation failed")
		return
	}
	Success(c, rows)
}

// Report every reconciliation check for one fiscal year
// @Summary Reconciliation report
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year, defaults to the current year"
// @Success 200 {object} Response{data=service.ReconciliationReport}
// @Router /api/reconciliation/report [get]
func (h *ReconcileHandler) Report(c *gin.Context) {
	year, ok := fiscalYear(c, "fiscal_year")
	if !ok {
		return
	}
	report, err := h.svc().Report(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "reconciliation failed")
		return
	}
	Success(c, report)
}
