package api

import (
	"strconv"
	"time"

	"prfmonitor/config"
	"prfmonitor/database"
	"prfmonitor/middleware"
	"prfmonitor/models"
	"prfmonitor/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BudgetHandler budget allocation and utilization endpoints
type BudgetHandler struct {
	cfg *config.Config
}

// NewBudgetHandler creates the handler.
func NewBudgetHandler(cfg *config.Config) *BudgetHandler {
	return &BudgetHandler{cfg: cfg}
}

// BudgetRequest create/update body
type BudgetRequest struct {
	COAID           uint            `json:"coa_id" binding:"required" example:"3"`
	FiscalYear      int             `json:"fiscal_year" binding:"required" example:"2026"`
	Quarter         *int            `json:"quarter" example:"1"`
	Month           *int            `json:"month"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount" swaggertype:"string" example:"250000.00"`
	Currency        string          `json:"currency" example:"PHP"`
	Notes           string          `json:"notes"`
}

// BudgetListRequest list filters
type BudgetListRequest struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	FiscalYear  int    `form:"fiscal_year"`
	COAID       uint   `form:"coa_id"`
	Department  string `form:"department"`
	ExpenseType string `form:"expense_type"`
}

// fiscalYear reads the fiscal_year query parameter, defaulting to the current year.
func fiscalYear(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2100 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return year, true
}

func (h *BudgetHandler) utilization() *service.UtilizationService {
	return service.NewUtilizationService(database.DB, h.cfg.Budget)
}

// List budgets
// @Summary List budgets
// @Tags Budget
// @Produce json
// @Security BearerAuth
// @Param page query int false "page" default(1)
// @Param page_size query int false "page size" default(20)
// @Param fiscal_year query int false "fiscal year"
// @Param coa_id query int false "account id"
// @Param department query string false "account department"
// @Param expense_type query string false "CAPEX or OPEX"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Budget}}
// @Router /api/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	var req BudgetListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	req.Page, req.PageSize = pagination(req.Page, req.PageSize, 20, 200)

	query := database.DB.Model(&models.Budget{})
	if req.FiscalYear > 0 {
		query = query.Where("budgets.fiscal_year = ?", req.FiscalYear)
	}
	if req.COAID > 0 {
		query = query.Where("budgets.coa_id = ?", req.COAID)
	}
	if req.Department != "" || req.ExpenseType != "" {
		query = query.Joins("JOIN chart_of_accounts ON chart_of_accounts.id = budgets.coa_id")
		if req.Department != "" {
			query = query.Where("chart_of_accounts.department = ?", req.Department)
		}
		if req.ExpenseType != "" {
			t, _ := models.NormalizeExpenseType(req.ExpenseType)
			query = query.Where("chart_of_accounts.expense_type = ?", t)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	var budgets []models.Budget
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("COA").
		Order("budgets.fiscal_year DESC, budgets.id").
		Offset(offset).Limit(req.PageSize).
		Find(&budgets).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		List:     budgets,
	})
}

// Get one budget
// @Summary Get budget
// @Tags Budget
// @Produce json
// @Security BearerAuth
// @Param id path int true "budget id"
// @Success 200 {object} Response{data=models.Budget}
// @Failure 404 {object} Response
// @Router /api/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := service.NewBudgetService(database.DB).Get(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err, "query failed")
		return
	}
	Success(c, b)
}

// Create a budget
// @Summary Create budget
// @Description One budget per account and fiscal year
// @Tags Budget
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetRequest true "budget"
// @Success 201 {object} Response{data=models.Budget}
// @Failure 400 {object} Response "unknown or inactive account"
// @Failure 409 {object} Response "budget exists for account and year"
// @Router /api/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	b := models.Budget{
		COAID:           req.COAID,
		FiscalYear:      req.FiscalYear,
		Quarter:         req.Quarter,
		Month:           req.Month,
		AllocatedAmount: req.AllocatedAmount,
		Currency:        req.Currency,
		Notes:           req.Notes,
		CreatedBy:       middleware.GetCurrentUserID(c),
	}
	if err := service.NewBudgetService(database.DB).Create(c.Request.Context(), &b); err != nil {
		ServiceError(c, err, "create budget failed")
		return
	}
	Created(c, "budget created", b)
}

// Update a budget
// @Summary Update budget
// @Tags Budget
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "budget id"
// @Param request body BudgetRequest true "budget"
// @Success 200 {object} Response{data=models.Budget}
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /api/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}

	svc := service.NewBudgetService(database.DB)
	b, err := svc.Get(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err, "query failed")
		return
	}
	accountChanged := b.COAID != req.COAID
	b.COAID = req.COAID
	b.FiscalYear = req.FiscalYear
	b.Quarter = req.Quarter
	b.Month = req.Month
	b.AllocatedAmount = req.AllocatedAmount
	b.Currency = req.Currency
	b.Notes = req.Notes
	if err := svc.Update(c.Request.Context(), b, accountChanged); err != nil {
		ServiceError(c, err, "update budget failed")
		return
	}
	SuccessWithMessage(c, "budget updated", b)
}

// Delete a budget
// @Summary Delete budget
// @Tags Budget
// @Produce json
// @Security BearerAuth
// @Param id path int true "budget id"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := service.NewBudgetService(database.DB).Delete(c.Request.Context(), id); err != nil {
		ServiceError(c, err, "delete budget failed")
		return
	}
	SuccessWithMessage(c, "budget deleted", nil)
}

// CostCodes budget versus spending per cost code
// @Summary Cost-code utilization
// @Description Allocated, spent (approved or completed PRFs), remaining and utilization per budget line
// @Tags Budget
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year, defaults to the current year"
// @Success 200 {object} Response{data=[]service.CostCodeUtilization}
// @Router /api/budgets/cost-codes [get]
func (h *BudgetHandler) CostCodes(c *gin.Context) {
	year, ok := fiscalYear(c, "fiscal_year")
	if !ok {
		return
	}
	rows, err := h.utilization().CostCodes(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "query failed")
		return
	}
	if rows == nil {
		rows = []service.CostCodeUtilization{}
	}
	Success(c, rows)
}

// Summary budget totals with breakdowns
// @Summary Budget summary
// @Tags Budget
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year"
// @Success 200 {object} Response{data=service.BudgetSummary}
// @Router /api/budgets/summary [get]
func (h *BudgetHandler) Summary(c *gin.Context) {
	year, ok := fiscalYear(c, "fiscal_year")
	if !ok {
		return
	}
	summary, err := h.utilization().Summary(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "query failed")
		return
	}
	Success(c, summary)
}

// SyncUtilization stores computed spending in utilized_amount
// @Summary Sync utilized amounts
// @Tags Budget
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "fiscal year"
// @Success 200 {object} Response
// @Router /api/budgets/sync-utilization [post]
func (h *BudgetHandler) SyncUtilization(c *gin.Context) {
	year, ok := fiscalYear(c, "fiscal_year")
	if !ok {
		return
	}
	changed, err := h.utilization().Sync(c.Request.Context(), year)
	if err != nil {
		ServiceError(c, err, "sync failed")
		return
	}
	SuccessWithMessage(c, "utilization synced", gin.H{"fiscal_year": year, "updated": changed})
}
