package api

import (
	"errors"
	"strings"
	"time"

	"prfmonitor/config"
	"prfmonitor/database"
	"prfmonitor/logger"
	"prfmonitor/middleware"
	"prfmonitor/models"
	"prfmonitor/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PRFHandler purchase request endpoints
type PRFHandler struct {
	cfg          *config.Config
	emailService *service.EmailService
}

// NewPRFHandler creates the handler.
func NewPRFHandler(cfg *config.Config) *PRFHandler {
	return &PRFHandler{
		cfg:          cfg,
		emailService: service.NewEmailService(&cfg.Email),
	}
}

// PRFItemRequest line item
type PRFItemRequest struct {
	ItemName    string          `json:"item_name" example:"Laptop"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string" example:"2"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string" example:"45000.00"`
}

// PRFRequest create/update body
type PRFRequest struct {
	PRFNo            string           `json:"prf_no" example:"PRF-2026-0001"`
	DateRequested    string           `json:"date_requested" example:"2026-03-14"`
	Department       string           `json:"department" example:"IT"`
	RequestorName    string           `json:"requestor_name" example:"Ana Cruz"`
	Vendor           string           `json:"vendor"`
	Description      string           `json:"description"`
	PurchaseCostCode string           `json:"purchase_cost_code" binding:"required" example:"6100-IT"`
	BudgetYear       int              `json:"budget_year" example:"2026"`
	RequestedAmount  decimal.Decimal  `json:"requested_amount" swaggertype:"string" example:"90000.00"`
	Priority         string           `json:"priority" example:"Medium"`
	Notes            string           `json:"notes"`
	Items            []PRFItemRequest `json:"items"`
}

func (r PRFRequest) toModel(requestedBy uint) (*models.PRF, error) {
	prf := &models.PRF{
		PRFNo:            r.PRFNo,
		Department:       strings.TrimSpace(r.Department),
		RequestorName:    strings.TrimSpace(r.RequestorName),
		RequestedBy:      requestedBy,
		Vendor:           r.Vendor,
		Description:      r.Description,
		PurchaseCostCode: r.PurchaseCostCode,
		BudgetYear:       r.BudgetYear,
		RequestedAmount:  r.RequestedAmount,
		Priority:         strings.TrimSpace(r.Priority),
		Notes:            r.Notes,
	}
	if r.DateRequested != "" {
		t, err := time.ParseInLocation("2006-01-02", r.DateRequested, time.Local)
		if err != nil {
			return nil, errors.New("date_requested must be formatted 2006-01-02")
		}
		prf.DateRequested = t
	}
	if r.Items != nil {
		prf.Items = make([]models.PRFItem, 0, len(r.Items))
		for _, it := range r.Items {
			prf.Items = append(prf.Items, models.PRFItem{
				ItemName:    strings.TrimSpace(it.ItemName),
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
			})
		}
	}
	return prf, nil
}

// StatusRequest status change body
type StatusRequest struct {
	Status         string           `json:"status" binding:"required" example:"Approved"`
	ApprovedAmount *decimal.Decimal `json:"approved_amount" swaggertype:"string"`
	ActualAmount   *decimal.Decimal `json:"actual_amount" swaggertype:"string"`
	Notes          string           `json:"notes"`
}

// PRFListRequest list filters
type PRFListRequest struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	Status     string `form:"status"`
	Department string `form:"department"`
	CostCode   string `form:"cost_code"`
	BudgetYear int    `form:"budget_year"`
	Priority   string `form:"priority"`
	Search     string `form:"search"`
}

func (h *PRFHandler) prfService() *service.PRFService {
	return service.NewPRFService(database.DB, h.cfg.Budget)
}

// List PRFs
// @Summary List PRFs
// @Description Newest first
// @Tags PRF
// @Produce json
// @Security BearerAuth
// @Param page query int false "page" default(1)
// @Param page_size query int false "page size" default(20)
// @Param status query string false "status"
// @Param department query string false "department"
// @Param cost_code query string false "purchase cost code"
// @Param budget_year query int false "budget year"
// @Param priority query string false "priority"
// @Param search query string false "prf_no, description, vendor or requestor contains"
// @Success 200 {object} Response{data=PageResponse{list=[]models.PRF}}
// @Router /api/prfs [get]
func (h *PRFHandler) List(c *gin.Context) {
	var req PRFListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	req.Page, req.PageSize = pagination(req.Page, req.PageSize, 20, 200)

	query := database.DB.Model(&models.PRF{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Department != "" {
		query = query.Where("department = ?", req.Department)
	}
	if req.CostCode != "" {
		query = query.Where("purchase_cost_code = ?", req.CostCode)
	}
	if req.BudgetYear > 0 {
		query = query.Where("budget_year = ?", req.BudgetYear)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("prf_no LIKE ? OR description LIKE ? OR vendor LIKE ? OR requestor_name LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	var prfs []models.PRF
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("date_requested DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&prfs).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		List:     prfs,
	})
}

// Get one PRF with items
// @Summary Get PRF
// @Tags PRF
// @Produce json
// @Security BearerAuth
// @Param id path int true "PRF id"
// @Success 200 {object} Response{data=models.PRF}
// @Failure 404 {object} Response
// @Router /api/prfs/{id} [get]
func (h *PRFHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	prf, err := h.prfService().Get(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err, "query failed")
		return
	}
	Success(c, prf)
}

// Create a PRF
// @Summary Create PRF
// @Description The cost code must match an active account exactly. When items are given the requested amount is their total.
// @Tags PRF
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PRFRequest true "PRF"
// @Success 201 {object} Response{data=models.PRF}
// @Failure 400 {object} Response "validation failed or unknown cost code"
// @Failure 409 {object} Response "prf_no taken"
// @Router /api/prfs [post]
func (h *PRFHandler) Create(c *gin.Context) {
	var req PRFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	prf, err := req.toModel(middleware.GetCurrentUserID(c))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.prfService().Create(c.Request.Context(), prf); err != nil {
		ServiceError(c, err, "create PRF failed")
		return
	}
	Created(c, "PRF created", prf)
}

// Update a PRF
// @Summary Update PRF
// @Description Only Pending or On Hold PRFs can be edited
// @Tags PRF
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "PRF id"
// @Param request body PRFRequest true "PRF"
// @Success 200 {object} Response{data=models.PRF}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response "not editable"
// @Router /api/prfs/{id} [put]
func (h *PRFHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req PRFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	in, err := req.toModel(0)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	prf, err := h.prfService().Update(c.Request.Context(), id, in)
	if err != nil {
		ServiceError(c, err, "update PRF failed")
		return
	}
	SuccessWithMessage(c, "PRF updated", prf)
}

// UpdateStatus moves a PRF through its workflow
// @Summary Change PRF status
// @Description Approve/Reject need the approver or admin role. Approval is checked against the remaining budget; an overrun returns a warning, or 409 when overruns are blocked.
// @Tags PRF
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "PRF id"
// @Param request body StatusRequest true "new status"
// @Success 200 {object} Response{data=service.StatusResult}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 403 {object} Response "role may not approve or reject"
// @Failure 409 {object} Response "transition not allowed or budget overrun"
// @Router /api/prfs/{id}/status [patch]
func (h *PRFHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}

	change := service.StatusChange{
		Status:         strings.TrimSpace(req.Status),
		ApprovedAmount: req.ApprovedAmount,
		ActualAmount:   req.ActualAmount,
		Notes:          req.Notes,
		ActorID:        middleware.GetCurrentUserID(c),
		ActorRole:      middleware.GetCurrentRole(c),
	}
	utilization := service.NewUtilizationService(database.DB, h.cfg.Budget)
	result, err := h.prfService().ChangeStatus(c.Request.Context(), id, change, utilization)
	if err != nil {
		ServiceError(c, err, "status change failed")
		return
	}

	logger.L.Info("prf status changed",
		zap.String("prf_no", result.PRF.PRFNo),
		zap.String("from", result.OldStatus),
		zap.String("to", result.PRF.Status),
		zap.Uint("by", change.ActorID),
		zap.String("request_id", middleware.GetRequestID(c)))
	h.notifyRequester(result)

	message := "status updated"
	if result.Budget != nil && result.Budget.Overrun {
		message = "status updated with budget warning: " + result.Budget.Warning
	}
	SuccessWithMessage(c, message, result)
}

func (h *PRFHandler) notifyRequester(result *service.StatusResult) {
	if !h.emailService.Enabled() || result.PRF.RequestedBy == 0 {
		return
	}
	var user models.User
	if err := database.DB.Select("id", "email").First(&user, result.PRF.RequestedBy).Error; err != nil || user.Email == "" {
		return
	}
	prf := *result.PRF
	go func() {
		if err := h.emailService.SendPRFStatusEmail(user.Email, &prf, result.OldStatus); err != nil {
			logger.L.Warn("prf status email failed", zap.String("prf_no", prf.PRFNo), zap.Error(err))
		}
	}()
}

// Delete soft-deletes a PRF
// @Summary Delete PRF
// @Tags PRF
// @Produce json
// @Security BearerAuth
// @Param id path int true "PRF id"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/prfs/{id} [delete]
func (h *PRFHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.prfService().Delete(c.Request.Context(), id); err != nil {
		ServiceError(c, err, "delete PRF failed")
		return
	}
	SuccessWithMessage(c, "PRF deleted", nil)
}

// BulkImportRequest bulk import body
type BulkImportRequest struct {
	UpdateExisting bool                `json:"update_existing"`
	Rows           []service.ImportRow `json:"rows" binding:"required"`
}

// BulkImport imports PRFs from JSON rows
// @Summary Bulk import PRFs
// @Description Each row is validated independently; bad rows are reported and skipped
// @Tags PRF
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkImportRequest true "rows"
// @Success 200 {object} Response{data=service.ImportResult}
// @Failure 400 {object} Response
// @Router /api/import/prf/bulk [post]
func (h *PRFHandler) BulkImport(c *gin.Context) {
	var req BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	if len(req.Rows) == 0 {
		BadRequest(c, "rows must not be empty")
		return
	}
	if len(req.Rows) > 5000 {
		BadRequest(c, "at most 5000 rows per import")
		return
	}
	result, err := h.prfService().Import(c.Request.Context(), req.Rows, middleware.GetCurrentUserID(c), req.UpdateExisting)
	if err != nil {
		ServiceError(c, err, "import failed")
		return
	}
	logger.L.Info("prf bulk import",
		zap.Int("total", result.Total),
		zap.Int("imported", result.Imported),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	SuccessWithMessage(c, "import finished", result)
}
