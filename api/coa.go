package api

import (
	"errors"
	"fmt"
	"strings"

	"prfmonitor/database"
	"prfmonitor/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// COAHandler chart of accounts endpoints
type COAHandler struct{}

// NewCOAHandler creates the handler.
func NewCOAHandler() *COAHandler {
	return &COAHandler{}
}

// COAListRequest list filters
type COAListRequest struct {
	Page        int    `form:"page" example:"1"`
	PageSize    int    `form:"page_size" example:"20"`
	Category    string `form:"category" example:"IT"`
	ExpenseType string `form:"expense_type" example:"OPEX"`
	Department  string `form:"department" example:"IT"`
	Active      string `form:"active" example:"true"`
	Search      string `form:"search" example:"6100"`
}

// COARequest create/update body
type COARequest struct {
	COACode     string `json:"coa_code" binding:"required,max=50" example:"6100-IT"`
	AccountName string `json:"account_name" binding:"required,max=200" example:"IT Supplies"`
	Description string `json:"description" binding:"max=500"`
	Category    string `json:"category" example:"IT"`
	Department  string `json:"department" example:"IT"`
	ExpenseType string `json:"expense_type" example:"OPEX"`
	IsActive    *bool  `json:"is_active"`
}

// COABulkUpdateRequest bulk update body
type COABulkUpdateRequest struct {
	IDs     []int          `json:"ids" binding:"required"`
	Updates COABulkChanges `json:"updates"`
}

// COABulkChanges fields a bulk update may set
type COABulkChanges struct {
	Category    *string `json:"category"`
	Department  *string `json:"department"`
	ExpenseType *string `json:"expense_type"`
	IsActive    *bool   `json:"is_active"`
}

func (u COABulkChanges) toMap() (map[string]interface{}, error) {
	m := make(map[string]interface{})
	if u.Category != nil {
		m["category"] = strings.TrimSpace(*u.Category)
	}
	if u.Department != nil {
		m["department"] = strings.TrimSpace(*u.Department)
	}
	if u.ExpenseType != nil {
		t, ok := models.NormalizeExpenseType(*u.ExpenseType)
		if !ok {
			return nil, fmt.Errorf("invalid expense_type %q, expected CAPEX or OPEX", *u.ExpenseType)
		}
		m["expense_type"] = t
	}
	if u.IsActive != nil {
		m["is_active"] = *u.IsActive
	}
	return m, nil
}

// List accounts
// @Summary List accounts
// @Description Chart of accounts with filters, ordered by code
// @Tags COA
// @Produce json
// @Security BearerAuth
// @Param page query int false "page" default(1)
// @Param page_size query int false "page size" default(20)
// @Param category query string false "category"
// @Param expense_type query string false "CAPEX or OPEX"
// @Param department query string false "department"
// @Param active query bool false "active flag"
// @Param search query string false "code or name contains"
// @Success 200 {object} Response{data=PageResponse{list=[]models.ChartOfAccount}}
// @Router /api/coa [get]
func (h *COAHandler) List(c *gin.Context) {
	var req COAListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	req.Page, req.PageSize = pagination(req.Page, req.PageSize, 20, 200)

	query := database.DB.Model(&models.ChartOfAccount{})
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.ExpenseType != "" {
		t, _ := models.NormalizeExpenseType(req.ExpenseType)
		query = query.Where("expense_type = ?", t)
	}
	if req.Department != "" {
		query = query.Where("department = ?", req.Department)
	}
	switch strings.ToLower(req.Active) {
	case "true", "1":
		query = query.Where("is_active = ?", true)
	case "false", "0":
		query = query.Where("is_active = ?", false)
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("coa_code LIKE ? OR account_name LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	var accounts []models.ChartOfAccount
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("coa_code").Offset(offset).Limit(req.PageSize).Find(&accounts).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		List:     accounts,
	})
}

// Get one account
// @Summary Get account
// @Tags COA
// @Produce json
// @Security BearerAuth
// @Param id path int true "account id"
// @Success 200 {object} Response{data=models.ChartOfAccount}
// @Failure 404 {object} Response
// @Router /api/coa/{id} [get]
func (h *COAHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var coa models.ChartOfAccount
	if err := database.DB.First(&coa, id).Error; err != nil {
		NotFound(c, "account not found")
		return
	}
	Success(c, coa)
}

// Create an account
// @Summary Create account
// @Tags COA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body COARequest true "account"
// @Success 201 {object} Response{data=models.ChartOfAccount}
// @Failure 400 {object} Response
// @Failure 409 {object} Response "code already exists"
// @Router /api/coa [post]
func (h *COAHandler) Create(c *gin.Context) {
	var req COARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	code := strings.TrimSpace(req.COACode)
	if code == "" {
		BadRequest(c, "coa_code is required")
		return
	}
	expenseType, ok := models.NormalizeExpenseType(req.ExpenseType)
	if !ok {
		BadRequest(c, "invalid expense_type, expected CAPEX or OPEX")
		return
	}

	var count int64
	if err := database.DB.Model(&models.ChartOfAccount{}).Where("coa_code = ?", code).Count(&count).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	if count > 0 {
		Conflict(c, "coa_code already exists: "+code)
		return
	}

	coa := models.ChartOfAccount{
		COACode:     code,
		AccountName: strings.TrimSpace(req.AccountName),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Department:  strings.TrimSpace(req.Department),
		ExpenseType: expenseType,
		IsActive:    true,
	}
	if err := database.DB.Create(&coa).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "create account failed"))
		return
	}
	Created(c, "account created", coa)
}

// Update an account
// @Summary Update account
// @Tags COA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "account id"
// @Param request body COARequest true "account"
// @Success 200 {object} Response{data=models.ChartOfAccount}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /api/coa/{id} [put]
func (h *COAHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req COARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	code := strings.TrimSpace(req.COACode)
	if code == "" {
		BadRequest(c, "coa_code is required")
		return
	}
	expenseType, valid := models.NormalizeExpenseType(req.ExpenseType)
	if !valid {
		BadRequest(c, "invalid expense_type, expected CAPEX or OPEX")
		return
	}

	var coa models.ChartOfAccount
	err := database.DB.First(&coa, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "account not found")
		return
	}
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	if code != coa.COACode {
		var count int64
		if err := database.DB.Model(&models.ChartOfAccount{}).Where("coa_code = ? AND id <> ?", code, id).Count(&count).Error; err != nil {
			InternalError(c, SafeErrorMessage(err, "query failed"))
			return
		}
		if count > 0 {
			Conflict(c, "coa_code already exists: "+code)
			return
		}
	}

	updates := map[string]interface{}{
		"coa_code":     code,
		"account_name": strings.TrimSpace(req.AccountName),
		"description":  req.Description,
		"category":     strings.TrimSpace(req.Category),
		"department":   strings.TrimSpace(req.Department),
		"expense_type": expenseType,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := database.DB.Model(&coa).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "update account failed"))
		return
	}
	if err := database.DB.First(&coa, id).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "reload account failed"))
		return
	}
	SuccessWithMessage(c, "account updated", coa)
}

// Delete deactivates an account
// @Summary Deactivate account
// @Description Accounts are never removed; this sets is_active=false
// @Tags COA
// @Produce json
// @Security BearerAuth
// @Param id path int true "account id"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/coa/{id} [delete]
func (h *COAHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := database.DB.Model(&models.ChartOfAccount{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		InternalError(c, SafeErrorMessage(res.Error, "deactivate account failed"))
		return
	}
	if res.RowsAffected == 0 {
		NotFound(c, "account not found")
		return
	}
	SuccessWithMessage(c, "account deactivated", nil)
}

// BulkUpdate applies the same changes to many accounts
// @Summary Bulk update accounts
// @Description All ids must exist; the update runs in one transaction
// @Tags COA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body COABulkUpdateRequest true "ids and changes"
// @Success 200 {object} Response
// @Failure 400 {object} Response "invalid or unknown ids"
// @Router /api/coa/bulk [put]
func (h *COAHandler) BulkUpdate(c *gin.Context) {
	var req COABulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	if len(req.IDs) == 0 {
		BadRequest(c, "ids must not be empty")
		return
	}
	ids := make([]uint, 0, len(req.IDs))
	seen := make(map[uint]bool, len(req.IDs))
	for _, id := range req.IDs {
		if id <= 0 {
			BadRequest(c, fmt.Sprintf("invalid id: %d", id))
			return
		}
		if !seen[uint(id)] {
			seen[uint(id)] = true
			ids = append(ids, uint(id))
		}
	}
	updates, err := req.Updates.toMap()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if len(updates) == 0 {
		BadRequest(c, "no fields to update")
		return
	}

	var found []uint
	if err := database.DB.Model(&models.ChartOfAccount{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	if missing := missingIDs(ids, found); len(missing) > 0 {
		BadRequest(c, fmt.Sprintf("accounts not found: %v", missing))
		return
	}

	var affected int64
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChartOfAccount{}).Where("id IN ?", ids).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "bulk update failed"))
		return
	}
	SuccessWithMessage(c, "accounts updated", gin.H{"requested": len(ids), "updated": affected})
}

func missingIDs(want, found []uint) []uint {
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	missing := []uint{}
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// Categories distinct account categories
// @Summary Account categories
// @Tags COA
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]string}
// @Router /api/coa/categories [get]
func (h *COAHandler) Categories(c *gin.Context) {
	var categories []string
	err := database.DB.Model(&models.ChartOfAccount{}).
		Where("category IS NOT NULL AND category <> ?", "").
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	if categories == nil {
		categories = []string{}
	}
	Success(c, categories)
}
