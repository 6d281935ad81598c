package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prfmonitor/config"
	"prfmonitor/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GeneratePRFNo PRF-<year>-<8 upper hex>
func GeneratePRFNo(year int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("PRF-%d-%s", year, strings.ToUpper(id[:8]))
}

// PRFService PRF workflow rules shared by the API, bulk import and jobs.
type PRFService struct {
	db     *gorm.DB
	budget config.BudgetConfig
}

// NewPRFService creates the service.
func NewPRFService(db *gorm.DB, budget config.BudgetConfig) *PRFService {
	return &PRFService{db: db, budget: budget}
}

// ActiveAccount returns the active account whose code equals costCode exactly.
func (s *PRFService) ActiveAccount(ctx context.Context, costCode string) (*models.ChartOfAccount, error) {
	var coa models.ChartOfAccount
	err := s.db.WithContext(ctx).Where("coa_code = ? AND is_active = ?", costCode, true).First(&coa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCostCode, costCode)
	}
	if err != nil {
		return nil, err
	}
	return &coa, nil
}

// Prepare validates and fills defaults on a new PRF without touching the database.
func Prepare(prf *models.PRF, now time.Time) error {
	prf.PurchaseCostCode = strings.TrimSpace(prf.PurchaseCostCode)
	prf.PRFNo = strings.TrimSpace(prf.PRFNo)
	if prf.PurchaseCostCode == "" {
		return fmt.Errorf("%w: purchase_cost_code is required", ErrValidation)
	}
	if len(prf.Items) > 0 {
		for _, it := range prf.Items {
			if strings.TrimSpace(it.ItemName) == "" {
				return fmt.Errorf("%w: item_name is required", ErrValidation)
			}
			if !it.Quantity.IsPositive() || it.UnitPrice.IsNegative() {
				return fmt.Errorf("%w: item %s needs a positive quantity and non-negative price", ErrValidation, it.ItemName)
			}
		}
		prf.RequestedAmount = models.ItemsTotal(prf.Items)
	}
	if !prf.RequestedAmount.IsPositive() {
		return fmt.Errorf("%w: requested_amount must be greater than 0", ErrValidation)
	}
	if prf.DateRequested.IsZero() {
		prf.DateRequested = now
	}
	if prf.BudgetYear == 0 {
		prf.BudgetYear = prf.DateRequested.Year()
	}
	if prf.Priority == "" {
		prf.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(prf.Priority) {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, prf.Priority)
	}
	if prf.Status == "" {
		prf.Status = models.PRFStatusPending
	}
	if !models.ValidPRFStatus(prf.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, prf.Status)
	}
	if prf.PRFNo == "" {
		prf.PRFNo = GeneratePRFNo(prf.BudgetYear)
	}
	return nil
}

// prfNoTaken includes soft-deleted rows; the unique index on prf_no still holds their numbers.
func (s *PRFService) prfNoTaken(ctx context.Context, prfNo string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().Model(&models.PRF{}).Where("prf_no = ?", prfNo).Count(&count).Error
	return count > 0, err
}

// Create validates the cost code and PRF number, then inserts prf with its items.
func (s *PRFService) Create(ctx context.Context, prf *models.PRF) error {
	explicitNo := strings.TrimSpace(prf.PRFNo) != ""
	if err := Prepare(prf, time.Now()); err != nil {
		return err
	}
	if _, err := s.ActiveAccount(ctx, prf.PurchaseCostCode); err != nil {
		return err
	}
	if explicitNo {
		taken, err := s.prfNoTaken(ctx, prf.PRFNo)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrDuplicatePRFNo, prf.PRFNo)
		}
	}
	return s.db.WithContext(ctx).Create(prf).Error
}

// Get loads a PRF with its items.
func (s *PRFService) Get(ctx context.Context, id uint) (*models.PRF, error) {
	var prf models.PRF
	err := s.db.WithContext(ctx).Preload("Items").First(&prf, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prf, nil
}

// Update changes the editable fields of a Pending or On Hold PRF. Empty or zero
// fields of in keep their stored value. Items are replaced when in.Items is non-nil.
func (s *PRFService) Update(ctx context.Context, id uint, in *models.PRF) (*models.PRF, error) {
	prf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.IsEditable(prf.Status) {
		return nil, fmt.Errorf("%w: status is %s", ErrNotEditable, prf.Status)
	}

	oldCode := prf.PurchaseCostCode
	if !in.DateRequested.IsZero() {
		prf.DateRequested = in.DateRequested
	}
	if in.BudgetYear != 0 {
		prf.BudgetYear = in.BudgetYear
	}
	if in.Priority != "" {
		prf.Priority = in.Priority
	}
	setText(&prf.Department, in.Department)
	setText(&prf.RequestorName, in.RequestorName)
	setText(&prf.Vendor, in.Vendor)
	setText(&prf.Description, in.Description)
	setText(&prf.PurchaseCostCode, in.PurchaseCostCode)
	setText(&prf.Notes, in.Notes)
	replaceItems := in.Items != nil
	if replaceItems {
		prf.Items = in.Items
	} else if len(prf.Items) == 0 && !in.RequestedAmount.IsZero() {
		prf.RequestedAmount = in.RequestedAmount
	}
	if err := Prepare(prf, prf.CreatedAt); err != nil {
		return nil, err
	}
	if prf.PurchaseCostCode != oldCode {
		if _, err := s.ActiveAccount(ctx, prf.PurchaseCostCode); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !replaceItems {
			return tx.Omit("Items").Save(prf).Error
		}
		if err := tx.Where("prf_id = ?", prf.ID).Delete(&models.PRFItem{}).Error; err != nil {
			return err
		}
		for i := range prf.Items {
			prf.Items[i].ID = 0
			prf.Items[i].PRFID = prf.ID
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(prf).Error
	})
	if err != nil {
		return nil, err
	}
	return prf, nil
}

func setText(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Delete soft-deletes a PRF.
func (s *PRFService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.PRF{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// StatusChange a requested PRF status transition.
type StatusChange struct {
	Status         string
	ApprovedAmount *decimal.Decimal
	ActualAmount   *decimal.Decimal
	Notes          string
	ActorID        uint
	ActorRole      string
}

// StatusResult the updated PRF and any budget warning raised by approval.
type StatusResult struct {
	PRF       *models.PRF   `json:"prf"`
	OldStatus string        `json:"old_status"`
	Budget    *OverrunCheck `json:"budget_check,omitempty"`
}

// CanApprove approver and admin roles may approve or reject.
func CanApprove(role string) bool {
	return role == models.RoleAdmin || role == models.RoleApprover
}

// ChangeStatus applies a status transition. Approval is checked against the
// remaining budget of the PRF's cost code.
func (s *PRFService) ChangeStatus(ctx context.Context, id uint, change StatusChange, utilization *UtilizationService) (*StatusResult, error) {
	prf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.ValidPRFStatus(change.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, change.Status)
	}
	if !models.CanTransition(prf.Status, change.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prf.Status, change.Status)
	}
	if (change.Status == models.PRFStatusApproved || change.Status == models.PRFStatusRejected) && !CanApprove(change.ActorRole) {
		return nil, fmt.Errorf("%w: role %s cannot decide PRFs", ErrForbidden, change.ActorRole)
	}

	result := &StatusResult{PRF: prf, OldStatus: prf.Status}
	updates := map[string]interface{}{"status": change.Status}
	if change.Notes != "" {
		updates["notes"] = change.Notes
	}

	switch change.Status {
	case models.PRFStatusApproved:
		amount := prf.RequestedAmount
		if change.ApprovedAmount != nil {
			if !change.ApprovedAmount.IsPositive() {
				return nil, fmt.Errorf("%w: approved_amount must be greater than 0", ErrValidation)
			}
			amount = *change.ApprovedAmount
		}
		if utilization != nil {
			line, err := utilization.Line(ctx, prf.PurchaseCostCode, prf.BudgetYear)
			if err != nil {
				return nil, err
			}
			check := CheckOverrun(line, amount)
			result.Budget = &check
			if check.Overrun && s.budget.BlockOverrun {
				return result, fmt.Errorf("%w: %s", ErrBudgetOverrun, check.Warning)
			}
		}
		now := time.Now()
		actor := change.ActorID
		updates["approved_amount"] = amount
		updates["approved_by"] = actor
		updates["approved_at"] = now
		prf.ApprovedAmount = amount
		prf.ApprovedBy = &actor
		prf.ApprovedAt = &now
	case models.PRFStatusCompleted:
		if change.ActualAmount != nil {
			if change.ActualAmount.IsNegative() {
				return nil, fmt.Errorf("%w: actual_amount cannot be negative", ErrValidation)
			}
			updates["actual_amount"] = *change.ActualAmount
			prf.ActualAmount = *change.ActualAmount
		}
	}

	if err := s.db.WithContext(ctx).Model(prf).Updates(updates).Error; err != nil {
		return nil, err
	}
	prf.Status = change.Status
	if change.Notes != "" {
		prf.Notes = change.Notes
	}
	return result, nil
}

// ImportRow one PRF in a bulk import request.
type ImportRow struct {
	PRFNo            string          `json:"prf_no"`
	DateRequested    string          `json:"date_requested"`
	Department       string          `json:"department"`
	RequestorName    string          `json:"requestor_name"`
	Vendor           string          `json:"vendor"`
	Description      string          `json:"description"`
	PurchaseCostCode string          `json:"purchase_cost_code"`
	BudgetYear       int             `json:"budget_year"`
	RequestedAmount  decimal.Decimal `json:"requested_amount"`
	ApprovedAmount   decimal.Decimal `json:"approved_amount"`
	ActualAmount     decimal.Decimal `json:"actual_amount"`
	Status           string          `json:"status"`
	Priority         string          `json:"priority"`
	Notes            string          `json:"notes"`
}

// ImportError a rejected row, 1-based.
type ImportError struct {
	Row     int    `json:"row"`
	PRFNo   string `json:"prf_no,omitempty"`
	Message string `json:"message"`
}

// ImportResult bulk import outcome.
type ImportResult struct {
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

var importDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "01/02/2006"}

func parseImportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range importDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrValidation, s)
}

// ToPRF converts an import row into a model.
func (r ImportRow) ToPRF(requestedBy uint) (*models.PRF, error) {
	prf := &models.PRF{
		PRFNo:            strings.TrimSpace(r.PRFNo),
		Department:       r.Department,
		RequestorName:    r.RequestorName,
		RequestedBy:      requestedBy,
		Vendor:           r.Vendor,
		Description:      r.Description,
		PurchaseCostCode: r.PurchaseCostCode,
		BudgetYear:       r.BudgetYear,
		RequestedAmount:  r.RequestedAmount,
		ApprovedAmount:   r.ApprovedAmount,
		ActualAmount:     r.ActualAmount,
		Status:           strings.TrimSpace(r.Status),
		Priority:         strings.TrimSpace(r.Priority),
		Notes:            r.Notes,
	}
	if r.DateRequested != "" {
		t, err := parseImportDate(r.DateRequested)
		if err != nil {
			return nil, err
		}
		prf.DateRequested = t
	}
	return prf, nil
}

// Import validates each row independently. Rows with unknown cost codes or
// taken PRF numbers are skipped unless updateExisting is set, in which case an
// existing PRF with the same number is overwritten. Numbers held by deleted
// PRFs are always skipped.
func (s *PRFService) Import(ctx context.Context, rows []ImportRow, requestedBy uint, updateExisting bool) (*ImportResult, error) {
	res := &ImportResult{Total: len(rows), Errors: []ImportError{}}

	codes, err := s.activeCodes(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i, row := range rows {
		fail := func(err error) {
			res.Skipped++
			res.Errors = append(res.Errors, ImportError{Row: i + 1, PRFNo: row.PRFNo, Message: err.Error()})
		}

		prf, err := row.ToPRF(requestedBy)
		if err != nil {
			fail(err)
			continue
		}
		explicitNo := prf.PRFNo != ""
		if err := Prepare(prf, now); err != nil {
			fail(err)
			continue
		}
		if !codes[prf.PurchaseCostCode] {
			fail(fmt.Errorf("%w: %s", ErrInvalidCostCode, prf.PurchaseCostCode))
			continue
		}

		var existing models.PRF
		found := false
		if explicitNo {
			err := s.db.WithContext(ctx).Unscoped().Where("prf_no = ?", prf.PRFNo).Limit(1).Find(&existing).Error
			if err != nil {
				return nil, err
			}
			found = existing.ID != 0
		}

		switch {
		case found && existing.DeletedAt.Valid:
			fail(fmt.Errorf("%w: %s belongs to a deleted PRF", ErrDuplicatePRFNo, prf.PRFNo))
		case found && !updateExisting:
			fail(fmt.Errorf("%w: %s", ErrDuplicatePRFNo, prf.PRFNo))
		case found:
			prf.ID = existing.ID
			prf.CreatedAt = existing.CreatedAt
			if err := s.db.WithContext(ctx).Save(prf).Error; err != nil {
				fail(err)
				continue
			}
			res.Updated++
		default:
			if err := s.db.WithContext(ctx).Create(prf).Error; err != nil {
				fail(err)
				continue
			}
			res.Imported++
		}
	}
	return res, nil
}

func (s *PRFService) activeCodes(ctx context.Context) (map[string]bool, error) {
	var codes []string
	if err := s.db.WithContext(ctx).Model(&models.ChartOfAccount{}).
		Where("is_active = ?", true).
		Pluck("coa_code", &codes).Error; err != nil {
		return nil, err
	}
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m, nil
}
