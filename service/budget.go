package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prfmonitor/models"

	"gorm.io/gorm"
)

// BudgetService budget allocation rules
type BudgetService struct {
	db *gorm.DB
}

// NewBudgetService creates the service.
func NewBudgetService(db *gorm.DB) *BudgetService {
	return &BudgetService{db: db}
}

// ValidateBudget checks field ranges and fills the default currency.
func ValidateBudget(b *models.Budget) error {
	if b.COAID == 0 {
		return fmt.Errorf("%w: coa_id is required", ErrValidation)
	}
	if b.FiscalYear < 2000 || b.FiscalYear > 2100 {
		return fmt.Errorf("%w: fiscal_year %d out of range", ErrValidation, b.FiscalYear)
	}
	if b.Quarter != nil && (*b.Quarter < 1 || *b.Quarter > 4) {
		return fmt.Errorf("%w: quarter must be 1-4", ErrValidation)
	}
	if b.Month != nil && (*b.Month < 1 || *b.Month > 12) {
		return fmt.Errorf("%w: month must be 1-12", ErrValidation)
	}
	if b.AllocatedAmount.IsNegative() {
		return fmt.Errorf("%w: allocated_amount cannot be negative", ErrValidation)
	}
	b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	if b.Currency == "" {
		b.Currency = "PHP"
	}
	if len(b.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}
	return nil
}

func (s *BudgetService) checkAccount(ctx context.Context, coaID uint) error {
	var coa models.ChartOfAccount
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", coaID, true).First(&coa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: account %d not found or inactive", ErrValidation, coaID)
	}
	return err
}

func (s *BudgetService) checkUnique(ctx context.Context, coaID uint, year int, excludeID uint) error {
	q := s.db.WithContext(ctx).Model(&models.Budget{}).Where("coa_id = ? AND fiscal_year = ?", coaID, year)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: coa %d, FY%d", ErrDuplicateBudget, coaID, year)
	}
	return nil
}

// Create inserts a budget after checking the account and the (coa_id, fiscal_year) uniqueness.
func (s *BudgetService) Create(ctx context.Context, b *models.Budget) error {
	if err := ValidateBudget(b); err != nil {
		return err
	}
	if err := s.checkAccount(ctx, b.COAID); err != nil {
		return err
	}
	if err := s.checkUnique(ctx, b.COAID, b.FiscalYear, 0); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(b).Error
}

// Get loads a budget with its account.
func (s *BudgetService) Get(ctx context.Context, id uint) (*models.Budget, error) {
	var b models.Budget
	err := s.db.WithContext(ctx).Preload("COA").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Update saves b. Moving it onto another account or year must not collide with an existing budget.
func (s *BudgetService) Update(ctx context.Context, b *models.Budget, accountChanged bool) error {
	if err := ValidateBudget(b); err != nil {
		return err
	}
	if accountChanged {
		if err := s.checkAccount(ctx, b.COAID); err != nil {
			return err
		}
	}
	if err := s.checkUnique(ctx, b.COAID, b.FiscalYear, b.ID); err != nil {
		return err
	}
	b.COA = nil
	return s.db.WithContext(ctx).Save(b).Error
}

// Delete removes a budget row.
func (s *BudgetService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Budget{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
