package database

import (
	_ "embed"
	"fmt"
	"strings"

	"prfmonitor/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed/coa.yaml
var defaultCOAYAML []byte

type coaSeedFile struct {
	Accounts []struct {
		Code        string `yaml:"code"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Category    string `yaml:"category"`
		Department  string `yaml:"department"`
		ExpenseType string `yaml:"expense_type"`
	} `yaml:"accounts"`
}

// ParseCOASeed decodes a chart-of-accounts seed document.
func ParseCOASeed(data []byte) ([]models.ChartOfAccount, error) {
	var f coaSeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse coa seed: %w", err)
	}
	seen := make(map[string]bool, len(f.Accounts))
	accounts := make([]models.ChartOfAccount, 0, len(f.Accounts))
	for i, a := range f.Accounts {
		code := strings.TrimSpace(a.Code)
		if code == "" || strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("coa seed entry %d: code and name are required", i+1)
		}
		if seen[code] {
			return nil, fmt.Errorf("coa seed entry %d: duplicate code %s", i+1, code)
		}
		seen[code] = true
		et, ok := models.NormalizeExpenseType(a.ExpenseType)
		if !ok {
			return nil, fmt.Errorf("coa seed entry %d: invalid expense type %q", i+1, a.ExpenseType)
		}
		accounts = append(accounts, models.ChartOfAccount{
			COACode:     code,
			AccountName: strings.TrimSpace(a.Name),
			Description: a.Description,
			Category:    a.Category,
			Department:  a.Department,
			ExpenseType: et,
			IsActive:    true,
		})
	}
	return accounts, nil
}

// SeedDefaults fills an empty chart of accounts and creates the first admin user.
func SeedDefaults(db *gorm.DB, adminPassword string) error {
	var coaCount int64
	if err := db.Model(&models.ChartOfAccount{}).Count(&coaCount).Error; err != nil {
		return err
	}
	if coaCount == 0 {
		accounts, err := ParseCOASeed(defaultCOAYAML)
		if err != nil {
			return err
		}
		if len(accounts) > 0 {
			if err := db.Create(&accounts).Error; err != nil {
				return fmt.Errorf("seed chart of accounts: %w", err)
			}
		}
	}

	var adminCount int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&adminCount).Error; err != nil {
		return err
	}
	if adminCount == 0 {
		if adminPassword == "" {
			adminPassword = "admin123"
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := models.User{
			Username: "admin",
			Password: string(hashed),
			FullName: "Administrator",
			Role:     models.RoleAdmin,
			Status:   models.UserStatusActive,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
	}
	return nil
}
