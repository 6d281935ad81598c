package service

import (
	"context"
	"testing"

	"prfmonitor/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestValidateBudget(t *testing.T) {
	b := &models.Budget{COAID: 1, FiscalYear: 2026, AllocatedAmount: d("1000"), Currency: " usd"}
	require.NoError(t, ValidateBudget(b))
	assert.Equal(t, "USD", b.Currency)

	b = &models.Budget{COAID: 1, FiscalYear: 2026}
	require.NoError(t, ValidateBudget(b))
	assert.Equal(t, "PHP", b.Currency)

	bad := []models.Budget{
		{FiscalYear: 2026},
		{COAID: 1, FiscalYear: 1999},
		{COAID: 1, FiscalYear: 2026, Quarter: intPtr(5)},
		{COAID: 1, FiscalYear: 2026, Month: intPtr(0)},
		{COAID: 1, FiscalYear: 2026, AllocatedAmount: d("-1")},
		{COAID: 1, FiscalYear: 2026, Currency: "PESO"},
	}
	for i := range bad {
		assert.ErrorIs(t, ValidateBudget(&bad[i]), ErrValidation, "case %d", i)
	}
}

func TestBudgetService_Create_Duplicate(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewBudgetService(db)

	mock.ExpectQuery("SELECT \\* FROM `chart_of_accounts` WHERE id = \\? AND is_active = \\?").
		WithArgs(3, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_code", "is_active"}).AddRow(3, "6100-IT", true))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets` WHERE coa_id = \\? AND fiscal_year = \\?").
		WithArgs(3, 2026).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := svc.Create(context.Background(), &models.Budget{COAID: 3, FiscalYear: 2026, AllocatedAmount: d("500")})
	assert.ErrorIs(t, err, ErrDuplicateBudget)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetService_Create_InactiveAccount(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewBudgetService(db)

	mock.ExpectQuery("SELECT \\* FROM `chart_of_accounts`").
		WithArgs(9, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := svc.Create(context.Background(), &models.Budget{COAID: 9, FiscalYear: 2026})
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetService_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewBudgetService(db)

	mock.ExpectQuery("SELECT \\* FROM `chart_of_accounts`").
		WithArgs(3, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "coa_code", "is_active"}).AddRow(3, "6100-IT", true))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets`").
		WithArgs(3, 2026).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `budgets`").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	b := &models.Budget{COAID: 3, FiscalYear: 2026, AllocatedAmount: d("500")}
	require.NoError(t, svc.Create(context.Background(), b))
	assert.Equal(t, uint(12), b.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetService_Update_Collision(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewBudgetService(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets` WHERE \\(coa_id = \\? AND fiscal_year = \\?\\) AND id <> \\?").
		WithArgs(3, 2027, 5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := svc.Update(context.Background(), &models.Budget{ID: 5, COAID: 3, FiscalYear: 2027}, false)
	assert.ErrorIs(t, err, ErrDuplicateBudget)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetService_Delete_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewBudgetService(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `budgets` WHERE `budgets`.`id` = \\?").
		WithArgs(77).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.ErrorIs(t, svc.Delete(context.Background(), 77), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
