package service

import "errors"

var (
	// ErrNotFound the referenced record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrValidation the request is malformed
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCostCode the cost code matches no active account
	ErrInvalidCostCode = errors.New("cost code not found in chart of accounts")
	// ErrDuplicateBudget a budget already exists for the account and fiscal year
	ErrDuplicateBudget = errors.New("budget already exists for this account and fiscal year")
	// ErrDuplicatePRFNo the PRF number is taken
	ErrDuplicatePRFNo = errors.New("prf number already exists")
	// ErrInvalidTransition the status change is not allowed
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrForbidden the caller's role may not perform the action
	ErrForbidden = errors.New("permission denied")
	// ErrNotEditable the PRF has already been decided
	ErrNotEditable = errors.New("prf can no longer be edited")
	// ErrBudgetOverrun approval would exceed the allocation
	ErrBudgetOverrun = errors.New("approval exceeds remaining budget")
)
