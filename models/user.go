package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// UserStatusLocked cannot log in
	UserStatusLocked = "locked"
	// UserStatusActive can log in
	UserStatusActive = "active"
)

// Roles
const (
	RoleAdmin     = "admin"
	RoleApprover  = "approver"
	RoleRequester = "requester"
	RoleViewer    = "viewer"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleApprover, RoleRequester, RoleViewer:
		return true
	}
	return false
}

// User application user
type User struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	Username   string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Password   string         `json:"-" gorm:"size:255;not null"`
	Email      string         `json:"email" gorm:"size:100"`
	FullName   string         `json:"full_name" gorm:"size:100"`
	Department string         `json:"department" gorm:"size:100"`
	Role       string         `json:"role" gorm:"size:20;default:requester;index"`
	Status     string         `json:"status" gorm:"size:20;default:active;index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName table name
func (User) TableName() string {
	return "users"
}
