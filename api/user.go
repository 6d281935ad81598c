package api

import (
	"errors"
	"strings"

	"prfmonitor/database"
	"prfmonitor/middleware"
	"prfmonitor/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserHandler user administration (admin only)
type UserHandler struct{}

// NewUserHandler creates the handler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// CreateUserRequest create user body
type CreateUserRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50" example:"jdelacruz"`
	Password   string `json:"password" binding:"required,min=6,max=50" example:"changeme"`
	Email      string `json:"email" binding:"omitempty,email" example:"jdelacruz@example.com"`
	FullName   string `json:"full_name" example:"Juan Dela Cruz"`
	Department string `json:"department" example:"Finance"`
	Role       string `json:"role" example:"requester"`
}

// UpdateUserRequest fields left empty are unchanged
type UpdateUserRequest struct {
	Email      *string `json:"email" binding:"omitempty,email"`
	FullName   *string `json:"full_name"`
	Department *string `json:"department"`
	Role       string  `json:"role" example:"approver"`
	Status     string  `json:"status" example:"active"`
}

// ResetPasswordRequest admin password reset body
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=6,max=50"`
}

// List users
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "role"
// @Param status query string false "active or locked"
// @Param department query string false "department"
// @Success 200 {object} Response{data=[]models.User}
// @Failure 403 {object} Response
// @Router /api/users [get]
func (h *UserHandler) List(c *gin.Context) {
	query := database.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if dept := c.Query("department"); dept != "" {
		query = query.Where("department = ?", dept)
	}

	var users []models.User
	if err := query.Order("username").Find(&users).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	Success(c, users)
}

// Create a user
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "user"
// @Success 201 {object} Response{data=models.User}
// @Failure 400 {object} Response
// @Failure 409 {object} Response "username or email taken"
// @Router /api/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Role == "" {
		req.Role = models.RoleRequester
	}
	if !models.ValidRole(req.Role) {
		BadRequest(c, "role must be one of admin, approver, requester, viewer")
		return
	}

	var count int64
	q := database.DB.Model(&models.User{}).Where("username = ?", req.Username)
	if req.Email != "" {
		q = q.Or("email = ?", req.Email)
	}
	if err := q.Count(&count).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	if count > 0 {
		Conflict(c, "username or email already registered")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "hash password failed")
		return
	}
	user := models.User{
		Username:   req.Username,
		Password:   string(hashed),
		Email:      req.Email,
		FullName:   strings.TrimSpace(req.FullName),
		Department: strings.TrimSpace(req.Department),
		Role:       req.Role,
		Status:     models.UserStatusActive,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "create user failed"))
		return
	}
	Created(c, "user created", user)
}

func loadUser(c *gin.Context, id uint) (*models.User, bool) {
	var user models.User
	err := database.DB.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "user not found")
		return nil, false
	}
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return nil, false
	}
	return &user, true
}

// Update role, status or profile fields
// @Summary Update user
// @Description Admins cannot lock or demote themselves
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "user id"
// @Param request body UpdateUserRequest true "changes"
// @Success 200 {object} Response{data=models.User}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	req.Role = strings.TrimSpace(req.Role)
	req.Status = strings.TrimSpace(req.Status)
	if req.Role != "" && !models.ValidRole(req.Role) {
		BadRequest(c, "role must be one of admin, approver, requester, viewer")
		return
	}
	if req.Status != "" && req.Status != models.UserStatusActive && req.Status != models.UserStatusLocked {
		BadRequest(c, "status must be active or locked")
		return
	}
	self := id == middleware.GetCurrentUserID(c)
	if self && (req.Status == models.UserStatusLocked || (req.Role != "" && req.Role != models.RoleAdmin)) {
		BadRequest(c, "cannot lock or demote your own account")
		return
	}

	user, ok := loadUser(c, id)
	if !ok {
		return
	}
	updates := map[string]interface{}{}
	if req.Role != "" {
		updates["role"] = req.Role
		user.Role = req.Role
	}
	if req.Status != "" {
		updates["status"] = req.Status
		user.Status = req.Status
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
		updates["email"] = user.Email
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
		updates["full_name"] = user.FullName
	}
	if req.Department != nil {
		user.Department = strings.TrimSpace(*req.Department)
		updates["department"] = user.Department
	}
	if len(updates) == 0 {
		BadRequest(c, "nothing to update")
		return
	}
	if err := database.DB.Model(user).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "update user failed"))
		return
	}
	SuccessWithMessage(c, "user updated", user)
}

// ResetPassword sets another user's password
// @Summary Reset user password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "user id"
// @Param request body ResetPasswordRequest true "new password"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/users/{id}/password [put]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	user, ok := loadUser(c, id)
	if !ok {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "hash password failed")
		return
	}
	if err := database.DB.Model(user).Update("password", string(hashed)).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "update password failed"))
		return
	}
	SuccessWithMessage(c, "password reset", nil)
}

// Delete soft-deletes a user
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "user id"
// @Success 200 {object} Response
// @Failure 400 {object} Response "cannot delete yourself"
// @Failure 404 {object} Response
// @Router /api/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if id == middleware.GetCurrentUserID(c) {
		BadRequest(c, "cannot delete your own account")
		return
	}
	res := database.DB.Delete(&models.User{}, id)
	if res.Error != nil {
		InternalError(c, SafeErrorMessage(res.Error, "delete user failed"))
		return
	}
	if res.RowsAffected == 0 {
		NotFound(c, "user not found")
		return
	}
	SuccessWithMessage(c, "user deleted", nil)
}
