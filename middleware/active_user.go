package middleware

import (
	"errors"
	"net/http"

	"prfmonitor/database"
	"prfmonitor/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ActiveUser rejects tokens of deleted or locked accounts and refreshes the
// caller's role from the database so role changes apply before the token expires.
// Use after JWTAuth.
func ActiveUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		err := database.DB.WithContext(c.Request.Context()).
			Select("id", "role", "status").
			First(&user, GetCurrentUserID(c)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortJSON(c, http.StatusUnauthorized, "user no longer exists")
			return
		}
		if err != nil {
			abortJSON(c, http.StatusInternalServerError, "load user failed")
			return
		}
		if user.Status != models.UserStatusActive {
			abortJSON(c, http.StatusForbidden, "account is locked, contact an administrator")
			return
		}
		c.Set("role", user.Role)
		c.Next()
	}
}
