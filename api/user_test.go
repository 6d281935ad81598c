package api

import (
	"testing"
	"time"

	"prfmonitor/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler()
	r := gin.New()
	r.Use(withUser(1, models.RoleAdmin))
	r.GET("/api/users", h.List)
	r.POST("/api/users", h.Create)
	r.PUT("/api/users/:id", h.Update)
	r.PUT("/api/users/:id/password", h.ResetPassword)
	r.DELETE("/api/users/:id", h.Delete)
	return r
}

func TestUserHandler_List(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE role = \\?").
		WithArgs(models.RoleApprover).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(3, "ana", "hash", "ana@x.com", "Ana Cruz", "IT", models.RoleApprover, models.UserStatusActive, time.Now(), time.Now(), nil))

	w := doJSON(userRouter(), "GET", "/api/users?role=approver", "")
	assert.Equal(t, 200, w.Code)
	users := decode(t, w)["data"].([]interface{})
	require.Len(t, users, 1)
	u := users[0].(map[string]interface{})
	assert.Equal(t, "ana", u["username"])
	_, hasPassword := u["password"]
	assert.False(t, hasPassword)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserHandler_Create(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs("bea", "bea@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	w := doJSON(userRouter(), "POST", "/api/users",
		`{"username":"bea","password":"secret1","email":"bea@x.com","department":"Finance"}`)
	assert.Equal(t, 201, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(9), data["id"])
	assert.Equal(t, models.RoleRequester, data["role"])
	assert.Equal(t, models.UserStatusActive, data["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserHandler_Create_Conflict(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs("bea").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := doJSON(userRouter(), "POST", "/api/users", `{"username":"bea","password":"secret1"}`)
	assert.Equal(t, 409, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserHandler_Create_BadRole(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	w := doJSON(userRouter(), "POST", "/api/users", `{"username":"bea","password":"secret1","role":"owner"}`)
	assert.Equal(t, 400, w.Code)
}

func TestUserHandler_Update(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE `users`.`id` = \\?").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(7, "carl", "hash", "", "", "IT", models.RoleRequester, models.UserStatusActive, time.Now(), time.Now(), nil))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doJSON(userRouter(), "PUT", "/api/users/7", `{"role":"approver","department":"Finance"}`)
	assert.Equal(t, 200, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, models.RoleApprover, data["role"])
	assert.Equal(t, "Finance", data["department"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserHandler_Update_Self(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	r := userRouter()

	w := doJSON(r, "PUT", "/api/users/1", `{"status":"locked"}`)
	assert.Equal(t, 400, w.Code)

	w = doJSON(r, "PUT", "/api/users/1", `{"role":"viewer"}`)
	assert.Equal(t, 400, w.Code)

	w = doJSON(r, "PUT", "/api/users/2", `{"status":"frozen"}`)
	assert.Equal(t, 400, w.Code)
}

func TestUserHandler_Delete(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r := userRouter()

	w := doJSON(r, "DELETE", "/api/users/1", "")
	assert.Equal(t, 400, w.Code)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `deleted_at`=\\?").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	w = doJSON(r, "DELETE", "/api/users/50", "")
	assert.Equal(t, 404, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
