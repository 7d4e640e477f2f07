package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/utils"
)

func createTestUser(id, email, password string, role models.Role, active bool) models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := models.User{
		ID:       id,
		Username: id,
		Email:    email,
		Role:     role,
		IsActive: active,
		Password: string(hash),
	}
	database.DB.Create(&user)
	return user
}

func TestLogin(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	createTestUser("user_login", "login@example.com", "s3cret", models.RoleUser, true)

	c, w := testContext("POST", "/api/auth/login", gin.H{"email": "login@example.com", "password": "s3cret"}, models.Actor{})
	Login(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "user_login", resp.User.ID)

	// The issued token round-trips and carries the role.
	claims, err := utils.ValidateToken(resp.Token)
	assert.NoError(t, err)
	assert.Equal(t, "user_login", claims.UserID)
	assert.Equal(t, "USER", claims.Role)
	assert.NotEmpty(t, claims.GetJTI())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	createTestUser("user_badpw", "badpw@example.com", "right", models.RoleUser, true)

	c, w := testContext("POST", "/api/auth/login", gin.H{"email": "badpw@example.com", "password": "wrong"}, models.Actor{})
	Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = testContext("POST", "/api/auth/login", gin.H{"email": "nobody@example.com", "password": "x"}, models.Actor{})
	Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	createTestUser("user_inactive", "inactive@example.com", "s3cret", models.RoleUser, false)

	c, w := testContext("POST", "/api/auth/login", gin.H{"email": "inactive@example.com", "password": "s3cret"}, models.Actor{})
	Login(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMe(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	createTestUser("user_me", "me@example.com", "pw", models.RoleCoach, true)

	c, w := testContext("GET", "/api/auth/me", nil, models.Actor{ID: "user_me", Role: models.RoleCoach})
	Me(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "user_me", resp.User.ID)
	assert.Equal(t, models.RoleCoach, resp.User.Role)
}
