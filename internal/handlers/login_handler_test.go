package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"go-visa-office/internal/config"
	"go-visa-office/internal/database"
	"go-visa-office/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouterWithRegistration(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.Set(db)

	r := gin.New()
	RegisterRoutes(r, config.Config{
		UploadDir:         t.TempDir(),
		AllowRegistration: true,
		DashboardCacheTTL: time.Minute,
	})
	return r
}

func seedUser(t *testing.T, username, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: string(hash), Role: role}
	require.NoError(t, database.DB.Create(&user).Error)
}

func TestLoginIssuesToken(t *testing.T) {
	r := setupRouter(t)
	seedUser(t, "manager", "s3cret", "admin")

	w := doJSON(t, r, http.MethodPost, "/login", LoginRequest{Username: "Manager", Password: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token    string `json:"token"`
		Role     string `json:"role"`
		Username string `json:"username"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "admin", resp.Role)
	require.Equal(t, "manager", resp.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := setupRouter(t)
	seedUser(t, "manager", "s3cret", "admin")

	w := doJSON(t, r, http.MethodPost, "/login", LoginRequest{Username: "manager", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/login", LoginRequest{Username: "nobody", Password: "s3cret"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationDisabledByDefault(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/register", RegisterRequest{Username: "new", Password: "pw"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistrationWhenEnabled(t *testing.T) {
	r := setupRouterWithRegistration(t)

	w := doJSON(t, r, http.MethodPost, "/register", RegisterRequest{Username: "New", Password: "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, database.DB.Where("username = ?", "new").First(&user).Error)
	require.Equal(t, "admin", user.Role)

	w = doJSON(t, r, http.MethodPost, "/login", LoginRequest{Username: "new", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
