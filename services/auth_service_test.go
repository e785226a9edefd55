package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tabforum/config"
	"tabforum/models"
	"tabforum/repositories"
)

func newAuthService(t *testing.T) AuthService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewAuthService(repositories.NewUserRepository(db))
}

func TestRegisterCreatesUserWithHashedPassword(t *testing.T) {
	service := newAuthService(t)

	response, err := service.Register(models.RegisterRequest{
		Username: "newuser",
		Email:    "new@example.com",
		Password: "correct horse battery staple",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, "newuser", response.User.Username)
	assert.NotEqual(t, "correct horse battery staple", response.User.Password)
}

func TestRegisterTokenCarriesUserID(t *testing.T) {
	service := newAuthService(t)

	response, err := service.Register(models.RegisterRequest{
		Username: "claimed",
		Email:    "claimed@example.com",
		Password: "a strong password",
	})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(response.Token, claims, func(*jwt.Token) (interface{}, error) {
		return config.JWTSecret, nil
	})
	require.NoError(t, err)
	assert.Equal(t, response.User.ID.String(), claims["user_id"])
	assert.Equal(t, "claimed", claims["username"])
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service := newAuthService(t)

	_, err := service.Register(models.RegisterRequest{
		Username: "first",
		Email:    "taken@example.com",
		Password: "a strong password",
	})
	require.NoError(t, err)

	_, err = service.Register(models.RegisterRequest{
		Username: "second",
		Email:    "taken@example.com",
		Password: "a strong password",
	})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	service := newAuthService(t)

	_, err := service.Register(models.RegisterRequest{
		Username: "unique",
		Email:    "first@example.com",
		Password: "a strong password",
	})
	require.NoError(t, err)

	_, err = service.Register(models.RegisterRequest{
		Username: "unique",
		Email:    "second@example.com",
		Password: "a strong password",
	})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestLoginWithValidCredentials(t *testing.T) {
	service := newAuthService(t)

	_, err := service.Register(models.RegisterRequest{
		Username: "returning",
		Email:    "returning@example.com",
		Password: "a strong password",
	})
	require.NoError(t, err)

	response, err := service.Login(models.LoginRequest{
		Email:    "returning@example.com",
		Password: "a strong password",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, "returning", response.User.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	service := newAuthService(t)

	_, err := service.Register(models.RegisterRequest{
		Username: "careful",
		Email:    "careful@example.com",
		Password: "a strong password",
	})
	require.NoError(t, err)

	_, err = service.Login(models.LoginRequest{
		Email:    "careful@example.com",
		Password: "a wrong password",
	})

	var unauthorized *models.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

func TestLoginUnknownEmail(t *testing.T) {
	service := newAuthService(t)

	_, err := service.Login(models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever password",
	})

	var unauthorized *models.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}
