package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/store"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindAll(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserStore) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupUserRouter(users *MockUserStore, actor *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecret: "test-secret"}
	ctl := NewUserController(users, cfg, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middlewares.ContextUser, actor)
		c.Set(middlewares.ContextUserID, actor.ID)
		c.Set(middlewares.ContextIsAdmin, actor.IsAdmin)
	})
	r.DELETE("/api/users/:id", ctl.DeleteUser)
	return r
}

func adminUser() *models.User {
	return &models.User{
		ID:      primitive.NewObjectID(),
		Name:    "Admin",
		Email:   "admin@example.com",
		IsAdmin: true,
	}
}

func TestDeleteUser_AdminCannotBeDeleted(t *testing.T) {
	users := new(MockUserStore)
	r := setupUserRouter(users, adminUser())

	target := adminUser()
	users.On("FindByID", mock.Anything, target.ID).Return(target, nil)

	w := doJSON(r, http.MethodDelete, "/api/users/"+target.ID.Hex(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteUser_RemovesRegularUser(t *testing.T) {
	users := new(MockUserStore)
	r := setupUserRouter(users, adminUser())

	target := testUser()
	users.On("FindByID", mock.Anything, target.ID).Return(target, nil)
	users.On("Delete", mock.Anything, target.ID).Return(nil)

	w := doJSON(r, http.MethodDelete, "/api/users/"+target.ID.Hex(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	users.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	users := new(MockUserStore)
	r := setupUserRouter(users, adminUser())

	missing := primitive.NewObjectID()
	users.On("FindByID", mock.Anything, missing).Return(nil, store.ErrNotFound)

	w := doJSON(r, http.MethodDelete, "/api/users/"+missing.Hex(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
