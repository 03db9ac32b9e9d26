package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/payments"
	"shop-service/store"
)

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderStore) FindAll(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) MarkPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) (*models.Order, error) {
	args := m.Called(ctx, id, result, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Order, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) DeleteUnpaid(ctx context.Context, id primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) FindPage(ctx context.Context, keyword string, page, pageSize int) (*models.ProductPage, error) {
	args := m.Called(ctx, keyword, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductPage), args.Error(1)
}

func (m *MockProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductStore) FindTop(ctx context.Context, limit int) ([]models.Product, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductStore) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductStore) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type stubGateway struct {
	tx  *payments.Transaction
	err error
}

func (s *stubGateway) VerifyTransaction(ctx context.Context, transactionID string) (*payments.Transaction, error) {
	return s.tx, s.err
}

func testUser() *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Name:  "Test User",
		Email: "test@example.com",
	}
}

func setupOrderRouter(orders *MockOrderStore, products *MockProductStore, gateway payments.Gateway, user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{PaymentWindow: 15 * time.Minute}
	logger := zap.NewNop()
	verifier := payments.NewVerifier(orders, gateway, logger)
	ctl := NewOrderController(orders, products, verifier, nil, cfg, logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middlewares.ContextUser, user)
		c.Set(middlewares.ContextUserID, user.ID)
		c.Set(middlewares.ContextIsAdmin, user.IsAdmin)
	})
	r.POST("/api/orders", ctl.CreateOrder)
	r.GET("/api/orders/:id", ctl.GetOrderByID)
	r.PUT("/api/orders/:id/pay", ctl.PayOrder)
	r.PUT("/api/orders/:id/deliver", ctl.DeliverOrder)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_ReconcilesAgainstCatalog(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()
	r := setupOrderRouter(orders, products, &stubGateway{}, user)

	product := models.Product{
		ID:    primitive.NewObjectID(),
		Name:  "Widget",
		Price: 20.00,
		Image: "/images/widget.jpg",
	}
	products.On("FindByIDs", mock.Anything, mock.Anything).Return([]models.Product{product}, nil)
	orders.On("Create", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil).
		Run(func(args mock.Arguments) {
			order := args.Get(1).(*models.Order)
			assert.Equal(t, user.ID, order.UserID)
			assert.Equal(t, 40.00, order.ItemsPrice)
			assert.Equal(t, 10.00, order.ShippingPrice)
			assert.Equal(t, 8.00, order.TaxPrice)
			assert.Equal(t, 58.00, order.TotalPrice)
			assert.False(t, order.IsPaid)
		})

	w := doJSON(r, http.MethodPost, "/api/orders", gin.H{
		"order_items": []gin.H{
			// The client-sent price must be ignored in favor of the catalog.
			{"product_id": product.ID.Hex(), "quantity": 2, "price": 0.01},
		},
		"shipping_address": gin.H{
			"address": "1 Main St", "city": "Town", "postal_code": "12345", "country": "US",
		},
		"payment_method": "PayPal",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	orders.AssertExpectations(t)

	var created models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 58.00, created.TotalPrice)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	r := setupOrderRouter(orders, products, &stubGateway{}, testUser())

	w := doJSON(r, http.MethodPost, "/api/orders", gin.H{
		"order_items": []gin.H{},
		"shipping_address": gin.H{
			"address": "1 Main St", "city": "Town", "postal_code": "12345", "country": "US",
		},
		"payment_method": "PayPal",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetOrderByID_NotOwner(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()
	r := setupOrderRouter(orders, products, &stubGateway{}, user)

	other := &models.Order{
		ID:     primitive.NewObjectID(),
		UserID: primitive.NewObjectID(),
	}
	orders.On("FindByID", mock.Anything, other.ID).Return(other, nil)

	w := doJSON(r, http.MethodGet, "/api/orders/"+other.ID.Hex(), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPayOrder_Success(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()

	order := &models.Order{
		ID:         primitive.NewObjectID(),
		UserID:     user.ID,
		TotalPrice: 58.00,
	}
	gateway := &stubGateway{tx: &payments.Transaction{
		ID:         "TX-1",
		Verified:   true,
		Status:     "COMPLETED",
		Amount:     "58.00",
		PayerEmail: "buyer@example.com",
	}}
	r := setupOrderRouter(orders, products, gateway, user)

	paid := *order
	paid.IsPaid = true
	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	orders.On("FindByPaymentID", mock.Anything, "TX-1").Return(nil, store.ErrNotFound)
	orders.On("MarkPaid", mock.Anything, order.ID, mock.Anything, mock.Anything).Return(&paid, nil)

	w := doJSON(r, http.MethodPut, "/api/orders/"+order.ID.Hex()+"/pay", gin.H{"transaction_id": "TX-1"})

	require.Equal(t, http.StatusOK, w.Code)
	orders.AssertExpectations(t)
}

func TestPayOrder_AmountMismatch(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()

	order := &models.Order{
		ID:         primitive.NewObjectID(),
		UserID:     user.ID,
		TotalPrice: 180.00,
	}
	gateway := &stubGateway{tx: &payments.Transaction{
		ID:       "TX-1",
		Verified: true,
		Status:   "COMPLETED",
		Amount:   "58.00",
	}}
	r := setupOrderRouter(orders, products, gateway, user)

	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	orders.On("FindByPaymentID", mock.Anything, "TX-1").Return(nil, store.ErrNotFound)

	w := doJSON(r, http.MethodPut, "/api/orders/"+order.ID.Hex()+"/pay", gin.H{"transaction_id": "TX-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPayOrder_AlreadyPaidConflict(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()

	paidAt := time.Now()
	order := &models.Order{
		ID:         primitive.NewObjectID(),
		UserID:     user.ID,
		TotalPrice: 58.00,
		IsPaid:     true,
		PaidAt:     &paidAt,
	}
	r := setupOrderRouter(orders, products, &stubGateway{}, user)

	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

	w := doJSON(r, http.MethodPut, "/api/orders/"+order.ID.Hex()+"/pay", gin.H{"transaction_id": "TX-2"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeliverOrder_UnpaidOrderStillDeliverable(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()
	r := setupOrderRouter(orders, products, &stubGateway{}, user)

	// The delivered flag moves independently of the payment flag.
	orderID := primitive.NewObjectID()
	deliveredAt := time.Now()
	delivered := &models.Order{
		ID:          orderID,
		UserID:      user.ID,
		IsPaid:      false,
		IsDelivered: true,
		DeliveredAt: &deliveredAt,
	}
	orders.On("MarkDelivered", mock.Anything, orderID, mock.Anything).Return(delivered, nil)

	w := doJSON(r, http.MethodPut, "/api/orders/"+orderID.Hex()+"/deliver", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.IsDelivered)
	assert.False(t, got.IsPaid)
	orders.AssertExpectations(t)
}

func TestDeliverOrder_NotFound(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	r := setupOrderRouter(orders, products, &stubGateway{}, testUser())

	orderID := primitive.NewObjectID()
	orders.On("MarkDelivered", mock.Anything, orderID, mock.Anything).Return(nil, store.ErrNotFound)

	w := doJSON(r, http.MethodPut, "/api/orders/"+orderID.Hex()+"/deliver", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPayOrder_DuplicateTransaction(t *testing.T) {
	orders := new(MockOrderStore)
	products := new(MockProductStore)
	user := testUser()

	order := &models.Order{
		ID:         primitive.NewObjectID(),
		UserID:     user.ID,
		TotalPrice: 58.00,
	}
	otherOrder := &models.Order{
		ID:     primitive.NewObjectID(),
		UserID: user.ID,
		IsPaid: true,
	}
	gateway := &stubGateway{tx: &payments.Transaction{
		ID:       "TX-1",
		Verified: true,
		Status:   "COMPLETED",
		Amount:   "58.00",
	}}
	r := setupOrderRouter(orders, products, gateway, user)

	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	orders.On("FindByPaymentID", mock.Anything, "TX-1").Return(otherOrder, nil)

	w := doJSON(r, http.MethodPut, "/api/orders/"+order.ID.Hex()+"/pay", gin.H{"transaction_id": "TX-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
