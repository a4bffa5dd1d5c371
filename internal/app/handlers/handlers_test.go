package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/app/handlers"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/gomarket/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// fakeAuthService — фиктивная реализация для тестирования.
type fakeAuthService struct {
	token string
	err   error
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, error) {
	return f.token, f.err
}

type fakeOrderService struct {
	order   *models.Order
	orders  []*models.Order
	history []*models.OrderStatusHistory
	err     error
}

var _ service.OrderService = (*fakeOrderService)(nil)

func (f *fakeOrderService) Checkout(ctx context.Context, actor service.Actor, input service.CheckoutInput) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) GetOrder(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) ListOrders(ctx context.Context, actor service.Actor) ([]*models.Order, error) {
	return f.orders, f.err
}

func (f *fakeOrderService) UpdateStatus(ctx context.Context, actor service.Actor, orderID uuid.UUID, status models.OrderStatus, notes string) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) Cancel(ctx context.Context, actor service.Actor, orderID uuid.UUID) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) GetStatusHistory(ctx context.Context, actor service.Actor, orderID uuid.UUID) ([]*models.OrderStatusHistory, error) {
	return f.history, f.err
}

type fakeCartService struct {
	lines   []*models.CartLine
	summary *models.CartSummary
	item    *models.CartItem
	count   int
	err     error
}

var _ service.CartService = (*fakeCartService)(nil)

func (f *fakeCartService) List(ctx context.Context, userID uuid.UUID) ([]*models.CartLine, *models.CartSummary, error) {
	return f.lines, f.summary, f.err
}

func (f *fakeCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	return f.item, f.err
}

func (f *fakeCartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	return f.err
}

func (f *fakeCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return f.err
}

func (f *fakeCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return f.err
}

func (f *fakeCartService) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.count, f.err
}

type fakeCatalogService struct {
	product  *models.Product
	products []*models.Product
	err      error
}

var _ service.CatalogService = (*fakeCatalogService)(nil)

func (f *fakeCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeCatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	return f.products, f.err
}

func (f *fakeCatalogService) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeCatalogService) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeCatalogService) AdjustStock(ctx context.Context, actor service.Actor, id uuid.UUID, delta int) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeCatalogService) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	return f.err
}

// withIdentity симулирует JWT middleware, кладя личность в контекст запроса
func withIdentity(req *http.Request, role string) *http.Request {
	identity := jwtmiddleware.Identity{UserID: uuid.New(), Email: "user@example.com", Role: role}
	return req.WithContext(context.WithValue(req.Context(), jwtmiddleware.IdentityKey, identity))
}

// withURLParam кладёт параметр пути в chi-контекст запроса
func withURLParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) handlers.Response {
	t.Helper()
	var resp handlers.Response
	err := json.NewDecoder(rr.Body).Decode(&resp)
	assert.NoError(t, err, "Response decoding should succeed")
	return resp
}

func TestAuthHandler_Success(t *testing.T) {
	fakeSvc := &fakeAuthService{token: "test-token", err: nil}
	handler := handlers.AuthHandler(testLogger(), fakeSvc)

	reqBody := `{"email": "test@example.com", "password": "password123"}`
	req := httptest.NewRequest("POST", "/api/auth", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "Expected status 200 OK")
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)
}

func TestAuthHandler_InvalidJSON(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{})

	reqBody := `{"email": "test@example.com", "password":`
	req := httptest.NewRequest("POST", "/api/auth", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected status 400 for invalid JSON")
}

func TestAuthHandler_ValidationError(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{})

	// пароль короче 8 символов
	reqBody := `{"email": "test@example.com", "password": "short"}`
	req := httptest.NewRequest("POST", "/api/auth", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected status 400 for validation error")
}

func TestAuthHandler_LoginError(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{err: assert.AnError})

	reqBody := `{"email": "test@example.com", "password": "password123"}`
	req := httptest.NewRequest("POST", "/api/auth", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected status 401 for login error")
}

func validOrderBody() string {
	return `{
		"shipping_address": {
			"street": "123 Main St",
			"city": "Springfield",
			"state": "IL",
			"postal_code": "62704",
			"country": "US"
		},
		"payment_method": "cash_on_delivery"
	}`
}

func TestCreateOrderHandler_Success(t *testing.T) {
	order := &models.Order{
		ID:          uuid.New(),
		Status:      models.StatusPending,
		TotalAmount: decimal.RequireFromString("40.00"),
	}
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{order: order})

	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(validOrderBody()))
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code, "Expected status 201 Created")
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, "Order placed successfully", resp.Message)
}

func TestCreateOrderHandler_Unauthorized(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(validOrderBody()))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected 401 when identity is missing")
}

func TestCreateOrderHandler_MissingAddressFields(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	reqBody := `{"shipping_address": {"street": "123 Main St", "city": "Springfield"}}`
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(reqBody))
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected 400 when address is incomplete")
}

func TestCreateOrderHandler_EmptyCart(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{err: service.ErrEmptyCart})

	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(validOrderBody()))
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeResponse(t, rr)
	assert.False(t, resp.Success)
	assert.Equal(t, "Cart is empty", resp.Message)
}

func TestCreateOrderHandler_InsufficientStock(t *testing.T) {
	stockErr := &service.InsufficientStockError{ProductID: uuid.New(), ProductName: "Widget", Available: 3}
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{err: stockErr})

	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(validOrderBody()))
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeResponse(t, rr)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "only 3 items available")
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	handler := handlers.GetOrderHandler(testLogger(), &fakeOrderService{err: service.ErrNotFound})

	req := httptest.NewRequest("GET", "/api/orders/"+uuid.NewString(), nil)
	req = withURLParam(req, "id", uuid.NewString())
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code, "Expected 404 for unknown or foreign order")
}

func TestGetOrderHandler_InvalidID(t *testing.T) {
	handler := handlers.GetOrderHandler(testLogger(), &fakeOrderService{})

	req := httptest.NewRequest("GET", "/api/orders/not-a-uuid", nil)
	req = withURLParam(req, "id", "not-a-uuid")
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateOrderStatusHandler_InvalidTransition(t *testing.T) {
	handler := handlers.UpdateOrderStatusHandler(testLogger(), &fakeOrderService{err: service.ErrInvalidTransition})

	reqBody := `{"status": "shipped"}`
	req := httptest.NewRequest("PUT", "/api/orders/"+uuid.NewString()+"/status", bytes.NewBufferString(reqBody))
	req = withURLParam(req, "id", uuid.NewString())
	req = withIdentity(req, models.RoleAdmin)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Equal(t, "Invalid status transition", resp.Message)
}

func TestUpdateOrderStatusHandler_UnknownStatus(t *testing.T) {
	handler := handlers.UpdateOrderStatusHandler(testLogger(), &fakeOrderService{})

	// статус вне перечисления отклоняется валидатором ещё до сервиса
	reqBody := `{"status": "paused"}`
	req := httptest.NewRequest("PUT", "/api/orders/"+uuid.NewString()+"/status", bytes.NewBufferString(reqBody))
	req = withURLParam(req, "id", uuid.NewString())
	req = withIdentity(req, models.RoleAdmin)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelOrderHandler_Success(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: models.StatusCancelled}
	handler := handlers.CancelOrderHandler(testLogger(), &fakeOrderService{order: order})

	req := httptest.NewRequest("PUT", "/api/orders/"+order.ID.String()+"/cancel", nil)
	req = withURLParam(req, "id", order.ID.String())
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Equal(t, "Order cancelled successfully", resp.Message)
}

func TestAddCartItemHandler_Success(t *testing.T) {
	item := &models.CartItem{ID: uuid.New(), Quantity: 2}
	handler := handlers.AddCartItemHandler(testLogger(), &fakeCartService{item: item})

	reqBody := `{"product_id": "` + uuid.NewString() + `", "quantity": 2}`
	req := httptest.NewRequest("POST", "/api/cart/items", bytes.NewBufferString(reqBody))
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code, "Expected status 201 Created")
	resp := decodeResponse(t, rr)
	assert.Equal(t, "Item added to cart successfully", resp.Message)
}

func TestAddCartItemHandler_ZeroQuantity(t *testing.T) {
	handler := handlers.AddCartItemHandler(testLogger(), &fakeCartService{})

	reqBody := `{"product_id": "` + uuid.NewString() + `", "quantity": 0}`
	req := httptest.NewRequest("POST", "/api/cart/items", bytes.NewBufferString(reqBody))
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Quantity must be positive")
}

func TestGetCartHandler_Success(t *testing.T) {
	fakeSvc := &fakeCartService{
		lines:   []*models.CartLine{},
		summary: &models.CartSummary{TotalItems: 0, Subtotal: decimal.Zero, Currency: "USD"},
	}
	handler := handlers.GetCartHandler(testLogger(), fakeSvc)

	req := httptest.NewRequest("GET", "/api/cart", nil)
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)
}

func TestListProductsHandler_Public(t *testing.T) {
	products := []*models.Product{
		{ID: uuid.New(), Name: "Widget", Price: decimal.RequireFromString("15.00"), StockQuantity: 5, IsActive: true},
	}
	handler := handlers.ListProductsHandler(testLogger(), &fakeCatalogService{products: products})

	// каталог доступен без токена
	req := httptest.NewRequest("GET", "/api/products", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)
}

func TestListProductsHandler_BadCategoryID(t *testing.T) {
	handler := handlers.ListProductsHandler(testLogger(), &fakeCatalogService{})

	req := httptest.NewRequest("GET", "/api/products?category_id=banana", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateProductHandler_NegativePrice(t *testing.T) {
	handler := handlers.CreateProductHandler(testLogger(), &fakeCatalogService{})

	reqBody := `{"name": "Widget", "price": "-5.00", "stock_quantity": 1}`
	req := httptest.NewRequest("POST", "/api/products", bytes.NewBufferString(reqBody))
	req = withIdentity(req, models.RoleAdmin)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Price must be positive")
}

func TestAdjustStockHandler_InsufficientStock(t *testing.T) {
	stockErr := &service.InsufficientStockError{ProductID: uuid.New(), ProductName: "Widget", Available: 2}
	handler := handlers.AdjustStockHandler(testLogger(), &fakeCatalogService{err: stockErr})

	reqBody := `{"delta": -10}`
	req := httptest.NewRequest("PUT", "/api/products/"+uuid.NewString()+"/stock", bytes.NewBufferString(reqBody))
	req = withURLParam(req, "id", uuid.NewString())
	req = withIdentity(req, models.RoleAdmin)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Contains(t, resp.Message, "only 2 items available")
}

func TestRespondServiceError_InternalHidden(t *testing.T) {
	handlers.Debug = false
	handler := handlers.GetCartHandler(testLogger(), &fakeCartService{err: assert.AnError})

	req := httptest.NewRequest("GET", "/api/cart", nil)
	req = withIdentity(req, models.RoleCustomer)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Equal(t, "Internal server error", resp.Message, "Internals must not leak outside debug mode")
}
