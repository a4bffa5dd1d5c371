package service_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/service"
	"github.com/linemk/gomarket/internal/storage"
	"github.com/shopspring/decimal"
)

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

type fakeUserRepo struct {
	users map[string]*models.User // ключ — email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New()
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

type fakeProductRepo struct {
	products map[uuid.UUID]*models.Product
	undo     map[uuid.UUID]int // остатки на момент первого списания в транзакции
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*models.Product)}
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	p.ID = uuid.New()
	p.IsActive = true
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeProductRepo) UpdateProduct(ctx context.Context, p *models.Product) error {
	existing, ok := f.products[p.ID]
	if !ok || !existing.IsActive {
		return storage.ErrProductNotFound
	}
	existing.Name = p.Name
	existing.Price = p.Price
	return nil
}

func (f *fakeProductRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error {
	p, ok := f.products[id]
	if !ok || p.StockQuantity < qty {
		return storage.ErrInsufficientStock
	}
	if f.undo == nil {
		f.undo = make(map[uuid.UUID]int)
	}
	if _, seen := f.undo[id]; !seen {
		f.undo[id] = p.StockQuantity
	}
	p.StockQuantity -= qty
	return nil
}

// rollbackStock эмулирует откат транзакции БД: остатки, списанные через
// DecrementStockTx, возвращаются к значениям до начала транзакции
func (f *fakeProductRepo) rollbackStock() {
	for id, stock := range f.undo {
		f.products[id].StockQuantity = stock
	}
	f.undo = nil
}

func (f *fakeProductRepo) GetStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (int, error) {
	p, ok := f.products[id]
	if !ok {
		return 0, storage.ErrProductNotFound
	}
	return p.StockQuantity, nil
}

func (f *fakeProductRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	if p.StockQuantity+delta < 0 {
		return nil, storage.ErrInsufficientStock
	}
	p.StockQuantity += delta
	return p, nil
}

func (f *fakeProductRepo) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	p, ok := f.products[id]
	if !ok || !p.IsActive {
		return storage.ErrProductNotFound
	}
	p.IsActive = false
	return nil
}

type fakeCartRepo struct {
	lines map[uuid.UUID]*models.CartLine // ключ — id позиции
	order []uuid.UUID                    // порядок добавления: обход корзины должен быть детерминированным
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{lines: make(map[uuid.UUID]*models.CartLine)}
}

// addLine кладёт позицию в корзину напрямую, минуя сервис
func (f *fakeCartRepo) addLine(userID uuid.UUID, p *models.Product, quantity int) *models.CartLine {
	line := &models.CartLine{
		CartItem: models.CartItem{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: p.ID,
			Quantity:  quantity,
		},
		ProductName:  p.Name,
		UnitPrice:    p.Price,
		Stock:        p.StockQuantity,
		ActiveFlag:   p.IsActive,
		LineSubtotal: p.Price.Mul(decimalFromInt(quantity)),
	}
	f.lines[line.ID] = line
	f.order = append(f.order, line.ID)
	return line
}

func (f *fakeCartRepo) ListLines(ctx context.Context, userID uuid.UUID) ([]*models.CartLine, error) {
	var out []*models.CartLine
	for _, id := range f.order {
		line, ok := f.lines[id]
		if !ok || line.UserID != userID {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

func (f *fakeCartRepo) ListLinesTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) ([]*models.CartLine, error) {
	return f.ListLines(ctx, userID)
}

func (f *fakeCartRepo) GetItemByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	for _, line := range f.lines {
		if line.UserID == userID && line.ProductID == productID {
			return &line.CartItem, nil
		}
	}
	return nil, storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) GetLineByID(ctx context.Context, userID, itemID uuid.UUID) (*models.CartLine, error) {
	line, ok := f.lines[itemID]
	if !ok || line.UserID != userID {
		return nil, storage.ErrCartItemNotFound
	}
	return line, nil
}

func (f *fakeCartRepo) InsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	item.ID = uuid.New()
	f.lines[item.ID] = &models.CartLine{CartItem: *item}
	f.order = append(f.order, item.ID)
	return item, nil
}

func (f *fakeCartRepo) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	line, ok := f.lines[itemID]
	if !ok || line.UserID != userID {
		return storage.ErrCartItemNotFound
	}
	line.Quantity = quantity
	return nil
}

func (f *fakeCartRepo) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	line, ok := f.lines[itemID]
	if !ok || line.UserID != userID {
		return storage.ErrCartItemNotFound
	}
	delete(f.lines, itemID)
	return nil
}

func (f *fakeCartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	for id, line := range f.lines {
		if line.UserID == userID {
			delete(f.lines, id)
		}
	}
	return nil
}

func (f *fakeCartRepo) ClearTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	return f.Clear(ctx, userID)
}

func (f *fakeCartRepo) CountItems(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, line := range f.lines {
		if line.UserID == userID {
			count += line.Quantity
		}
	}
	return count, nil
}

type fakeOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	items   map[uuid.UUID][]*models.OrderItem          // ключ — orderID
	history map[uuid.UUID][]*models.OrderStatusHistory // ключ — orderID
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:  make(map[uuid.UUID]*models.Order),
		items:   make(map[uuid.UUID][]*models.OrderItem),
		history: make(map[uuid.UUID][]*models.OrderStatusHistory),
	}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	item.ID = uuid.New()
	f.items[item.OrderID] = append(f.items[item.OrderID], item)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderRepo) ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListAllOrders(ctx context.Context) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus) error {
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (f *fakeOrderRepo) AppendStatusHistoryTx(ctx context.Context, tx *sql.Tx, h *models.OrderStatusHistory) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	f.history[h.OrderID] = append(f.history[h.OrderID], h)
	return nil
}

func (f *fakeOrderRepo) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderStatusHistory, error) {
	return f.history[orderID], nil
}

// fakeNotifier записывает разосланные события для проверок в тестах
type fakeNotifier struct {
	placedOrders  []*models.Order
	statusChanges []*models.Order
	stockEvents   []*models.Product
	cartEvents    map[uuid.UUID][]int
}

var _ service.Notifier = (*fakeNotifier)(nil)

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{cartEvents: make(map[uuid.UUID][]int)}
}

func (f *fakeNotifier) OrderPlaced(order *models.Order, customerEmail string) {
	f.placedOrders = append(f.placedOrders, order)
}

func (f *fakeNotifier) OrderStatusChanged(order *models.Order, actor service.Actor, notes string) {
	f.statusChanges = append(f.statusChanges, order)
}

func (f *fakeNotifier) InventoryAdjusted(product *models.Product, actor service.Actor) {
	f.stockEvents = append(f.stockEvents, product)
}

func (f *fakeNotifier) CartChanged(userID uuid.UUID, totalItems int) {
	f.cartEvents[userID] = append(f.cartEvents[userID], totalItems)
}

type fakeMailer struct {
	confirmations []string // email получателей
	statusUpdates []string
}

var _ service.Mailer = (*fakeMailer)(nil)

func (f *fakeMailer) SendOrderConfirmation(email string, order *models.Order) {
	f.confirmations = append(f.confirmations, email)
}

func (f *fakeMailer) SendStatusUpdate(email string, order *models.Order) {
	f.statusUpdates = append(f.statusUpdates, email)
}

// fakeCache хранит значения в памяти сериализованными, как это делает Redis
type fakeCache struct {
	data            map[string][]byte
	deletedPatterns []string
}

var _ service.Cache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest any) bool {
	raw, ok := f.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	f.data[key] = raw
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		delete(f.data, key)
	}
}

func (f *fakeCache) DeletePattern(ctx context.Context, pattern string) {
	f.deletedPatterns = append(f.deletedPatterns, pattern)
	f.data = make(map[string][]byte)
}
