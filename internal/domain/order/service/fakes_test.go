package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	inventoryModel "storefront/internal/domain/inventory/model"
	inventoryRepository "storefront/internal/domain/inventory/repository"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	walletModel "storefront/internal/domain/wallet/model"
	"storefront/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memoryProducts 内存商品库存
type memoryProducts struct {
	mu       sync.Mutex
	products map[string]*inventoryModel.Product
}

func newMemoryProducts(products ...inventoryModel.Product) *memoryProducts {
	m := &memoryProducts{products: make(map[string]*inventoryModel.Product)}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *memoryProducts) WithTx(tx *gorm.DB) inventoryRepository.ProductRepository { return m }

func (m *memoryProducts) FindByIDs(ctx context.Context, ids []string) ([]inventoryModel.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inventoryModel.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryProducts) DecrementStock(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[productID]
	if p == nil || p.Stock < qty {
		return inventoryRepository.ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

func (m *memoryProducts) DecrementStockClamped(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[productID]
	p.Stock -= qty
	if p.Stock < 0 {
		p.Stock = 0
	}
	return nil
}

func (m *memoryProducts) IncrementStock(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID].Stock += qty
	return nil
}

func (m *memoryProducts) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

// memoryReservations 内存预留表
type memoryReservations struct {
	mu   sync.Mutex
	rows []inventoryModel.StockReservation
}

func (m *memoryReservations) WithTx(tx *gorm.DB) inventoryRepository.ReservationRepository { return m }

func (m *memoryReservations) Create(ctx context.Context, r *inventoryModel.StockReservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = fmt.Sprintf("res-%d", len(m.rows)+1)
	m.rows = append(m.rows, *r)
	return nil
}

func (m *memoryReservations) deleteWhere(match func(r inventoryModel.StockReservation) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n
}

func (m *memoryReservations) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return m.deleteWhere(func(r inventoryModel.StockReservation) bool { return r.UserID == userID }), nil
}

func (m *memoryReservations) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	return m.deleteWhere(func(r inventoryModel.StockReservation) bool { return r.OrderID == orderID }), nil
}

func (m *memoryReservations) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteWhere(func(r inventoryModel.StockReservation) bool { return r.Expired(now) }), nil
}

func (m *memoryReservations) SumActiveByProduct(ctx context.Context, productIDs []string, excludeUserID string, now time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	sum := make(map[string]int)
	for _, r := range m.rows {
		if wanted[r.ProductID] && r.UserID != excludeUserID && !r.Expired(now) {
			sum[r.ProductID] += r.Quantity
		}
	}
	return sum, nil
}

func (m *memoryReservations) all() []inventoryModel.StockReservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inventoryModel.StockReservation(nil), m.rows...)
}

// memoryOrders 内存订单仓储，FindForUpdate 返回存储中的同一指针
type memoryOrders struct {
	mu        sync.Mutex
	seq       map[int]int64
	orders    map[string]*model.Order
	discounts map[string]*model.DiscountRequest
	updates   []map[string]interface{}
}

func newMemoryOrders(discounts ...model.DiscountRequest) *memoryOrders {
	m := &memoryOrders{
		seq:       make(map[int]int64),
		orders:    make(map[string]*model.Order),
		discounts: make(map[string]*model.DiscountRequest),
	}
	for i := range discounts {
		d := discounts[i]
		m.discounts[d.ID] = &d
	}
	return m
}

func (m *memoryOrders) WithTx(tx *gorm.DB) repository.OrderRepository { return m }

func (m *memoryOrders) NextOrderNumber(ctx context.Context, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[year]++
	return fmt.Sprintf("ORD-%d-%06d", year, m.seq[year]), nil
}

func (m *memoryOrders) Create(ctx context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memoryOrders) FindByID(ctx context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryOrders) FindForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return m.FindByID(ctx, id)
}

func (m *memoryOrders) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	m.updates = append(m.updates, fields)
	return nil
}

func (m *memoryOrders) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memoryOrders) OwnerOf(ctx context.Context, id string) (string, error) {
	o, err := m.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return o.UserID, nil
}

func (m *memoryOrders) FindApprovedDiscounts(ctx context.Context, userID string, ids []string) ([]model.DiscountRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DiscountRequest
	for _, id := range ids {
		if d, ok := m.discounts[id]; ok && d.UserID == userID && d.Status == model.DiscountApproved {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memoryOrders) MarkDiscountsUsed(ctx context.Context, userID string, ids []string, orderID string, usedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if d, ok := m.discounts[id]; ok && d.UserID == userID && d.Status == model.DiscountApproved {
			d.Status = model.DiscountUsed
			d.OrderID = &orderID
			at := usedAt
			d.UsedAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memoryOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// fakeLedger 内存钱包余额
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func (l *fakeLedger) DebitForPurchase(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal, orderID, orderNumber string) (*walletModel.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balances[userID]
	if balance.LessThan(amount) {
		return nil, apperr.BusinessRule(apperr.CodeInsufficientBalance, "insufficient wallet balance")
	}
	l.balances[userID] = balance.Sub(amount)
	return &walletModel.Transaction{
		Type:      walletModel.TransactionPurchase,
		Status:    walletModel.StatusCompleted,
		Amount:    amount,
		Reference: orderNumber,
	}, nil
}

func (l *fakeLedger) balance(userID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}
