package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"almacena/backend/internal/domain"
	"almacena/backend/internal/store"
	"almacena/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	warehouses      map[string]domain.Warehouse
	receiptsByID    map[string]domain.Receipt
	movements       []domain.Movement
	stocks          map[string]map[string]int
	ordersByID      map[string]domain.Order
	qrCodesByID     map[string]domain.QRCode
	qrCodesByToken  map[string]string
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"operator", operatorPwd, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	warehouses := map[string]domain.Warehouse{
		"main-warehouse": {
			ID:        "main-warehouse",
			Name:      "Depósito Central",
			Address:   "Ruta 22 Km 1214, Neuquén",
			Latitude:  -38.9516,
			Longitude: -68.0591,
			Active:    true,
			CreatedAt: now,
		},
	}

	products := []domain.Product{
		{ID: "prod-seed-01", Name: "Filtro de Aire", Category: "repuestos", UnitPrice: decimal.NewFromFloat(15.75), Unit: "unidad", MinStock: 5, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-02", Name: "Bujia", Category: "repuestos", UnitPrice: decimal.NewFromFloat(8.90), Unit: "unidad", MinStock: 10, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-03", Name: "Aceite 10W40", Category: "lubricantes", UnitPrice: decimal.NewFromFloat(32.00), Unit: "litro", MinStock: 12, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-04", Name: "Correa de Distribucion", Category: "repuestos", UnitPrice: decimal.NewFromFloat(45.50), Unit: "unidad", MinStock: 3, Active: true, CreatedAt: now, UpdatedAt: now},
	}

	productMap := make(map[string]domain.Product, len(products))
	stocks := map[string]map[string]int{"main-warehouse": {}}
	for _, p := range products {
		productMap[p.ID] = p
		stocks["main-warehouse"][p.ID] = 50
	}

	return &Store{
		products:        productMap,
		warehouses:      warehouses,
		receiptsByID:    make(map[string]domain.Receipt),
		movements:       make([]domain.Movement, 0, 128),
		stocks:          stocks,
		ordersByID:      make(map[string]domain.Order),
		qrCodesByID:     make(map[string]domain.QRCode),
		qrCodesByToken:  make(map[string]string),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	category := strings.TrimSpace(filter.Category)

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	if filter.Limit > 0 && len(products) > filter.Limit {
		products = products[:filter.Limit]
	}
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.UnitPrice.IsNegative() || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.Unit == "" {
		product.Unit = "unidad"
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) FindProductByName(_ context.Context, name string) (*domain.Product, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *domain.Product
	for _, p := range s.products {
		if !p.Active || strings.ToLower(p.Name) != name {
			continue
		}
		if match == nil || p.CreatedAt.Before(match.CreatedAt) {
			copyProduct := p
			match = &copyProduct
		}
	}
	if match == nil {
		return nil, store.ErrNotFound
	}
	return match, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" || product.Name == "" || product.UnitPrice.IsNegative() || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeactivateProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists || !product.Active {
		return store.ErrNotFound
	}
	product.Active = false
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return nil
}

func (s *Store) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	warehouses := make([]domain.Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		if !w.Active {
			continue
		}
		warehouses = append(warehouses, w)
	}
	slices.SortFunc(warehouses, func(a, b domain.Warehouse) int {
		return cmpString(a.Name, b.Name)
	})
	return warehouses, nil
}

func (s *Store) CreateWarehouse(_ context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	warehouse.Name = strings.TrimSpace(warehouse.Name)
	if warehouse.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if warehouse.ID == "" {
		warehouse.ID = xid.New("wh")
	}
	if _, exists := s.warehouses[warehouse.ID]; exists {
		return nil, store.ErrConflict
	}
	if warehouse.CreatedAt.IsZero() {
		warehouse.CreatedAt = time.Now().UTC()
	}
	warehouse.Active = true

	s.warehouses[warehouse.ID] = warehouse
	created := warehouse
	return &created, nil
}

func (s *Store) GetWarehouseByID(_ context.Context, id string) (*domain.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	warehouse, exists := s.warehouses[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyWarehouse := warehouse
	return &copyWarehouse, nil
}

func (s *Store) UpdateWarehouse(_ context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	warehouse.Name = strings.TrimSpace(warehouse.Name)
	if warehouse.ID == "" || warehouse.Name == "" {
		return nil, store.ErrInvalidInput
	}
	current, exists := s.warehouses[warehouse.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	warehouse.CreatedAt = current.CreatedAt

	s.warehouses[warehouse.ID] = warehouse
	updated := warehouse
	return &updated, nil
}

func (s *Store) ListReceipts(_ context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	receipts := make([]domain.Receipt, 0, len(s.receiptsByID))
	for _, r := range s.receiptsByID {
		if filter.WarehouseID != "" && r.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		receipts = append(receipts, cloneReceipt(r))
	}
	slices.SortFunc(receipts, func(a, b domain.Receipt) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(receipts) > limit {
		receipts = receipts[:limit]
	}
	return receipts, nil
}

func (s *Store) CreateReceipt(_ context.Context, receipt domain.Receipt) (*domain.Receipt, error) {
	if strings.TrimSpace(receipt.WarehouseID) == "" || len(receipt.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.warehouses[receipt.WarehouseID]; !exists {
		return nil, store.ErrNotFound
	}
	if receipt.ID == "" {
		receipt.ID = xid.New("rcpt")
	}
	if receipt.Status == "" {
		receipt.Status = domain.ReceiptStatusPending
	}
	if receipt.EntryDate == "" {
		receipt.EntryDate = time.Now().UTC().Format("2006-01-02")
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}

	items := make([]domain.ReceiptItem, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidInput
		}
		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.ReceiptID = receipt.ID
		items = append(items, item)
	}
	receipt.Items = items

	s.receiptsByID[receipt.ID] = cloneReceipt(receipt)
	created := cloneReceipt(receipt)
	return &created, nil
}

func (s *Store) GetReceiptByID(_ context.Context, id string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, exists := s.receiptsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyReceipt := cloneReceipt(receipt)
	return &copyReceipt, nil
}

func (s *Store) ConfirmReceipt(_ context.Context, id string, confirmedBy string, at time.Time) (*domain.Receipt, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, exists := s.receiptsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if receipt.Status != domain.ReceiptStatusPending {
		return nil, store.ErrConflict
	}
	if len(receipt.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	warehouseStock, ok := s.stocks[receipt.WarehouseID]
	if !ok {
		warehouseStock = make(map[string]int)
		s.stocks[receipt.WarehouseID] = warehouseStock
	}

	for i, item := range receipt.Items {
		productID := item.ProductID
		if productID == "" {
			// Items extracted from documents carry only a name. Match an
			// existing product or register a new one on confirm.
			for _, p := range s.products {
				if p.Active && strings.EqualFold(p.Name, item.Name) {
					productID = p.ID
					break
				}
			}
			if productID == "" {
				productID = xid.New("prod")
				s.products[productID] = domain.Product{
					ID:        productID,
					Name:      item.Name,
					UnitPrice: item.UnitPrice,
					Unit:      "unidad",
					Active:    true,
					CreatedAt: at,
					UpdatedAt: at,
				}
			}
			receipt.Items[i].ProductID = productID
		}

		s.movements = append(s.movements, domain.Movement{
			ID:          xid.New("mov"),
			ProductID:   productID,
			WarehouseID: receipt.WarehouseID,
			Type:        domain.MovementTypeEntry,
			Quantity:    item.Quantity,
			Reference:   receipt.ID,
			CreatedBy:   confirmedBy,
			CreatedAt:   at,
		})
		warehouseStock[productID] += item.Quantity
	}

	receipt.Status = domain.ReceiptStatusConfirmed
	receipt.ConfirmedAt = &at
	s.receiptsByID[id] = receipt
	confirmed := cloneReceipt(receipt)
	return &confirmed, nil
}

func (s *Store) DeletePendingReceipt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, exists := s.receiptsByID[id]
	if !exists {
		return store.ErrNotFound
	}
	if receipt.Status != domain.ReceiptStatusPending {
		return store.ErrConflict
	}
	delete(s.receiptsByID, id)
	return nil
}

func (s *Store) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	result := make([]domain.Movement, 0, 64)
	for _, m := range s.movements {
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != "" && m.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.Movement) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateMovement(_ context.Context, movement domain.Movement) (*domain.Movement, error) {
	if movement.ProductID == "" || movement.WarehouseID == "" || movement.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	switch movement.Type {
	case domain.MovementTypeEntry, domain.MovementTypeExit, domain.MovementTypeAdjustment:
	default:
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[movement.ProductID]
	if !exists || !product.Active {
		return nil, store.ErrNotFound
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	warehouseStock, ok := s.stocks[movement.WarehouseID]
	if !ok {
		warehouseStock = make(map[string]int)
		s.stocks[movement.WarehouseID] = warehouseStock
	}

	switch movement.Type {
	case domain.MovementTypeEntry:
		warehouseStock[movement.ProductID] += movement.Quantity
	case domain.MovementTypeExit:
		if warehouseStock[movement.ProductID] < movement.Quantity {
			return nil, store.ErrInsufficientStock
		}
		warehouseStock[movement.ProductID] -= movement.Quantity
	case domain.MovementTypeAdjustment:
		// Adjustments store the counted absolute quantity, not a delta.
		warehouseStock[movement.ProductID] = movement.Quantity
	}

	s.movements = append(s.movements, movement)
	created := movement
	return &created, nil
}

func (s *Store) GetStockLevels(_ context.Context, warehouseID string) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make([]domain.StockLevel, 0, 64)
	for whID, warehouseStock := range s.stocks {
		if warehouseID != "" && whID != warehouseID {
			continue
		}
		for productID, qty := range warehouseStock {
			product, exists := s.products[productID]
			if !exists || !product.Active {
				continue
			}
			levels = append(levels, domain.StockLevel{
				ProductID:   productID,
				ProductName: product.Name,
				WarehouseID: whID,
				Quantity:    qty,
				MinStock:    product.MinStock,
			})
		}
	}
	slices.SortFunc(levels, func(a, b domain.StockLevel) int {
		if a.ProductName == b.ProductName {
			return cmpString(a.WarehouseID, b.WarehouseID)
		}
		return cmpString(a.ProductName, b.ProductName)
	})
	return levels, nil
}

func (s *Store) ListOrders(_ context.Context, status string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, o := range s.ordersByID {
		if status != "" && o.Status != status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	order.Supplier = strings.TrimSpace(order.Supplier)
	if order.Supplier == "" || order.WarehouseID == "" || len(order.Details) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.warehouses[order.WarehouseID]; !exists {
		return nil, store.ErrNotFound
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusOpen
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt

	total := decimal.Zero
	details := make([]domain.OrderDetail, 0, len(order.Details))
	for _, d := range order.Details {
		if d.ProductID == "" || d.Quantity < 1 || d.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidInput
		}
		if _, exists := s.products[d.ProductID]; !exists {
			return nil, store.ErrNotFound
		}
		if d.ID == "" {
			d.ID = xid.New("od")
		}
		d.OrderID = order.ID
		total = total.Add(d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity))))
		details = append(details, d)
	}
	order.Details = details
	order.Total = total

	s.ordersByID[order.ID] = cloneOrder(order)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := cloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string, at time.Time) (*domain.Order, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = at
	s.ordersByID[id] = order
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) ListQRCodes(_ context.Context, entityType string, limit int) ([]domain.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}

	codes := make([]domain.QRCode, 0, len(s.qrCodesByID))
	for _, code := range s.qrCodesByID {
		if entityType != "" && code.EntityType != entityType {
			continue
		}
		codes = append(codes, code)
	}
	slices.SortFunc(codes, func(a, b domain.QRCode) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func (s *Store) CreateQRCode(_ context.Context, code domain.QRCode) (*domain.QRCode, error) {
	if code.Token == "" || code.EntityID == "" {
		return nil, store.ErrInvalidInput
	}
	if code.EntityType != domain.QREntityProduct && code.EntityType != domain.QREntityWarehouse {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.qrCodesByToken[code.Token]; exists {
		return nil, store.ErrConflict
	}
	if code.ID == "" {
		code.ID = xid.New("qr")
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}

	s.qrCodesByID[code.ID] = code
	s.qrCodesByToken[code.Token] = code.ID
	created := code
	return &created, nil
}

func (s *Store) GetQRCodeByToken(_ context.Context, token string) (*domain.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.qrCodesByToken[token]
	if !exists {
		return nil, store.ErrNotFound
	}
	code := s.qrCodesByID[id]
	copyCode := code
	return &copyCode, nil
}

func (s *Store) DeleteQRCode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, exists := s.qrCodesByID[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.qrCodesByID, id)
	delete(s.qrCodesByToken, code.Token)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "operator"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneReceipt(src domain.Receipt) domain.Receipt {
	dup := src
	items := make([]domain.ReceiptItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.ConfirmedAt != nil {
		at := *src.ConfirmedAt
		dup.ConfirmedAt = &at
	}
	return dup
}

func cloneOrder(src domain.Order) domain.Order {
	dup := src
	details := make([]domain.OrderDetail, len(src.Details))
	copy(details, src.Details)
	dup.Details = details
	return dup
}
