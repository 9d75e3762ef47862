package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"almacena/backend/internal/domain"
	"almacena/backend/internal/store"
	"almacena/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	search := strings.TrimSpace(filter.Search)
	category := strings.TrimSpace(filter.Category)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, unit_price, unit, min_stock, active, created_at, updated_at
		FROM products
		WHERE active = true
			AND ($1 = '' OR name ILIKE '%' || $1 || '%')
			AND ($2 = '' OR category = $2)
		ORDER BY category, name
		LIMIT $3
	`, search, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.Unit, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.UnitPrice.IsNegative() || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.Unit == "" {
		product.Unit = "unidad"
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category, unit_price, unit, min_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.Description, product.Category, product.UnitPrice, product.Unit, product.MinStock, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, unit_price, unit, min_stock, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.Unit, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidInput
	}

	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, unit_price, unit, min_stock, active, created_at, updated_at
		FROM products
		WHERE active = true AND lower(name) = lower($1)
		ORDER BY created_at ASC
		LIMIT 1
	`, name).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.Unit, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" || product.Name == "" || product.UnitPrice.IsNegative() || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, unit_price = $5, unit = $6, min_stock = $7, active = $8, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.Category, product.UnitPrice, product.Unit, product.MinStock, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeactivateProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET active = false, updated_at = now()
		WHERE id = $1 AND active = true
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, latitude, longitude, active, created_at
		FROM warehouses
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	warehouses := make([]domain.Warehouse, 0, 16)
	for rows.Next() {
		var w domain.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Address, &w.Latitude, &w.Longitude, &w.Active, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.CreatedAt = w.CreatedAt.UTC()
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return warehouses, nil
}

func (s *Store) CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	warehouse.Name = strings.TrimSpace(warehouse.Name)
	if warehouse.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if warehouse.ID == "" {
		warehouse.ID = xid.New("wh")
	}
	if warehouse.CreatedAt.IsZero() {
		warehouse.CreatedAt = time.Now().UTC()
	}
	warehouse.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, address, latitude, longitude, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, warehouse.ID, warehouse.Name, warehouse.Address, warehouse.Latitude, warehouse.Longitude, warehouse.Active, warehouse.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := warehouse
	return &created, nil
}

func (s *Store) GetWarehouseByID(ctx context.Context, id string) (*domain.Warehouse, error) {
	var w domain.Warehouse
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, latitude, longitude, active, created_at
		FROM warehouses
		WHERE id = $1
	`, id).Scan(&w.ID, &w.Name, &w.Address, &w.Latitude, &w.Longitude, &w.Active, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return &w, nil
}

func (s *Store) UpdateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	warehouse.Name = strings.TrimSpace(warehouse.Name)
	if warehouse.ID == "" || warehouse.Name == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE warehouses
		SET name = $2, address = $3, latitude = $4, longitude = $5, active = $6
		WHERE id = $1
	`, warehouse.ID, warehouse.Name, warehouse.Address, warehouse.Latitude, warehouse.Longitude, warehouse.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetWarehouseByID(ctx, warehouse.ID)
}

func (s *Store) ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, warehouse_id, COALESCE(order_id,''), entry_date, status,
			COALESCE(source_file,''), COALESCE(created_by,''), created_at, confirmed_at
		FROM receipts
		WHERE ($1 = '' OR warehouse_id = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, filter.WarehouseID, filter.Status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]domain.Receipt, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return receipts, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, COALESCE(product_id,''), name, description, quantity, unit_price
		FROM receipt_items
		WHERE receipt_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemMap := make(map[string][]domain.ReceiptItem, len(ids))
	for itemRows.Next() {
		var item domain.ReceiptItem
		if err := itemRows.Scan(&item.ID, &item.ReceiptID, &item.ProductID, &item.Name, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		itemMap[item.ReceiptID] = append(itemMap[item.ReceiptID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range receipts {
		receipts[i].Items = itemMap[receipts[i].ID]
	}
	return receipts, nil
}

func (s *Store) CreateReceipt(ctx context.Context, receipt domain.Receipt) (*domain.Receipt, error) {
	if strings.TrimSpace(receipt.WarehouseID) == "" || len(receipt.Items) == 0 {
		return nil, store.ErrInvalidInput
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (id, warehouse_id, order_id, entry_date, status, source_file, created_by, created_at, confirmed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL)
	`, receipt.ID, receipt.WarehouseID, nullIfEmpty(receipt.OrderID), receipt.EntryDate, receipt.Status,
		nullIfEmpty(receipt.SourceFile), nullIfEmpty(receipt.CreatedBy), receipt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrNotFound
		}
		return nil, err
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
		_, err := tx.ExecContext(ctx, `
			INSERT INTO receipt_items (id, receipt_id, product_id, name, description, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, item.ReceiptID, nullIfEmpty(item.ProductID), item.Name, item.Description, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	receipt.Items = items

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := receipt
	return &created, nil
}

func (s *Store) GetReceiptByID(ctx context.Context, id string) (*domain.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, warehouse_id, COALESCE(order_id,''), entry_date, status,
			COALESCE(source_file,''), COALESCE(created_by,''), created_at, confirmed_at
		FROM receipts
		WHERE id = $1
	`, id)
	receipt, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, COALESCE(product_id,''), name, description, quantity, unit_price
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReceiptItem, 0, 8)
	for rows.Next() {
		var item domain.ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.ProductID, &item.Name, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	receipt.Items = items
	return receipt, nil
}

func (s *Store) ConfirmReceipt(ctx context.Context, id string, confirmedBy string, at time.Time) (*domain.Receipt, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var receipt domain.Receipt
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, warehouse_id, status
		FROM receipts
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&receipt.ID, &receipt.WarehouseID, &receipt.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if receipt.Status != domain.ReceiptStatusPending {
		return nil, store.ErrConflict
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT id, COALESCE(product_id,''), name, description, quantity, unit_price
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	items := make([]domain.ReceiptItem, 0, 8)
	for itemRows.Next() {
		var item domain.ReceiptItem
		if err := itemRows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}

	for _, item := range items {
		productID := item.ProductID
		if productID == "" {
			// Items extracted from documents carry only a name. Match an
			// existing product or register a new one on confirm.
			err := pgTx.QueryRowContext(ctx, `
				SELECT id FROM products
				WHERE active = true AND lower(name) = lower($1)
				ORDER BY created_at ASC
				LIMIT 1
			`, item.Name).Scan(&productID)
			if errors.Is(err, sql.ErrNoRows) {
				productID = xid.New("prod")
				_, err = pgTx.ExecContext(ctx, `
					INSERT INTO products (id, name, description, category, unit_price, unit, min_stock, active, created_at, updated_at)
					VALUES ($1,$2,$3,'',$4,'unidad',0,true,$5,$5)
				`, productID, item.Name, item.Description, item.UnitPrice, at)
			}
			if err != nil {
				return nil, err
			}
			_, err = pgTx.ExecContext(ctx, `
				UPDATE receipt_items SET product_id = $2 WHERE id = $1
			`, item.ID, productID)
			if err != nil {
				return nil, err
			}
		}

		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO movements (id, product_id, warehouse_id, type, quantity, reference, notes, created_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,'',$7,$8)
		`, xid.New("mov"), productID, receipt.WarehouseID, domain.MovementTypeEntry, item.Quantity, receipt.ID, nullIfEmpty(confirmedBy), at)
		if err != nil {
			return nil, err
		}

		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO warehouse_stocks (warehouse_id, product_id, qty, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (warehouse_id, product_id)
			DO UPDATE SET qty = warehouse_stocks.qty + EXCLUDED.qty, updated_at = now()
		`, receipt.WarehouseID, productID, item.Quantity)
		if err != nil {
			return nil, err
		}
	}

	res, err := pgTx.ExecContext(ctx, `
		UPDATE receipts
		SET status = $2, confirmed_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.ReceiptStatusConfirmed, at, domain.ReceiptStatusPending)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrConflict
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetReceiptByID(ctx, id)
}

func (s *Store) DeletePendingReceipt(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status FROM receipts WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if status != domain.ReceiptStatusPending {
		return store.ErrConflict
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM receipt_items WHERE receipt_id = $1`, id); err != nil {
		return err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM receipts WHERE id = $1`, id); err != nil {
		return err
	}
	return pgTx.Commit()
}

func (s *Store) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, warehouse_id, type, quantity, COALESCE(reference,''), COALESCE(notes,''), COALESCE(created_by,''), created_at
		FROM movements
		WHERE ($1 = '' OR product_id = $1)
			AND ($2 = '' OR warehouse_id = $2)
			AND ($3 = '' OR type = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, filter.ProductID, filter.WarehouseID, filter.Type, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0, limit)
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.Type, &m.Quantity, &m.Reference, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) CreateMovement(ctx context.Context, movement domain.Movement) (*domain.Movement, error) {
	if movement.ProductID == "" || movement.WarehouseID == "" || movement.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	switch movement.Type {
	case domain.MovementTypeEntry, domain.MovementTypeExit, domain.MovementTypeAdjustment:
	default:
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var productExists bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND active = true)
	`, movement.ProductID).Scan(&productExists)
	if err != nil {
		return nil, err
	}
	if !productExists {
		return nil, store.ErrNotFound
	}

	switch movement.Type {
	case domain.MovementTypeEntry:
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO warehouse_stocks (warehouse_id, product_id, qty, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (warehouse_id, product_id)
			DO UPDATE SET qty = warehouse_stocks.qty + EXCLUDED.qty, updated_at = now()
		`, movement.WarehouseID, movement.ProductID, movement.Quantity)
		if err != nil {
			return nil, err
		}
	case domain.MovementTypeExit:
		res, err := pgTx.ExecContext(ctx, `
			UPDATE warehouse_stocks
			SET qty = qty - $3, updated_at = now()
			WHERE warehouse_id = $1 AND product_id = $2 AND qty >= $3
		`, movement.WarehouseID, movement.ProductID, movement.Quantity)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrInsufficientStock
		}
	case domain.MovementTypeAdjustment:
		// Adjustments store the counted absolute quantity, not a delta.
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO warehouse_stocks (warehouse_id, product_id, qty, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (warehouse_id, product_id)
			DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
		`, movement.WarehouseID, movement.ProductID, movement.Quantity)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO movements (id, product_id, warehouse_id, type, quantity, reference, notes, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, movement.ID, movement.ProductID, movement.WarehouseID, movement.Type, movement.Quantity,
		nullIfEmpty(movement.Reference), movement.Notes, nullIfEmpty(movement.CreatedBy), movement.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := movement
	return &created, nil
}

func (s *Store) GetStockLevels(ctx context.Context, warehouseID string) ([]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ws.product_id, p.name, ws.warehouse_id, ws.qty, p.min_stock
		FROM warehouse_stocks ws
		JOIN products p ON p.id = ws.product_id
		WHERE ($1 = '' OR ws.warehouse_id = $1) AND p.active = true
		ORDER BY p.name
	`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]domain.StockLevel, 0, 64)
	for rows.Next() {
		var level domain.StockLevel
		if err := rows.Scan(&level.ProductID, &level.ProductName, &level.WarehouseID, &level.Quantity, &level.MinStock); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

func (s *Store) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier, status, warehouse_id, total, COALESCE(created_by,''), created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Supplier, &o.Status, &o.WarehouseID, &o.Total, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		o.UpdatedAt = o.UpdatedAt.UTC()
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	detailRows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_details
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer detailRows.Close()

	detailMap := make(map[string][]domain.OrderDetail, len(ids))
	for detailRows.Next() {
		var d domain.OrderDetail
		if err := detailRows.Scan(&d.ID, &d.OrderID, &d.ProductID, &d.Quantity, &d.UnitPrice); err != nil {
			return nil, err
		}
		detailMap[d.OrderID] = append(detailMap[d.OrderID], d)
	}
	if err := detailRows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Details = detailMap[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	order.Supplier = strings.TrimSpace(order.Supplier)
	if order.Supplier == "" || order.WarehouseID == "" || len(order.Details) == 0 {
		return nil, store.ErrInvalidInput
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
	for _, d := range order.Details {
		if d.ProductID == "" || d.Quantity < 1 || d.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidInput
		}
		total = total.Add(d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	order.Total = total

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, supplier, status, warehouse_id, total, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, order.ID, order.Supplier, order.Status, order.WarehouseID, order.Total, nullIfEmpty(order.CreatedBy), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	details := make([]domain.OrderDetail, 0, len(order.Details))
	for _, d := range order.Details {
		if d.ID == "" {
			d.ID = xid.New("od")
		}
		d.OrderID = order.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_details (id, order_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, d.ID, d.OrderID, d.ProductID, d.Quantity, d.UnitPrice)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		details = append(details, d)
	}
	order.Details = details

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supplier, status, warehouse_id, total, COALESCE(created_by,''), created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Supplier, &o.Status, &o.WarehouseID, &o.Total, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_details
		WHERE order_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]domain.OrderDetail, 0, 8)
	for rows.Next() {
		var d domain.OrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.ProductID, &d.Quantity, &d.UnitPrice); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	o.Details = details
	return &o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, at)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) ListQRCodes(ctx context.Context, entityType string, limit int) ([]domain.QRCode, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, entity_type, entity_id, COALESCE(label,''), created_at
		FROM qr_codes
		WHERE ($1 = '' OR entity_type = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, entityType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := make([]domain.QRCode, 0, limit)
	for rows.Next() {
		var code domain.QRCode
		if err := rows.Scan(&code.ID, &code.Token, &code.EntityType, &code.EntityID, &code.Label, &code.CreatedAt); err != nil {
			return nil, err
		}
		code.CreatedAt = code.CreatedAt.UTC()
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *Store) CreateQRCode(ctx context.Context, code domain.QRCode) (*domain.QRCode, error) {
	if code.Token == "" || code.EntityID == "" {
		return nil, store.ErrInvalidInput
	}
	if code.EntityType != domain.QREntityProduct && code.EntityType != domain.QREntityWarehouse {
		return nil, store.ErrInvalidInput
	}
	if code.ID == "" {
		code.ID = xid.New("qr")
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qr_codes (id, token, entity_type, entity_id, label, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, code.ID, code.Token, code.EntityType, code.EntityID, nullIfEmpty(code.Label), code.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := code
	return &created, nil
}

func (s *Store) GetQRCodeByToken(ctx context.Context, token string) (*domain.QRCode, error) {
	var code domain.QRCode
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, entity_type, entity_id, COALESCE(label,''), created_at
		FROM qr_codes
		WHERE token = $1
	`, token).Scan(&code.ID, &code.Token, &code.EntityType, &code.EntityID, &code.Label, &code.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	code.CreatedAt = code.CreatedAt.UTC()
	return &code, nil
}

func (s *Store) DeleteQRCode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM qr_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "operator"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*domain.Receipt, error) {
	var r domain.Receipt
	var confirmedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.WarehouseID, &r.OrderID, &r.EntryDate, &r.Status, &r.SourceFile, &r.CreatedBy, &r.CreatedAt, &confirmedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if confirmedAt.Valid {
		at := confirmedAt.Time.UTC()
		r.ConfirmedAt = &at
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
