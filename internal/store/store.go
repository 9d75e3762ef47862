package store

import (
	"context"
	"errors"
	"time"

	"almacena/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id string) error

	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error)
	GetWarehouseByID(ctx context.Context, id string) (*domain.Warehouse, error)
	UpdateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error)

	ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error)
	CreateReceipt(ctx context.Context, receipt domain.Receipt) (*domain.Receipt, error)
	GetReceiptByID(ctx context.Context, id string) (*domain.Receipt, error)
	// ConfirmReceipt flips the receipt to Confirmed, writes one entry
	// movement per item and increments stock, all in one transaction.
	ConfirmReceipt(ctx context.Context, id string, confirmedBy string, at time.Time) (*domain.Receipt, error)
	DeletePendingReceipt(ctx context.Context, id string) error

	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error)
	CreateMovement(ctx context.Context, movement domain.Movement) (*domain.Movement, error)
	GetStockLevels(ctx context.Context, warehouseID string) ([]domain.StockLevel, error)

	ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, error)

	ListQRCodes(ctx context.Context, entityType string, limit int) ([]domain.QRCode, error)
	CreateQRCode(ctx context.Context, code domain.QRCode) (*domain.QRCode, error)
	GetQRCodeByToken(ctx context.Context, token string) (*domain.QRCode, error)
	DeleteQRCode(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
