package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit"`
	MinStock    int             `json:"min_stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit"`
	MinStock    int             `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Unit        *string          `json:"unit,omitempty"`
	MinStock    *int             `json:"min_stock,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

type ProductFilter struct {
	Search   string
	Category string
	Limit    int
}

type Warehouse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type WarehouseCreateRequest struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type WarehouseUpdateRequest struct {
	Name      *string  `json:"name,omitempty"`
	Address   *string  `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Active    *bool    `json:"active,omitempty"`
}

// Receipt (remito) records incoming goods for a warehouse. Status stays
// "Pending" until confirmed, which generates entry movements.
type Receipt struct {
	ID          string        `json:"id"`
	WarehouseID string        `json:"warehouse_id"`
	OrderID     string        `json:"order_id,omitempty"`
	EntryDate   string        `json:"entry_date"`
	Status      string        `json:"status"`
	SourceFile  string        `json:"source_file,omitempty"`
	CreatedBy   string        `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	Items       []ReceiptItem `json:"items,omitempty"`
}

type ReceiptItem struct {
	ID          string          `json:"id"`
	ReceiptID   string          `json:"receipt_id"`
	ProductID   string          `json:"product_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type ReceiptItemRequest struct {
	ProductID   string          `json:"product_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type ReceiptCreateRequest struct {
	WarehouseID string               `json:"warehouse_id"`
	OrderID     string               `json:"order_id,omitempty"`
	EntryDate   string               `json:"entry_date,omitempty"`
	SourceFile  string               `json:"source_file,omitempty"`
	Items       []ReceiptItemRequest `json:"items"`
}

type ReceiptFilter struct {
	WarehouseID string
	Status      string
	Limit       int
}

type Movement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Reference   string    `json:"reference,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type MovementCreateRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	Reference   string `json:"reference,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type MovementFilter struct {
	ProductID   string
	WarehouseID string
	Type        string
	Limit       int
}

type StockLevel struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
	MinStock    int    `json:"min_stock"`
}

type StockResponse struct {
	WarehouseID string       `json:"warehouse_id"`
	Levels      []StockLevel `json:"levels"`
}

type Order struct {
	ID          string          `json:"id"`
	Supplier    string          `json:"supplier"`
	Status      string          `json:"status"`
	WarehouseID string          `json:"warehouse_id"`
	Total       decimal.Decimal `json:"total"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Details     []OrderDetail   `json:"details,omitempty"`
}

type OrderDetail struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderDetailRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreateRequest struct {
	Supplier    string               `json:"supplier"`
	WarehouseID string               `json:"warehouse_id"`
	Details     []OrderDetailRequest `json:"details"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

// QRCode binds an opaque token to a product or warehouse so printed
// labels can be resolved back to the entity they tag.
type QRCode struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Label      string    `json:"label,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type QRCodeCreateRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Label      string `json:"label,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// ExtractedProduct is a best-effort line item guessed from receipt text.
// Description is always empty at extraction time; it is filled in later
// when an operator reviews the receipt.
type ExtractedProduct struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// ExtractedReceipt is the transient result of one extraction call. The
// extractor never persists it; callers decide what to store.
type ExtractedReceipt struct {
	WarehouseID string             `json:"warehouse_id"`
	EntryDate   string             `json:"entry_date"`
	OrderID     string             `json:"order_id,omitempty"`
	Status      string             `json:"status"`
	Products    []ExtractedProduct `json:"products"`
}

type ExtractionResult struct {
	Success bool             `json:"success"`
	Text    string           `json:"text"`
	Data    ExtractedReceipt `json:"data"`
}

const (
	ReceiptStatusPending   = "Pending"
	ReceiptStatusConfirmed = "Confirmed"
	ReceiptStatusRejected  = "Rejected"
)

const (
	MovementTypeEntry      = "entry"
	MovementTypeExit       = "exit"
	MovementTypeAdjustment = "adjustment"
)

const (
	OrderStatusOpen      = "open"
	OrderStatusSent      = "sent"
	OrderStatusReceived  = "received"
	OrderStatusCancelled = "cancelled"
)

const (
	QREntityProduct   = "product"
	QREntityWarehouse = "warehouse"
)
