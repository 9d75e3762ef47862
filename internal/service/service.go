package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"almacena/backend/internal/cache"
	"almacena/backend/internal/domain"
	"almacena/backend/internal/extract"
	"almacena/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// DocumentReader turns an uploaded receipt document into plain text.
type DocumentReader interface {
	Text(ctx context.Context, filename string, data []byte) (string, error)
}

type Service struct {
	repo               store.Repository
	reader             DocumentReader
	parser             *extract.Parser
	cache              cache.ExtractionCache
	cacheTTL           time.Duration
	defaultWarehouseID string
}

func New(repo store.Repository, reader DocumentReader, parser *extract.Parser, extractionCache cache.ExtractionCache, cacheTTL time.Duration, defaultWarehouseID string) *Service {
	if defaultWarehouseID == "" {
		defaultWarehouseID = "main-warehouse"
	}
	if extractionCache == nil {
		extractionCache = cache.NoopExtractionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Service{
		repo:               repo,
		reader:             reader,
		parser:             parser,
		cache:              extractionCache,
		cacheTTL:           cacheTTL,
		defaultWarehouseID: defaultWarehouseID,
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}

func actorUsername(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "system"
	}
	return actor.Username
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.UnitPrice.IsNegative() || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		UnitPrice:   req.UnitPrice,
		Unit:        strings.TrimSpace(req.Unit),
		MinStock:    req.MinStock,
		Active:      true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	log.Printf("[service] product created id=%s name=%q by=%s", created.ID, created.Name, actorUsername(ctx))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	log.Printf("[service] product deactivated id=%s by=%s", id, actorUsername(ctx))
	return nil
}

func (s *Service) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *Service) GetWarehouse(ctx context.Context, id string) (domain.Warehouse, error) {
	warehouse, err := s.repo.GetWarehouseByID(ctx, id)
	if err != nil {
		return domain.Warehouse{}, err
	}
	return *warehouse, nil
}

func (s *Service) CreateWarehouse(ctx context.Context, req domain.WarehouseCreateRequest) (domain.Warehouse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Warehouse{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Warehouse{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateWarehouse(ctx, domain.Warehouse{
		Name:      req.Name,
		Address:   strings.TrimSpace(req.Address),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Active:    true,
	})
	if err != nil {
		return domain.Warehouse{}, err
	}
	return *created, nil
}

func (s *Service) UpdateWarehouse(ctx context.Context, id string, req domain.WarehouseUpdateRequest) (domain.Warehouse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Warehouse{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Warehouse{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetWarehouseByID(ctx, id)
	if err != nil {
		return domain.Warehouse{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Warehouse{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Latitude != nil {
		updated.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		updated.Longitude = *req.Longitude
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateWarehouse(ctx, updated)
	if err != nil {
		return domain.Warehouse{}, err
	}
	return *saved, nil
}

func (s *Service) ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	return s.repo.ListReceipts(ctx, filter)
}

func (s *Service) GetReceipt(ctx context.Context, id string) (domain.Receipt, error) {
	receipt, err := s.repo.GetReceiptByID(ctx, id)
	if err != nil {
		return domain.Receipt{}, err
	}
	return *receipt, nil
}

func (s *Service) CreateReceipt(ctx context.Context, req domain.ReceiptCreateRequest) (domain.Receipt, error) {
	if req.WarehouseID == "" {
		req.WarehouseID = s.defaultWarehouseID
	}
	if len(req.Items) == 0 {
		return domain.Receipt{}, store.ErrInvalidInput
	}

	items := make([]domain.ReceiptItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.ReceiptItem{
			ProductID:   item.ProductID,
			Name:        strings.TrimSpace(item.Name),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	receipt := domain.Receipt{
		WarehouseID: req.WarehouseID,
		OrderID:     strings.TrimSpace(req.OrderID),
		EntryDate:   strings.TrimSpace(req.EntryDate),
		Status:      domain.ReceiptStatusPending,
		SourceFile:  strings.TrimSpace(req.SourceFile),
		CreatedBy:   actorUsername(ctx),
	}
	receipt.Items = items

	created, err := s.repo.CreateReceipt(ctx, receipt)
	if err != nil {
		return domain.Receipt{}, err
	}
	log.Printf("[service] receipt created id=%s warehouse=%s items=%d by=%s", created.ID, created.WarehouseID, len(created.Items), created.CreatedBy)
	return *created, nil
}

func (s *Service) ConfirmReceipt(ctx context.Context, id string) (domain.Receipt, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Receipt{}, store.ErrInvalidInput
	}

	confirmed, err := s.repo.ConfirmReceipt(ctx, id, actorUsername(ctx), time.Now().UTC())
	if err != nil {
		return domain.Receipt{}, err
	}
	log.Printf("[service] receipt confirmed id=%s warehouse=%s by=%s", confirmed.ID, confirmed.WarehouseID, actorUsername(ctx))
	return *confirmed, nil
}

func (s *Service) DeleteReceipt(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeletePendingReceipt(ctx, id)
}

// ProcessReceiptDocument runs the full extraction pipeline on an uploaded
// document: cache lookup by content digest, text acquisition, heuristic
// parse. The parse itself never fails; only unreadable documents error.
func (s *Service) ProcessReceiptDocument(ctx context.Context, filename string, data []byte) (domain.ExtractionResult, error) {
	digest := sha256.Sum256(data)
	key := "extract:" + hex.EncodeToString(digest[:])

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: extraction cache get failed: %v", err)
	} else if ok {
		return *cached, nil
	}

	text, err := s.reader.Text(ctx, filename, data)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	result := domain.ExtractionResult{
		Success: true,
		Text:    text,
		Data:    s.parser.Parse(text),
	}

	if err := s.cache.Set(ctx, key, &result, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: extraction cache set failed: %v", err)
	}
	return result, nil
}

func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) CreateMovement(ctx context.Context, req domain.MovementCreateRequest) (domain.Movement, error) {
	if req.WarehouseID == "" {
		req.WarehouseID = s.defaultWarehouseID
	}
	if req.ProductID == "" || req.Quantity < 1 {
		return domain.Movement{}, store.ErrInvalidInput
	}

	movement := domain.Movement{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Reference:   strings.TrimSpace(req.Reference),
		Notes:       strings.TrimSpace(req.Notes),
		CreatedBy:   actorUsername(ctx),
	}

	created, err := s.repo.CreateMovement(ctx, movement)
	if err != nil {
		return domain.Movement{}, err
	}
	return *created, nil
}

func (s *Service) GetStock(ctx context.Context, warehouseID string) (domain.StockResponse, error) {
	levels, err := s.repo.GetStockLevels(ctx, warehouseID)
	if err != nil {
		return domain.StockResponse{}, err
	}
	return domain.StockResponse{WarehouseID: warehouseID, Levels: levels}, nil
}

func (s *Service) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, status, limit)
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Order{}, err
	}
	if req.WarehouseID == "" {
		req.WarehouseID = s.defaultWarehouseID
	}
	req.Supplier = strings.TrimSpace(req.Supplier)
	if req.Supplier == "" || len(req.Details) == 0 {
		return domain.Order{}, store.ErrInvalidInput
	}

	details := make([]domain.OrderDetail, 0, len(req.Details))
	for _, d := range req.Details {
		details = append(details, domain.OrderDetail{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
		})
	}

	created, err := s.repo.CreateOrder(ctx, domain.Order{
		Supplier:    req.Supplier,
		Status:      domain.OrderStatusOpen,
		WarehouseID: req.WarehouseID,
		CreatedBy:   actorUsername(ctx),
		Details:     details,
	})
	if err != nil {
		return domain.Order{}, err
	}
	return *created, nil
}

// orderTransitions lists the allowed status moves. Received and cancelled
// are terminal.
var orderTransitions = map[string][]string{
	domain.OrderStatusOpen: {domain.OrderStatusSent, domain.OrderStatusCancelled},
	domain.OrderStatusSent: {domain.OrderStatusReceived, domain.OrderStatusCancelled},
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status string) (domain.Order, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Order{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))

	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	allowed := false
	for _, next := range orderTransitions[existing.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.Order{}, store.ErrConflict
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}
	log.Printf("[service] order status id=%s %s -> %s by=%s", id, existing.Status, status, actorUsername(ctx))
	return *updated, nil
}

func (s *Service) ListQRCodes(ctx context.Context, entityType string, limit int) ([]domain.QRCode, error) {
	return s.repo.ListQRCodes(ctx, entityType, limit)
}

func (s *Service) CreateQRCode(ctx context.Context, req domain.QRCodeCreateRequest) (domain.QRCode, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.QRCode{}, err
	}

	switch req.EntityType {
	case domain.QREntityProduct:
		if _, err := s.repo.GetProductByID(ctx, req.EntityID); err != nil {
			return domain.QRCode{}, err
		}
	case domain.QREntityWarehouse:
		if _, err := s.repo.GetWarehouseByID(ctx, req.EntityID); err != nil {
			return domain.QRCode{}, err
		}
	default:
		return domain.QRCode{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateQRCode(ctx, domain.QRCode{
		Token:      uuid.NewString(),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Label:      strings.TrimSpace(req.Label),
	})
	if err != nil {
		return domain.QRCode{}, err
	}
	return *created, nil
}

func (s *Service) ResolveQRCode(ctx context.Context, token string) (domain.QRCode, error) {
	code, err := s.repo.GetQRCodeByToken(ctx, token)
	if err != nil {
		return domain.QRCode{}, err
	}
	return *code, nil
}

// QRCodeImage renders the label PNG for a registered token.
func (s *Service) QRCodeImage(ctx context.Context, token string, size int) ([]byte, error) {
	if size < 64 || size > 1024 {
		size = 256
	}
	code, err := s.repo.GetQRCodeByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(code.Token, qrcode.Medium, size)
}

func (s *Service) DeleteQRCode(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteQRCode(ctx, id)
}
