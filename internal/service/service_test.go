package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"almacena/backend/internal/cache"
	"almacena/backend/internal/domain"
	"almacena/backend/internal/extract"
	"almacena/backend/internal/store"
	"almacena/backend/internal/store/memory"
)

type stubReader struct {
	text  string
	err   error
	calls int
}

func (r *stubReader) Text(_ context.Context, _ string, _ []byte) (string, error) {
	r.calls++
	return r.text, r.err
}

type recordingCache struct {
	values map[string]domain.ExtractionResult
	gets   int
	sets   int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: map[string]domain.ExtractionResult{}}
}

func (c *recordingCache) Get(_ context.Context, key string) (*domain.ExtractionResult, bool, error) {
	c.gets++
	if v, ok := c.values[key]; ok {
		copyV := v
		return &copyV, true, nil
	}
	return nil, false, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value *domain.ExtractionResult, _ time.Duration) error {
	c.sets++
	c.values[key] = *value
	return nil
}

func newTestService(reader DocumentReader) *Service {
	repo := memory.NewSeeded()
	cfg := extract.DefaultConfig()
	cfg.DefaultWarehouseID = "main-warehouse"
	return New(repo, reader, extract.New(cfg), cache.NoopExtractionCache{}, time.Hour, "main-warehouse")
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func operatorCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "operator", Role: "operator"})
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService(&stubReader{})

	_, err := svc.CreateProduct(operatorCtx(), domain.ProductCreateRequest{
		Name:      "Pastilla de Freno",
		UnitPrice: decimal.NewFromFloat(22.00),
	})
	if err == nil {
		t.Fatalf("expected operator product create to fail")
	}

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      "Pastilla de Freno",
		UnitPrice: decimal.NewFromFloat(22.00),
	})
	if err != nil {
		t.Fatalf("admin product create failed: %v", err)
	}
	if created.ID == "" || !created.Active {
		t.Fatalf("expected active product with id, got %+v", created)
	}
}

func TestConfirmReceiptMovesStock(t *testing.T) {
	svc := newTestService(&stubReader{})
	ctx := operatorCtx()

	created, err := svc.CreateReceipt(ctx, domain.ReceiptCreateRequest{
		WarehouseID: "main-warehouse",
		Items: []domain.ReceiptItemRequest{
			{Name: "Filtro de Aire", Quantity: 3, UnitPrice: decimal.NewFromFloat(15.75)},
			{Name: "Producto Nuevo XYZ", Quantity: 2, UnitPrice: decimal.NewFromFloat(5.00)},
		},
	})
	if err != nil {
		t.Fatalf("create receipt failed: %v", err)
	}
	if created.Status != domain.ReceiptStatusPending {
		t.Fatalf("expected pending receipt, got %s", created.Status)
	}

	before, err := svc.GetStock(ctx, "main-warehouse")
	if err != nil {
		t.Fatalf("stock query failed: %v", err)
	}
	beforeQty := stockFor(before.Levels, "Filtro de Aire")

	confirmed, err := svc.ConfirmReceipt(ctx, created.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != domain.ReceiptStatusConfirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("expected confirmed receipt, got %+v", confirmed)
	}

	after, err := svc.GetStock(ctx, "main-warehouse")
	if err != nil {
		t.Fatalf("stock query failed: %v", err)
	}
	if got := stockFor(after.Levels, "Filtro de Aire"); got != beforeQty+3 {
		t.Fatalf("expected stock %d, got %d", beforeQty+3, got)
	}
	if got := stockFor(after.Levels, "Producto Nuevo XYZ"); got != 2 {
		t.Fatalf("expected new product stock 2, got %d", got)
	}

	movements, err := svc.ListMovements(ctx, domain.MovementFilter{Type: domain.MovementTypeEntry})
	if err != nil {
		t.Fatalf("movement list failed: %v", err)
	}
	entries := 0
	for _, m := range movements {
		if m.Reference == created.ID {
			entries++
		}
	}
	if entries != 2 {
		t.Fatalf("expected 2 entry movements for receipt, got %d", entries)
	}
}

func TestConfirmReceiptTwiceConflicts(t *testing.T) {
	svc := newTestService(&stubReader{})
	ctx := operatorCtx()

	created, err := svc.CreateReceipt(ctx, domain.ReceiptCreateRequest{
		Items: []domain.ReceiptItemRequest{
			{Name: "Bujia", Quantity: 1, UnitPrice: decimal.NewFromFloat(8.90)},
		},
	})
	if err != nil {
		t.Fatalf("create receipt failed: %v", err)
	}
	if _, err := svc.ConfirmReceipt(ctx, created.ID); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	if _, err := svc.ConfirmReceipt(ctx, created.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on double confirm, got %v", err)
	}
}

func TestExitMovementGuardsStock(t *testing.T) {
	svc := newTestService(&stubReader{})
	ctx := operatorCtx()

	_, err := svc.CreateMovement(ctx, domain.MovementCreateRequest{
		ProductID:   "prod-seed-01",
		WarehouseID: "main-warehouse",
		Type:        domain.MovementTypeExit,
		Quantity:    1000000,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	_, err = svc.CreateMovement(ctx, domain.MovementCreateRequest{
		ProductID:   "prod-seed-01",
		WarehouseID: "main-warehouse",
		Type:        domain.MovementTypeExit,
		Quantity:    10,
	})
	if err != nil {
		t.Fatalf("exit movement failed: %v", err)
	}
}

func TestProcessReceiptDocumentParsesText(t *testing.T) {
	reader := &stubReader{text: "Remito N° RM-2024-001\nFecha: 15/03/2024\n3 Filtro de Aire 15.75\n"}
	svc := newTestService(reader)

	result, err := svc.ProcessReceiptDocument(context.Background(), "remito.pdf", []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success result")
	}
	if result.Data.OrderID != "RM-2024-001" {
		t.Fatalf("expected order id RM-2024-001, got %q", result.Data.OrderID)
	}
	if result.Data.EntryDate != "2024-03-15" {
		t.Fatalf("expected entry date 2024-03-15, got %q", result.Data.EntryDate)
	}
	if result.Data.WarehouseID != "main-warehouse" {
		t.Fatalf("expected default warehouse, got %q", result.Data.WarehouseID)
	}
	if len(result.Data.Products) != 1 || result.Data.Products[0].Name != "Filtro de Aire" {
		t.Fatalf("unexpected products: %+v", result.Data.Products)
	}
}

func TestProcessReceiptDocumentUsesCache(t *testing.T) {
	reader := &stubReader{text: "5 Tornillos 2.50\n"}
	repo := memory.NewSeeded()
	cfg := extract.DefaultConfig()
	cfg.DefaultWarehouseID = "main-warehouse"
	rc := newRecordingCache()
	svc := New(repo, reader, extract.New(cfg), rc, time.Hour, "main-warehouse")

	doc := []byte("same document bytes")
	first, err := svc.ProcessReceiptDocument(context.Background(), "a.pdf", doc)
	if err != nil {
		t.Fatalf("first extraction failed: %v", err)
	}
	second, err := svc.ProcessReceiptDocument(context.Background(), "b.pdf", doc)
	if err != nil {
		t.Fatalf("second extraction failed: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("expected one reader call, got %d", reader.calls)
	}
	if rc.sets != 1 {
		t.Fatalf("expected one cache set, got %d", rc.sets)
	}
	if first.Data.Products[0].Name != second.Data.Products[0].Name {
		t.Fatalf("cache returned different result")
	}
}

func TestProcessReceiptDocumentPropagatesReadErrors(t *testing.T) {
	reader := &stubReader{err: errors.New("pdf processing: corrupt file")}
	svc := newTestService(reader)

	_, err := svc.ProcessReceiptDocument(context.Background(), "bad.pdf", []byte("junk"))
	if err == nil {
		t.Fatalf("expected error from unreadable document")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	svc := newTestService(&stubReader{})
	ctx := adminCtx()

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		Supplier:    "Repuestos del Sur SRL",
		WarehouseID: "main-warehouse",
		Details: []domain.OrderDetailRequest{
			{ProductID: "prod-seed-01", Quantity: 10, UnitPrice: decimal.NewFromFloat(15.75)},
		},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Fatalf("expected open order, got %s", order.Status)
	}
	if !order.Total.Equal(decimal.NewFromFloat(157.50)) {
		t.Fatalf("expected total 157.50, got %s", order.Total)
	}

	if _, err := svc.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusReceived); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for open -> received, got %v", err)
	}

	sent, err := svc.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusSent)
	if err != nil {
		t.Fatalf("open -> sent failed: %v", err)
	}
	if sent.Status != domain.OrderStatusSent {
		t.Fatalf("expected sent, got %s", sent.Status)
	}

	received, err := svc.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusReceived)
	if err != nil {
		t.Fatalf("sent -> received failed: %v", err)
	}
	if _, err := svc.UpdateOrderStatus(ctx, received.ID, domain.OrderStatusCancelled); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected terminal status to reject changes, got %v", err)
	}
}

func TestQRCodeLifecycle(t *testing.T) {
	svc := newTestService(&stubReader{})
	ctx := adminCtx()

	code, err := svc.CreateQRCode(ctx, domain.QRCodeCreateRequest{
		EntityType: domain.QREntityProduct,
		EntityID:   "prod-seed-01",
		Label:      "Estante A3",
	})
	if err != nil {
		t.Fatalf("create qr failed: %v", err)
	}
	if code.Token == "" {
		t.Fatalf("expected generated token")
	}

	resolved, err := svc.ResolveQRCode(context.Background(), code.Token)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.EntityID != "prod-seed-01" || resolved.EntityType != domain.QREntityProduct {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	png, err := svc.QRCodeImage(context.Background(), code.Token, 256)
	if err != nil {
		t.Fatalf("image render failed: %v", err)
	}
	if len(png) == 0 {
		t.Fatalf("expected png bytes")
	}

	if _, err := svc.CreateQRCode(ctx, domain.QRCodeCreateRequest{
		EntityType: domain.QREntityProduct,
		EntityID:   "no-such-product",
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing entity, got %v", err)
	}
}

func stockFor(levels []domain.StockLevel, productName string) int {
	for _, level := range levels {
		if level.ProductName == productName {
			return level.Quantity
		}
	}
	return 0
}
