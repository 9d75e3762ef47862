package extract

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestParser() *Parser {
	p := New(DefaultConfig())
	p.now = func() time.Time {
		return time.Date(2024, time.June, 10, 15, 4, 5, 0, time.UTC)
	}
	return p
}

func TestParseDateNumericDayFirst(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("Fecha: 15/03/2024")
	if receipt.EntryDate != "2024-03-15" {
		t.Fatalf("expected 2024-03-15, got %s", receipt.EntryDate)
	}
}

func TestParseDateYearFirst(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("Emitido 2024/03/15")
	if receipt.EntryDate != "2024-03-15" {
		t.Fatalf("expected 2024-03-15, got %s", receipt.EntryDate)
	}
}

func TestParseDateSpanishLongForms(t *testing.T) {
	p := newTestParser()

	cases := map[string]string{
		"Buenos Aires, 15 de marzo de 2024": "2024-03-15",
		"Marzo 15, 2024":                    "2024-03-15",
		"3 de julio del 2023":               "2023-07-03",
	}
	for input, want := range cases {
		if got := p.Parse(input).EntryDate; got != want {
			t.Errorf("Parse(%q).EntryDate = %s, want %s", input, got, want)
		}
	}
}

func TestParseDateDefaultsToToday(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("sin ninguna referencia temporal")
	if receipt.EntryDate != "2024-06-10" {
		t.Fatalf("expected current date 2024-06-10, got %s", receipt.EntryDate)
	}
}

func TestParseDateInvalidComponentsFallBack(t *testing.T) {
	p := newTestParser()

	// First pattern matches but 45/13 is not a valid day/month, so the
	// date falls back to today rather than trying later patterns.
	receipt := p.Parse("Fecha: 45/13/2024")
	if receipt.EntryDate != "2024-06-10" {
		t.Fatalf("expected fallback to current date, got %s", receipt.EntryDate)
	}
}

func TestParseOrderID(t *testing.T) {
	p := newTestParser()

	cases := map[string]string{
		"Orden: OC-1881":        "OC-1881",
		"order #A99":            "A99",
		"Pedido 4521":           "4521",
		"Remito N° RM-2024-001": "RM-2024-001",
		"Ref: X-77":             "X-77",
		"Código: ABC-9":         "ABC-9",
	}
	for input, want := range cases {
		if got := p.Parse(input).OrderID; got != want {
			t.Errorf("Parse(%q).OrderID = %q, want %q", input, got, want)
		}
	}
}

func TestParseOrderIDAbsent(t *testing.T) {
	p := newTestParser()

	if got := p.Parse("mercadería varia").OrderID; got != "" {
		t.Fatalf("expected empty order id, got %q", got)
	}
}

func TestPlaceholderWhenNoProductLines(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("texto sin lineas de articulos")
	if len(receipt.Products) != 1 {
		t.Fatalf("expected exactly one placeholder, got %d products", len(receipt.Products))
	}
	got := receipt.Products[0]
	if got.Name != "Producto extraído de PDF" {
		t.Errorf("placeholder name = %q", got.Name)
	}
	if got.Description != "Extraído automáticamente del PDF" {
		t.Errorf("placeholder description = %q", got.Description)
	}
	if got.Quantity != 1 || !got.UnitPrice.IsZero() {
		t.Errorf("placeholder qty/price = %d/%s", got.Quantity, got.UnitPrice)
	}
}

func TestPhoneNumberRejected(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("Juan 2995954318")
	for _, product := range receipt.Products {
		if strings.Contains(product.Name, "Juan") {
			t.Fatalf("phone-shaped candidate accepted as product: %+v", product)
		}
	}
	if len(receipt.Products) != 1 || receipt.Products[0].Name != "Producto extraído de PDF" {
		t.Fatalf("expected placeholder only, got %+v", receipt.Products)
	}
}

func TestPhoneWordsRejected(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("Tel Lopez 4521\n3 Filtro de Aire 15.75")
	if len(receipt.Products) != 1 {
		t.Fatalf("expected single product, got %+v", receipt.Products)
	}
	if receipt.Products[0].Name != "Filtro de Aire" {
		t.Fatalf("expected Filtro de Aire, got %q", receipt.Products[0].Name)
	}
}

func TestStoplistRejectsReceiptWords(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("2 Total 100.00\nSubtotal 3 50.00\n5 Tornillos 2.50")
	if len(receipt.Products) != 1 {
		t.Fatalf("expected one product, got %+v", receipt.Products)
	}
	if receipt.Products[0].Name != "Tornillos" {
		t.Fatalf("expected Tornillos to survive, got %q", receipt.Products[0].Name)
	}
}

func TestQuantityBounds(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("0 Arandelas 1.00")
	if len(receipt.Products) != 1 || receipt.Products[0].Name != "Producto extraído de PDF" {
		t.Fatalf("zero quantity should be rejected, got %+v", receipt.Products)
	}
}

func TestDeduplicationFirstWins(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("5 Tornillos 2.50\n10 Tornillos 2.50")
	if len(receipt.Products) != 1 {
		t.Fatalf("expected one deduplicated product, got %d", len(receipt.Products))
	}
	if receipt.Products[0].Quantity != 5 {
		t.Fatalf("expected first occurrence (qty=5) to win, got qty=%d", receipt.Products[0].Quantity)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	p := newTestParser()

	text := "Remito N° RM-2024-001\n15/03/2024\n3 Filtro de Aire 15.75\n2 Bujia 8.90"
	first := p.Parse(text)
	second := p.Parse(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("parse not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestEndToEndRemito(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("Remito N° RM-2024-001\n15/03/2024\n3 Filtro de Aire 15.75\n2 Bujia 8.90")

	if receipt.OrderID != "RM-2024-001" {
		t.Errorf("order id = %q, want RM-2024-001", receipt.OrderID)
	}
	if receipt.EntryDate != "2024-03-15" {
		t.Errorf("entry date = %q, want 2024-03-15", receipt.EntryDate)
	}
	if receipt.Status != "Pending" {
		t.Errorf("status = %q, want Pending", receipt.Status)
	}
	if len(receipt.Products) != 2 {
		t.Fatalf("expected 2 products, got %+v", receipt.Products)
	}

	first := receipt.Products[0]
	if first.Name != "Filtro de Aire" || first.Quantity != 3 || !first.UnitPrice.Equal(decimal.RequireFromString("15.75")) {
		t.Errorf("first product = %+v", first)
	}
	second := receipt.Products[1]
	if second.Name != "Bujia" || second.Quantity != 2 || !second.UnitPrice.Equal(decimal.RequireFromString("8.90")) {
		t.Errorf("second product = %+v", second)
	}
}

func TestPriceLessLineDefaultsToZeroPrice(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("4 Abrazaderas")
	if len(receipt.Products) != 1 {
		t.Fatalf("expected one product, got %+v", receipt.Products)
	}
	got := receipt.Products[0]
	if got.Name != "Abrazaderas" || got.Quantity != 4 || !got.UnitPrice.IsZero() {
		t.Fatalf("unexpected product %+v", got)
	}
}

func TestCommaDecimalPrice(t *testing.T) {
	p := newTestParser()

	receipt := p.Parse("2 Correa 120,50")
	if len(receipt.Products) != 1 {
		t.Fatalf("expected one product, got %+v", receipt.Products)
	}
	if !receipt.Products[0].UnitPrice.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("price = %s, want 120.50", receipt.Products[0].UnitPrice)
	}
}

func TestCustomStoplistInjection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stoplist = append(cfg.Stoplist, "tornillos")
	p := New(cfg)

	receipt := p.Parse("5 Tornillos 2.50")
	if len(receipt.Products) != 1 || receipt.Products[0].Name != "Producto extraído de PDF" {
		t.Fatalf("custom stoplist entry not honoured, got %+v", receipt.Products)
	}
}

func TestInputSizeCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTextLen = 64
	p := New(cfg)

	text := "5 Tornillos 2.50\n" + strings.Repeat("x", 200) + "\n7 Bujia 1.00"
	receipt := p.Parse(text)
	if len(receipt.Products) != 1 || receipt.Products[0].Name != "Tornillos" {
		t.Fatalf("expected only pre-cap content to parse, got %+v", receipt.Products)
	}
}
