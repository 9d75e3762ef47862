// Package extract turns free-form receipt text into a structured
// ExtractedReceipt using ordered regex heuristics. Parsing is a pure,
// single-pass transformation: malformed text never fails, it degrades to
// defaults (today's date, no order id, a single placeholder product).
package extract

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"almacena/backend/internal/domain"
)

type Parser struct {
	cfg  Config
	stop map[string]struct{}
	now  func() time.Time
}

func New(cfg Config) *Parser {
	stop := make(map[string]struct{}, len(cfg.Stoplist))
	for _, word := range cfg.Stoplist {
		stop[strings.ToLower(strings.TrimSpace(word))] = struct{}{}
	}
	return &Parser{
		cfg:  cfg,
		stop: stop,
		now:  time.Now,
	}
}

// Parse extracts a receipt from raw document text. It holds no state
// across calls; identical input yields identical output for a fixed day.
func (p *Parser) Parse(text string) domain.ExtractedReceipt {
	if p.cfg.MaxTextLen > 0 && len(text) > p.cfg.MaxTextLen {
		text = text[:p.cfg.MaxTextLen]
	}

	receipt := domain.ExtractedReceipt{
		WarehouseID: p.cfg.DefaultWarehouseID,
		EntryDate:   p.parseDate(text),
		OrderID:     p.parseOrderID(text),
		Status:      p.cfg.DefaultStatus,
		Products:    p.parseProducts(text),
	}

	if len(receipt.Products) == 0 {
		receipt.Products = []domain.ExtractedProduct{{
			Name:        p.cfg.PlaceholderName,
			Description: p.cfg.PlaceholderDescription,
			Quantity:    1,
			UnitPrice:   decimal.Zero,
		}}
	}

	return receipt
}

// parseDate tries the date patterns in order. The first pattern that
// matches wins; if its parse mapping fails the date falls back to today,
// later patterns are not consulted.
func (p *Parser) parseDate(text string) string {
	for _, pattern := range p.cfg.DatePatterns {
		groups := pattern.Re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		parsed, err := pattern.Parse(groups)
		if err != nil {
			break
		}
		return parsed.Format("2006-01-02")
	}
	return p.now().Format("2006-01-02")
}

func (p *Parser) parseOrderID(text string) string {
	for _, re := range p.cfg.OrderPatterns {
		if groups := re.FindStringSubmatch(text); groups != nil {
			return strings.TrimSpace(groups[1])
		}
	}
	return ""
}

type candidate struct {
	name     string
	rawQty   string
	quantity int
	price    decimal.Decimal
}

func (p *Parser) parseProducts(text string) []domain.ExtractedProduct {
	var accepted []candidate
	for _, pattern := range p.cfg.ProductPatterns {
		for _, groups := range pattern.Re.FindAllStringSubmatch(text, -1) {
			cand, ok := p.buildCandidate(pattern, groups)
			if !ok {
				continue
			}
			accepted = append(accepted, cand)
		}
	}

	// First occurrence wins per case-insensitive trimmed name, even when
	// later duplicates carry a different quantity or price.
	seen := make(map[string]struct{}, len(accepted))
	products := make([]domain.ExtractedProduct, 0, len(accepted))
	for _, cand := range accepted {
		key := strings.ToLower(cand.name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		products = append(products, domain.ExtractedProduct{
			Name:      cand.name,
			Quantity:  cand.quantity,
			UnitPrice: cand.price,
		})
	}
	return products
}

func (p *Parser) buildCandidate(pattern ProductPattern, groups []string) (candidate, bool) {
	rawQty := groups[pattern.QtyGroup]
	quantity, err := strconv.Atoi(rawQty)
	if err != nil {
		return candidate{}, false
	}

	name := strings.TrimSpace(groups[pattern.NameGroup])

	price := decimal.Zero
	if pattern.PriceGroup > 0 {
		raw := strings.ReplaceAll(groups[pattern.PriceGroup], ",", ".")
		if parsed, err := decimal.NewFromString(raw); err == nil {
			price = parsed
		}
	}

	cand := candidate{name: name, rawQty: rawQty, quantity: quantity, price: price}
	if !p.accept(cand) {
		return candidate{}, false
	}
	return cand, true
}

// accept applies the line filter: bounded quantity, a name that is long
// enough and not a stoplisted receipt word, and no phone-shaped content.
func (p *Parser) accept(cand candidate) bool {
	if cand.quantity < 1 || cand.quantity > p.cfg.MaxQuantity {
		return false
	}
	if utf8.RuneCountInString(cand.name) <= 2 {
		return false
	}
	if _, stoplisted := p.stop[strings.ToLower(cand.name)]; stoplisted {
		return false
	}
	return !p.looksLikePhone(cand.name + " " + cand.rawQty)
}

func (p *Parser) looksLikePhone(s string) bool {
	for _, re := range p.cfg.PhonePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
